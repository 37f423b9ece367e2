// Package validate checks a written manifest against the resource library.
package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gfres/internal/fsutil"
	"gfres/internal/live2d"
	"gfres/internal/manifest"
	"gfres/internal/resolve"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeMissingReference  = "missing_reference"
	codeUnnormalizedModel = "unnormalized_model"
	codeMalformedModel    = "malformed_model"
	codeDuplicateSkin     = "duplicate_skin"
	codeMissingName       = "missing_name"
	codeEmptyManifest     = "empty_manifest"
)

type Issue struct {
	Severity  Severity
	Code      string
	Message   string
	Character string
	Skin      string
	Path      string
}

type Report struct {
	Issues []Issue
}

func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarn)
}

func (r *Report) filter(severity Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// Run checks that every reference in the manifest points at an existing
// file below its resource root.
func Run(ctx context.Context, m *manifest.Manifest, roots resolve.Roots) (*Report, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is required")
	}

	issues := make([]Issue, 0)
	if m.Len() == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeEmptyManifest,
			Message:  "manifest has no characters",
		})
	}

	for _, key := range m.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, _ := m.Get(key)
		issues = append(issues, validateCharacter(key, c, roots)...)
	}
	return &Report{Issues: issues}, nil
}

func validateCharacter(key string, c *manifest.Character, roots resolve.Roots) []Issue {
	var issues []Issue
	if c.Name == "" {
		issues = append(issues, Issue{
			Severity:  SeverityWarn,
			Code:      codeMissingName,
			Message:   "character has no name",
			Character: key,
		})
	}
	issues = append(issues, checkPair(key, "", "avatar", c.Avatar, roots.Avatar)...)

	seen := make(map[string]bool, len(c.Skins))
	for _, skin := range c.Skins {
		if seen[skin.Code] {
			issues = append(issues, Issue{
				Severity:  SeverityWarn,
				Code:      codeDuplicateSkin,
				Message:   "skin listed more than once",
				Character: key,
				Skin:      skin.Code,
			})
		}
		seen[skin.Code] = true
		issues = append(issues, validateSkin(key, skin, roots)...)
	}
	return issues
}

func validateSkin(key string, skin manifest.Skin, roots resolve.Roots) []Issue {
	var issues []Issue
	issues = append(issues, checkPair(key, skin.Code, "avatar", skin.Avatar, roots.Avatar)...)
	issues = append(issues, checkPair(key, skin.Code, "image", skin.Image, roots.Painting)...)

	if skin.Live2D != nil {
		for _, ref := range []string{skin.Live2D.Normal, skin.Live2D.Destroy} {
			if ref == "" {
				continue
			}
			if issue, ok := checkRef(key, skin.Code, "live2d", ref, roots.Live2D); ok {
				issues = append(issues, issue)
				continue
			}
			issues = append(issues, checkModel(key, skin.Code, filepath.Join(roots.Live2D, filepath.FromSlash(ref)))...)
		}
	}

	if skin.Spine != nil {
		for _, files := range []*manifest.SpineFiles{skin.Spine.Normal, skin.Spine.Rest} {
			if files == nil {
				continue
			}
			for _, ref := range []string{files.Skel, files.Atlas} {
				if issue, ok := checkRef(key, skin.Code, "spine", ref, roots.Spine); ok {
					issues = append(issues, issue)
				}
			}
		}
	}
	return issues
}

func checkPair(key, skin, kind string, pair manifest.Pair, root string) []Issue {
	var issues []Issue
	for _, ref := range []string{pair.Normal, pair.Destroy} {
		if issue, ok := checkRef(key, skin, kind, ref, root); ok {
			issues = append(issues, issue)
		}
	}
	return issues
}

// checkRef returns an issue when ref does not name an existing file.
func checkRef(key, skin, kind, ref, root string) (Issue, bool) {
	path := filepath.Join(root, filepath.FromSlash(ref))
	if ref != "" && fsutil.IsFile(path) {
		return Issue{}, false
	}
	return Issue{
		Severity:  SeverityError,
		Code:      codeMissingReference,
		Message:   fmt.Sprintf("%s reference %q not found", kind, ref),
		Character: key,
		Skin:      skin,
		Path:      path,
	}, true
}

func checkModel(key, skin, path string) []Issue {
	data, err := os.ReadFile(path)
	if err != nil {
		return []Issue{{
			Severity:  SeverityError,
			Code:      codeMissingReference,
			Message:   fmt.Sprintf("reading model: %v", err),
			Character: key,
			Skin:      skin,
			Path:      path,
		}}
	}
	_, changed, err := live2d.NormalizeModel(data)
	switch {
	case err != nil:
		return []Issue{{
			Severity:  SeverityError,
			Code:      codeMalformedModel,
			Message:   fmt.Sprintf("malformed model descriptor: %v", err),
			Character: key,
			Skin:      skin,
			Path:      path,
		}}
	case changed:
		return []Issue{{
			Severity:  SeverityWarn,
			Code:      codeUnnormalizedModel,
			Message:   "model descriptor still has an unnamed motion group",
			Character: key,
			Skin:      skin,
			Path:      path,
		}}
	}
	return nil
}

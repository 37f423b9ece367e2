package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gfres/internal/manifest"
	"gfres/internal/resolve"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newRoots(t *testing.T) resolve.Roots {
	root := t.TempDir()
	return resolve.Roots{
		Avatar:   filepath.Join(root, "avatar"),
		Painting: filepath.Join(root, "painting"),
		Live2D:   filepath.Join(root, "live2d"),
		Spine:    filepath.Join(root, "spine"),
	}
}

func countCode(issues []Issue, code string) int {
	n := 0
	for _, issue := range issues {
		if issue.Code == code {
			n++
		}
	}
	return n
}

func TestRun(t *testing.T) {
	roots := newRoots(t)
	writeFile(t, filepath.Join(roots.Avatar, "ak47", "normal.png"), "x")
	writeFile(t, filepath.Join(roots.Avatar, "ak47", "broken.png"), "x")
	writeFile(t, filepath.Join(roots.Painting, "ak47", "pic_ak47_HD.png"), "x")
	writeFile(t, filepath.Join(roots.Live2D, "ak47", "normal", "normal.model3.json"),
		`{"FileReferences": {"Motions": {"": [{"File": "idle_01.motion3.json"}]}}}`)
	writeFile(t, filepath.Join(roots.Live2D, "ak47", "destroy", "destroy.model3.json"), `{`)

	avatar := manifest.Pair{Normal: "ak47/normal.png", Destroy: "ak47/broken.png"}
	m := manifest.New()
	m.Set("AK47", &manifest.Character{
		Code:   "AK47",
		Avatar: avatar,
		Skins: []manifest.Skin{
			{
				Code:   "AK47",
				Avatar: avatar,
				Image:  manifest.Pair{Normal: "ak47/pic_ak47_HD.png", Destroy: "ak47/pic_ak47_D_HD.png"},
				Live2D: &manifest.Live2D{
					Normal:  "ak47/normal/normal.model3.json",
					Destroy: "ak47/destroy/destroy.model3.json",
				},
				Spine: &manifest.Spine{Normal: &manifest.SpineFiles{Skel: "ak47/ak47.skel", Atlas: "ak47/ak47.atlas"}},
			},
			{Code: "AK47", Avatar: avatar, Image: manifest.Pair{Normal: "ak47/pic_ak47_HD.png", Destroy: "ak47/pic_ak47_HD.png"}},
		},
	})

	report, err := Run(context.Background(), m, roots)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	errs := report.Errors()
	warns := report.Warnings()
	if got := countCode(errs, codeMissingReference); got != 3 {
		t.Fatalf("expected 3 missing references (destroy painting, skel, atlas), got %d: %#v", got, errs)
	}
	if got := countCode(errs, codeMalformedModel); got != 1 {
		t.Fatalf("expected 1 malformed model, got %d", got)
	}
	if got := countCode(warns, codeUnnormalizedModel); got != 1 {
		t.Fatalf("expected 1 unnormalized model, got %d", got)
	}
	if got := countCode(warns, codeDuplicateSkin); got != 1 {
		t.Fatalf("expected duplicate skin warning, got %d", got)
	}
	if got := countCode(warns, codeMissingName); got != 1 {
		t.Fatalf("expected missing name warning, got %d", got)
	}
}

func TestRunEmptyManifest(t *testing.T) {
	report, err := Run(context.Background(), manifest.New(), newRoots(t))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(report.Errors()) != 0 || countCode(report.Warnings(), codeEmptyManifest) != 1 {
		t.Fatalf("expected only an empty manifest warning, got %#v", report.Issues)
	}
}

func TestRunRequiresManifest(t *testing.T) {
	if _, err := Run(context.Background(), nil, newRoots(t)); err == nil {
		t.Fatalf("expected error")
	}
}

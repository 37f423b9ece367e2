// Package live2d archives packed animation bundles: it gates them on their
// content hash, runs the extractor, normalizes the model descriptors and
// installs the result into the resource library.
package live2d

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"gfres/internal/apperr"
	"gfres/internal/config"
	"gfres/internal/extractor"
	"gfres/internal/fsutil"
	"gfres/internal/stage"
	"gfres/internal/state"
)

var archivePattern = regexp.MustCompile(`^live2dnewgun(.*)\.ab$`)

type Result struct {
	Extracted int
	Unchanged int
	Installed int
	Errors    []error
}

type Archiver struct {
	cfg     config.Live2DConfig
	runner  extractor.Runner
	cache   *state.Cache
	logger  *zap.Logger
	workers int
}

func NewArchiver(cfg config.Live2DConfig, runner extractor.Runner, cache *state.Cache, logger *zap.Logger, workers int) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{cfg: cfg, runner: runner, cache: cache, logger: logger, workers: stage.Workers(workers)}
}

// ArchiveCode returns the character code of a packed archive file name, or
// false when the name is not an animation archive.
func ArchiveCode(name string) (string, bool) {
	m := archivePattern.FindStringSubmatch(name)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Run extracts every new or changed archive and then installs everything
// waiting in the extract output. Unit failures are collected in the result.
func (a *Archiver) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	entries, err := fsutil.Entries(a.cfg.PackInput)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", a.cfg.PackInput, err)
	}

	type outcome struct {
		extracted bool
		err       error
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	outcomes := make([]outcome, len(names))

	p := pool.New().WithMaxGoroutines(a.workers)
	for idx, name := range names {
		idx, name := idx, name
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			extracted, err := a.archive(ctx, name)
			outcomes[idx] = outcome{extracted: extracted, err: err}
		})
	}
	p.Wait()

	for i, o := range outcomes {
		switch {
		case o.err != nil:
			a.logger.Warn("archive skipped",
				zap.String("unit", names[i]),
				zap.String("kind", stage.Kind(o.err)),
				zap.Error(o.err),
			)
			result.Errors = append(result.Errors, o.err)
		case o.extracted:
			result.Extracted++
		default:
			result.Unchanged++
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	installed, errs := a.Install(ctx)
	result.Installed = installed
	result.Errors = append(result.Errors, errs...)
	return result, nil
}

// archive handles one drop-folder entry. It reports whether the archive was
// extracted in this run.
func (a *Archiver) archive(ctx context.Context, name string) (bool, error) {
	code, ok := ArchiveCode(name)
	if !ok {
		return false, nil
	}
	src := filepath.Join(a.cfg.PackInput, name)

	hash, err := hashFile(src)
	if err != nil {
		return false, apperr.MissingAsset(name, src, "archive unreadable").WithCause(err)
	}
	if !a.cache.ShouldExtract(name, hash) {
		a.logger.Debug("archive unchanged", zap.String("unit", name))
		return false, nil
	}

	outputDir := filepath.Join(a.cfg.PackOutput, code)
	if err := fsutil.CopyFile(src, filepath.Join(outputDir, code+".ab")); err != nil {
		return false, apperr.New(apperr.KindMissingAsset, name, "copying archive").WithPath(outputDir).WithCause(err)
	}

	a.logger.Info("extracting archive", zap.String("unit", name), zap.String("code", code))
	if _, err := a.runner.Extract(ctx, outputDir); err != nil {
		return false, err
	}
	if extracted := filepath.Join(a.cfg.ExtractOutput, code); !fsutil.IsDir(extracted) {
		return false, apperr.ExternalTool(name, "extractor produced no output", nil).WithPath(extracted)
	}

	a.cache.RecordExtracted(name, hash)
	return true, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

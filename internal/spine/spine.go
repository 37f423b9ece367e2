// Package spine collects spine bundles into the resource library.
package spine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"gfres/internal/apperr"
	"gfres/internal/config"
	"gfres/internal/fsutil"
	"gfres/internal/stage"
)

const (
	bundleDir   = "spine"
	assetSuffix = ".asset"
)

type Stage struct {
	cfg     config.StageConfig
	logger  *zap.Logger
	workers int
}

func New(cfg config.StageConfig, logger *zap.Logger, workers int) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{cfg: cfg, logger: logger, workers: stage.Workers(workers)}
}

// TargetName is the library file name of a bundle file: X.asset is stored
// as X, everything else keeps its name.
func TargetName(name string) string {
	if trimmed := strings.TrimSuffix(name, assetSuffix); trimmed != "" {
		return trimmed
	}
	return name
}

// Run copies every spine bundle into the library. Bundles are always copied
// again; there is no change detection.
func (s *Stage) Run(ctx context.Context) (*stage.Result, error) {
	dirs, err := fsutil.SubDirs(s.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.cfg.Input, err)
	}

	type outcome struct {
		ignored bool
		files   int
		err     error
	}
	outcomes := make([]*outcome, len(dirs))

	p := pool.New().WithMaxGoroutines(s.workers)
	for idx, dir := range dirs {
		idx, dir := idx, dir
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			src := filepath.Join(s.cfg.Input, dir, bundleDir)
			if !fsutil.IsDir(src) {
				outcomes[idx] = &outcome{ignored: true}
				return
			}
			files, err := s.collect(dir, src)
			outcomes[idx] = &outcome{files: files, err: err}
		})
	}
	p.Wait()

	result := &stage.Result{}
	for i, o := range outcomes {
		switch {
		case o == nil:
		case o.ignored:
			result.Ignored++
		case o.err != nil:
			stage.Skip(s.logger, dirs[i], o.err)
			result.Errors = append(result.Errors, o.err)
		default:
			result.Processed++
			s.logger.Debug("spine collected", zap.String("unit", dirs[i]), zap.Int("files", o.files))
		}
	}
	return result, ctx.Err()
}

func (s *Stage) collect(dir, src string) (int, error) {
	entries, err := fsutil.Entries(src)
	if err != nil {
		return 0, apperr.MissingAsset(dir, src, "listing spine bundle").WithCause(err)
	}

	outDir := filepath.Join(s.cfg.ResourcePath, dir)
	copied := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		dst := filepath.Join(outDir, TargetName(entry.Name()))
		if err := fsutil.CopyFile(filepath.Join(src, entry.Name()), dst); err != nil {
			return copied, apperr.New(apperr.KindMissingAsset, dir, "copying spine file").WithPath(dst).WithCause(err)
		}
		copied++
	}
	return copied, nil
}

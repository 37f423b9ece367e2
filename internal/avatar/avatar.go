// Package avatar splits avatar sheets into their normal and broken
// portraits.
package avatar

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
	"gfres/internal/imaging"
	"gfres/internal/stage"
	"gfres/internal/state"
)

const (
	sheetDir    = "pic"
	sheetSuffix = "_N.png"
	NormalFile  = "normal.png"
	BrokenFile  = "broken.png"
)

type Stage struct {
	cfg     config.StageConfig
	done    *state.Set
	logger  *zap.Logger
	workers int
}

func New(cfg config.StageConfig, cache *state.Cache, logger *zap.Logger, workers int) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{cfg: cfg, done: cache.Avatars(), logger: logger, workers: stage.Workers(workers)}
}

type folderOutcome struct {
	ignored bool
	sheets  int
	errs    []error
}

// Run splits the sheets of every folder not processed before. A folder is
// marked processed only when all of its sheets were written.
func (s *Stage) Run(ctx context.Context) (*stage.Result, error) {
	dirs, err := fsutil.SubDirs(s.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.cfg.Input, err)
	}

	result := &stage.Result{}
	var pending []string
	for _, dir := range dirs {
		if s.done.Has(dir) {
			result.Unchanged++
			continue
		}
		pending = append(pending, dir)
	}

	outcomes := make([]*folderOutcome, len(pending))
	p := pool.New().WithMaxGoroutines(s.workers)
	for idx, dir := range pending {
		idx, dir := idx, dir
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			outcomes[idx] = s.folder(dir)
		})
	}
	p.Wait()

	for i, o := range outcomes {
		dir := pending[i]
		switch {
		case o == nil:
		case o.ignored:
			result.Ignored++
		case len(o.errs) > 0:
			result.Errors = append(result.Errors, o.errs...)
		default:
			s.done.Add(dir)
			result.Processed++
			s.logger.Info("avatar archived", zap.String("unit", dir), zap.Int("sheets", o.sheets))
		}
	}
	return result, ctx.Err()
}

func (s *Stage) folder(dir string) *folderOutcome {
	picDir := filepath.Join(s.cfg.Input, dir, sheetDir)
	if !fsutil.IsDir(picDir) {
		s.logger.Debug("avatar folder has no sheets", zap.String("unit", dir))
		return &folderOutcome{ignored: true}
	}

	entries, err := fsutil.Entries(picDir)
	if err != nil {
		err = apperr.MissingAsset(dir, picDir, "listing avatar sheets").WithCause(err)
		stage.Skip(s.logger, dir, err)
		return &folderOutcome{errs: []error{err}}
	}

	outcome := &folderOutcome{}
	outDir := filepath.Join(s.cfg.ResourcePath, dir)
	// Sheets are split in name order; a later sheet overwrites an earlier one.
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), sheetSuffix) {
			continue
		}
		unit := dir + "/" + entry.Name()
		if err := SplitSheet(unit, filepath.Join(picDir, entry.Name()), outDir); err != nil {
			stage.Skip(s.logger, unit, err)
			outcome.errs = append(outcome.errs, err)
			continue
		}
		outcome.sheets++
	}
	return outcome
}

// SplitSheet writes the two halves of the sheet at path as normal.png and
// broken.png in outDir.
func SplitSheet(unit, path, outDir string) error {
	sheet, err := imaging.LoadPNG(path)
	if err != nil {
		return apperr.MissingAsset(unit, path, "unreadable avatar sheet").WithCause(err)
	}
	normal, broken := imaging.Split(sheet)
	if err := imaging.SavePNG(filepath.Join(outDir, NormalFile), normal); err != nil {
		return apperr.New(apperr.KindMissingAsset, unit, "writing normal avatar").WithPath(outDir).WithCause(err)
	}
	if err := imaging.SavePNG(filepath.Join(outDir, BrokenFile), broken); err != nil {
		return apperr.New(apperr.KindMissingAsset, unit, "writing broken avatar").WithPath(outDir).WithCause(err)
	}
	return nil
}

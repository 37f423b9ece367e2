// Package painting composites paintings from a color image and its
// separate alpha mask.
package painting

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

const maskSuffix = "_Alpha.png"

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
	return &Stage{cfg: cfg, done: cache.Paintings(), logger: logger, workers: stage.Workers(workers)}
}

// Pair is one painting to composite.
type Pair struct {
	Folder string
	Color  string
	Mask   string
	Output string
}

// MaskName returns the mask file name that belongs to a color image.
func MaskName(name string) string {
	return strings.TrimSuffix(name, ".png") + maskSuffix
}

// Run composites every painting of the folders not processed before. A
// folder is marked processed only when none of its paintings failed.
func (s *Stage) Run(ctx context.Context) (*stage.Result, error) {
	dirs, err := fsutil.SubDirs(s.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.cfg.Input, err)
	}

	result := &stage.Result{}
	failed := make(map[string]bool)
	var (
		pending []string
		pairs   []Pair
	)
	for _, dir := range dirs {
		if s.done.Has(dir) {
			result.Unchanged++
			continue
		}
		pending = append(pending, dir)

		found, errs := s.pairs(dir)
		for _, err := range errs {
			stage.Skip(s.logger, dir, err)
			result.Errors = append(result.Errors, err)
			failed[dir] = true
		}
		pairs = append(pairs, found...)
	}

	errs := make([]error, len(pairs))
	started := make([]bool, len(pairs))
	p := pool.New().WithMaxGoroutines(s.workers)
	for idx, pair := range pairs {
		idx, pair := idx, pair
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			started[idx] = true
			errs[idx] = Composite(pair)
		})
	}
	p.Wait()

	for i, pair := range pairs {
		if !started[i] {
			failed[pair.Folder] = true
			continue
		}
		if err := errs[i]; err != nil {
			stage.Skip(s.logger, pair.Folder+"/"+filepath.Base(pair.Color), err)
			result.Errors = append(result.Errors, err)
			failed[pair.Folder] = true
		}
	}

	for _, dir := range pending {
		if failed[dir] {
			continue
		}
		s.done.Add(dir)
		result.Processed++
		s.logger.Info("painting archived", zap.String("unit", dir))
	}
	return result, ctx.Err()
}

func (s *Stage) pairs(dir string) ([]Pair, []error) {
	inDir := filepath.Join(s.cfg.Input, dir)
	entries, err := fsutil.Entries(inDir)
	if err != nil {
		return nil, []error{apperr.MissingAsset(dir, inDir, "listing paintings").WithCause(err)}
	}

	var (
		pairs []Pair
		errs  []error
	)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, ".png") || strings.HasSuffix(name, maskSuffix) {
			continue
		}
		mask := filepath.Join(inDir, MaskName(name))
		if !fsutil.IsFile(mask) {
			errs = append(errs, apperr.MissingAsset(dir+"/"+name, mask, "alpha mask not found"))
			continue
		}
		pairs = append(pairs, Pair{
			Folder: dir,
			Color:  filepath.Join(inDir, name),
			Mask:   mask,
			Output: filepath.Join(s.cfg.ResourcePath, dir, name),
		})
	}
	return pairs, errs
}

// Composite renders one pair to its output path.
func Composite(pair Pair) error {
	unit := pair.Folder + "/" + filepath.Base(pair.Color)
	col, err := imaging.LoadPNG(pair.Color)
	if err != nil {
		return apperr.MissingAsset(unit, pair.Color, "unreadable painting").WithCause(err)
	}
	mask, err := imaging.LoadPNG(pair.Mask)
	if err != nil {
		return apperr.MissingAsset(unit, pair.Mask, "unreadable alpha mask").WithCause(err)
	}
	if err := imaging.SavePNG(pair.Output, imaging.Composite(col, mask)); err != nil {
		return apperr.New(apperr.KindMissingAsset, unit, "writing painting").WithPath(pair.Output).WithCause(err)
	}
	return nil
}

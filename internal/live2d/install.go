package live2d

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"gfres/internal/apperr"
	"gfres/internal/fsutil"
	"gfres/internal/stage"
)

// Variants are the model sub-directories every extracted character has.
var Variants = []string{"normal", "destroy"}

// DescriptorPath returns the model descriptor of a variant below a model
// directory, e.g. ak47/normal/normal.model3.json.
func DescriptorPath(dir, variant string) string {
	return filepath.Join(dir, variant, variant+".model3.json")
}

// Install normalizes every directory waiting in the extract output and
// moves it into the resource library under its lowercase name, replacing
// the previous version.
func (a *Archiver) Install(ctx context.Context) (int, []error) {
	dirs, err := fsutil.SubDirs(a.cfg.ExtractOutput)
	if err != nil {
		return 0, []error{fmt.Errorf("listing %s: %w", a.cfg.ExtractOutput, err)}
	}

	var (
		installed int
		errs      []error
	)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if err := a.installDir(dir); err != nil {
			a.logger.Warn("model skipped",
				zap.String("unit", dir),
				zap.String("kind", stage.Kind(err)),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		installed++
	}
	return installed, errs
}

func (a *Archiver) installDir(dir string) error {
	src := filepath.Join(a.cfg.ExtractOutput, dir)

	for _, variant := range Variants {
		path := DescriptorPath(src, variant)
		changed, err := NormalizeFile(dir, path)
		if errors.Is(err, apperr.ErrMissingAsset) {
			a.logger.Warn("model variant missing",
				zap.String("unit", dir),
				zap.String("variant", variant),
				zap.String("kind", string(apperr.KindMissingAsset)),
			)
			continue
		}
		if err != nil {
			return err
		}
		a.logger.Debug("model normalized",
			zap.String("unit", dir),
			zap.String("variant", variant),
			zap.Bool("changed", changed),
		)
	}

	// Library folders are named by lowercase disk code.
	dst := filepath.Join(a.cfg.ResourcePath, strings.ToLower(dir))
	if err := fsutil.ReplaceDir(src, dst); err != nil {
		return apperr.New(apperr.KindMissingAsset, dir, "installing model").WithPath(dst).WithCause(err)
	}
	a.logger.Info("model installed", zap.String("unit", dir), zap.String("path", dst))
	return nil
}

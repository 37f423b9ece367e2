// Package pipeline runs the archival stages and the resolver against one
// configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gfres/internal/avatar"
	"gfres/internal/config"
	"gfres/internal/extractor"
	"gfres/internal/live2d"
	"gfres/internal/manifest"
	"gfres/internal/painting"
	"gfres/internal/resolve"
	"gfres/internal/spine"
	"gfres/internal/stage"
	"gfres/internal/state"
	"gfres/internal/tables"
)

type Stage string

const (
	StageLive2D   Stage = "live2d"
	StageAvatar   Stage = "avatar"
	StagePainting Stage = "painting"
	StageSpine    Stage = "spine"
)

// AllStages is the order archival stages run in.
var AllStages = []Stage{StageLive2D, StageAvatar, StagePainting, StageSpine}

// ParseStages validates stage names. No names selects every stage.
func ParseStages(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return AllStages, nil
	}
	selected := make(map[Stage]bool, len(names))
	for _, name := range names {
		s := Stage(strings.ToLower(strings.TrimSpace(name)))
		switch s {
		case StageLive2D, StageAvatar, StagePainting, StageSpine:
			selected[s] = true
		default:
			return nil, fmt.Errorf("unknown stage: %s", name)
		}
	}
	stages := make([]Stage, 0, len(selected))
	for _, s := range AllStages {
		if selected[s] {
			stages = append(stages, s)
		}
	}
	return stages, nil
}

type Options struct {
	Full   bool
	Stages []Stage
}

type Result struct {
	RunID    string
	Live2D   *live2d.Result
	Avatar   *stage.Result
	Painting *stage.Result
	Spine    *stage.Result
	Resolve  *resolve.Report
	Manifest *manifest.Manifest
	// Failures are stage-level errors, such as an unreadable input folder.
	Failures []error
	// TableProblems are script table fields that could not be decoded.
	TableProblems []error
}

// Errors returns every skipped unit and stage failure of the run.
func (r *Result) Errors() []error {
	var errs []error
	if r.Live2D != nil {
		errs = append(errs, r.Live2D.Errors...)
	}
	for _, res := range []*stage.Result{r.Avatar, r.Painting, r.Spine} {
		if res != nil {
			errs = append(errs, res.Errors...)
		}
	}
	if r.Resolve != nil {
		errs = append(errs, r.Resolve.Skipped...)
	}
	return append(errs, r.Failures...)
}

type Pipeline struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  extractor.Runner
	workers int
	runID   string
}

// New prepares a run. Every log line of the run carries its run_id.
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		runner: &extractor.ExecRunner{
			Command: cfg.Live2D.Extractor.Command,
			Args:    cfg.Live2D.Extractor.Args,
			Timeout: cfg.Live2D.Extractor.Timeout,
			Logger:  logger,
		},
		workers: workers,
		runID:   runID,
	}
}

// WithRunner replaces the extractor.
func (p *Pipeline) WithRunner(runner extractor.Runner) *Pipeline {
	p.runner = runner
	return p
}

func (p *Pipeline) RunID() string { return p.runID }

// Roots are the resource library directories of the config.
func Roots(cfg *config.Config) resolve.Roots {
	return resolve.Roots{
		Avatar:   cfg.Avatar.ResourcePath,
		Painting: cfg.Painting.ResourcePath,
		Live2D:   cfg.Live2D.ResourcePath,
		Spine:    cfg.Spine.ResourcePath,
	}
}

// Run archives and then resolves.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	result, err := p.Archive(ctx, opts)
	if err != nil {
		return result, err
	}
	if err := p.resolveInto(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// Archive runs the selected archival stages. The cache is flushed on every
// return path, including cancellation, so completed units are kept.
func (p *Pipeline) Archive(ctx context.Context, opts Options) (result *Result, err error) {
	stages := opts.Stages
	if len(stages) == 0 {
		stages = AllStages
	}
	result = &Result{RunID: p.runID}

	store, err := OpenStore(ctx, p.cfg.State)
	if err != nil {
		return result, err
	}
	cache, err := state.Open(ctx, store, state.Options{Full: opts.Full})
	if err != nil {
		store.Close(context.WithoutCancel(ctx))
		return result, err
	}
	defer func() {
		flushCtx := context.WithoutCancel(ctx)
		if flushErr := cache.Flush(flushCtx); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
		if closeErr := store.Close(flushCtx); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing state store: %w", closeErr))
		}
	}()

	p.logger.Info("archive started",
		zap.Bool("full", opts.Full),
		zap.Int("workers", p.workers),
		zap.String("state", p.cfg.State.Driver),
	)

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		stageErr := p.runStage(ctx, s, cache, result)
		if stageErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		p.logger.Error("stage failed", zap.String("stage", string(s)), zap.Error(stageErr))
		result.Failures = append(result.Failures, fmt.Errorf("%s: %w", s, stageErr))
	}
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, s Stage, cache *state.Cache, result *Result) error {
	logger := p.logger.With(zap.String("stage", string(s)))
	var err error
	switch s {
	case StageLive2D:
		result.Live2D, err = live2d.NewArchiver(p.cfg.Live2D, p.runner, cache, logger, p.workers).Run(ctx)
		if result.Live2D != nil {
			logger.Info("stage complete",
				zap.Int("extracted", result.Live2D.Extracted),
				zap.Int("unchanged", result.Live2D.Unchanged),
				zap.Int("installed", result.Live2D.Installed),
				zap.Int("errors", len(result.Live2D.Errors)),
			)
		}
		return err
	case StageAvatar:
		result.Avatar, err = avatar.New(p.cfg.Avatar, cache, logger, p.workers).Run(ctx)
		logStage(logger, result.Avatar)
	case StagePainting:
		result.Painting, err = painting.New(p.cfg.Painting, cache, logger, p.workers).Run(ctx)
		logStage(logger, result.Painting)
	case StageSpine:
		result.Spine, err = spine.New(p.cfg.Spine, logger, p.workers).Run(ctx)
		logStage(logger, result.Spine)
	}
	return err
}

func logStage(logger *zap.Logger, res *stage.Result) {
	if res == nil {
		return
	}
	logger.Info("stage complete",
		zap.Int("processed", res.Processed),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("ignored", res.Ignored),
		zap.Int("errors", len(res.Errors)),
	)
}

// Resolve loads the script tables, links them to the resource library and
// writes the manifest.
func (p *Pipeline) Resolve(ctx context.Context) (*Result, error) {
	result := &Result{RunID: p.runID}
	return result, p.resolveInto(ctx, result)
}

func (p *Pipeline) resolveInto(ctx context.Context, result *Result) error {
	guns, gunProblems, err := tables.LoadGuns(p.cfg.Tables.Guns)
	if err != nil {
		return fmt.Errorf("loading gun table: %w", err)
	}
	skins, skinProblems, err := tables.LoadSkins(p.cfg.Tables.Skins)
	if err != nil {
		return fmt.Errorf("loading skin table: %w", err)
	}
	result.TableProblems = append(gunProblems, skinProblems...)
	for _, problem := range result.TableProblems {
		p.logger.Warn("table field ignored", zap.Error(problem))
	}

	resolver := resolve.New(resolve.Options{
		Roots:        Roots(p.cfg),
		SpecialCodes: p.cfg.SpecialCodes,
		DefaultLabel: p.cfg.Labels.DefaultSkin,
		ModLabel:     p.cfg.Labels.ModSkin,
		Workers:      p.workers,
		Logger:       p.logger.With(zap.String("stage", "resolve")),
	})
	m, report, err := resolver.Resolve(ctx, guns, skins)
	result.Resolve = report
	if err != nil {
		return err
	}
	result.Manifest = m

	if err := manifest.Write(p.cfg.Manifest.Output, m); err != nil {
		return err
	}
	p.logger.Info("manifest written",
		zap.String("path", p.cfg.Manifest.Output),
		zap.Int("characters", report.Characters),
		zap.Int("skins", report.Skins),
		zap.Int("skipped", len(report.Skipped)),
	)
	return nil
}

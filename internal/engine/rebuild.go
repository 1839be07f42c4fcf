package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bianoble/conda-publish/internal/publish"
	"github.com/bianoble/conda-publish/internal/reconcile"
	"github.com/bianoble/conda-publish/internal/staging"
)

// RebuildOptions configures a rebuild.
type RebuildOptions struct {
	// PackagesDir is searched recursively for artifacts. Each artifact's
	// parent directory names its architecture.
	PackagesDir string

	// WorkDir is used instead of a temporary directory and is kept.
	WorkDir string

	// KeepWorkDir keeps the temporary directory.
	KeepWorkDir bool

	DryRun bool
}

// Rebuild stages the packages with the remote caches, reconciles the
// channel documents and publishes the result. The temporary work tree is
// removed on every exit path unless it is kept.
func (e *Engine) Rebuild(ctx context.Context, opts RebuildOptions) (res *RebuildResult, err error) {
	if e.Store == nil {
		return nil, ErrNoChannel
	}
	if e.Indexer == nil {
		return nil, fmt.Errorf("no indexer configured")
	}
	logger := e.logger("rebuild")

	pkgs, err := staging.FindPackages(opts.PackagesDir)
	if err != nil {
		return nil, &StepError{Step: StepFind, Err: err}
	}
	if len(pkgs) == 0 {
		return nil, &StepError{Step: StepFind, Err: &staging.InputError{Path: opts.PackagesDir, Reason: "no conda packages found"}}
	}
	logger.Info("found packages", "count", len(pkgs), "dir", opts.PackagesDir)

	work, keep, err := workDir(opts.WorkDir, opts.KeepWorkDir, "conda-index-*")
	if err != nil {
		return nil, err
	}
	res = &RebuildResult{Packages: pkgs, WorkDir: work, KeptWork: keep}
	defer cleanup(logger, work, keep)
	logger.Info("working directory", "path", work)

	res.Plan, err = e.assembler().Prepare(ctx, pkgs, work)
	if err != nil {
		return res, &StepError{Step: StepStage, Err: err}
	}
	e.Metrics.PackagesStaged(len(res.Plan.Staged))

	rec := reconcile.New(e.Indexer, e.logger("reconcile"))
	if e.Metrics != nil {
		rec.Observer = e.Metrics
	}
	res.Reconcile, err = rec.Reconcile(ctx, work, res.Plan.Archs)
	if err != nil {
		return res, &StepError{Step: StepReconcile, Err: err}
	}

	res.Publish, err = e.publisher(opts.DryRun).Publish(ctx, work, res.Plan.Archs)
	if err != nil {
		return res, &StepError{Step: StepPublish, Err: err}
	}
	if !opts.DryRun {
		e.Metrics.MarkSuccess(e.now())
	}
	logger.Info("rebuild complete",
		"archs", res.Plan.Archs,
		"uploaded", len(res.Publish.Items),
		"bytes", res.Publish.Bytes,
		"dry_run", opts.DryRun,
	)
	return res, nil
}

func (e *Engine) publisher(dryRun bool) *publish.Publisher {
	p := &publish.Publisher{Store: e.Store, Logger: e.logger("publish"), DryRun: dryRun}
	if e.Metrics != nil {
		p.Observer = e.Metrics
	}
	return p
}

// workDir returns the directory to work in and whether it is kept. An
// explicit dir is created if needed and always kept.
func workDir(explicit string, keep bool, pattern string) (string, bool, error) {
	if explicit != "" {
		if err := os.MkdirAll(explicit, 0755); err != nil {
			return "", false, fmt.Errorf("creating work dir: %w", err)
		}
		return explicit, true, nil
	}
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", false, fmt.Errorf("creating work dir: %w", err)
	}
	return dir, keep, nil
}

func cleanup(logger *slog.Logger, dir string, keep bool) {
	if keep {
		logger.Info("keeping work dir", "path", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("could not remove work dir", "path", dir, "error", err)
		return
	}
	logger.Debug("removed work dir", "path", dir)
}

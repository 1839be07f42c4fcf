// Package reconcile rebuilds a channel's documents in three indexer passes
// so that the result covers both freshly staged artifacts and everything the
// downloaded caches know was published before.
//
//	pass 1  index, updating the caches
//	pass 2  delete the generated *.json and *.html, index again
//	pass 3  flip every cache row back to stage fs, index read-only
//
// After pass 3 no cache row may remain in stage indexed. The caches are
// uploaded with the documents, and the next rebuild relies on finding every
// published artifact as an fs row.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bianoble/conda-publish/internal/cachedb"
	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/indexer"
	"github.com/bianoble/conda-publish/internal/sandbox"
)

// StageResetter manipulates the cache databases of a work tree.
type StageResetter interface {
	ResetIndexed(root string, archs []channel.Arch) (int, error)
	CountStage(root string, archs []channel.Arch, stage string) (int, error)
}

// Observer receives pass timings and reset counts, e.g. for metrics.
type Observer interface {
	ObservePass(pass int, d time.Duration)
	SetRowsReset(n int)
}

// PassError reports a failed reconciliation pass.
type PassError struct {
	Pass int
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("reconcile pass %d: %v", e.Pass, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// Result summarizes a reconciliation.
type Result struct {
	PassDurations [3]time.Duration
	// Removed lists the generated files deleted before pass 2, relative to
	// the root.
	Removed   []string
	RowsReset int
}

// Reconciler runs the three passes.
type Reconciler struct {
	Indexer  indexer.Indexer
	Cache    StageResetter
	Logger   *slog.Logger
	Observer Observer
}

// New returns a Reconciler using the cache databases under the work tree.
func New(ix indexer.Indexer, logger *slog.Logger) *Reconciler {
	return &Reconciler{Indexer: ix, Cache: cachedb.Tree{}, Logger: logger}
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// Reconcile runs the passes over root, whose architecture subtrees are
// archs. Any failure aborts the remaining passes.
func (r *Reconciler) Reconcile(ctx context.Context, root string, archs []channel.Arch) (*Result, error) {
	res := &Result{}
	logger := r.logger()

	steps := []func() error{
		func() error {
			return r.Indexer.Run(ctx, root, indexer.RunOptions{WriteCache: true})
		},
		func() error {
			removed, err := removeGenerated(root, archs)
			res.Removed = removed
			if err != nil {
				return err
			}
			logger.Info("removed generated index files", "count", len(removed))
			return r.Indexer.Run(ctx, root, indexer.RunOptions{WriteCache: true})
		},
		func() error {
			n, err := r.Cache.ResetIndexed(root, archs)
			if err != nil {
				return fmt.Errorf("resetting cache stages: %w", err)
			}
			res.RowsReset = n
			logger.Info("reset cache stages", "rows", n)
			if r.Observer != nil {
				r.Observer.SetRowsReset(n)
			}
			return r.Indexer.Run(ctx, root, indexer.RunOptions{WriteCache: false})
		},
	}

	for i, step := range steps {
		pass := i + 1
		if err := ctx.Err(); err != nil {
			return res, &PassError{Pass: pass, Err: err}
		}
		logger.Info("reconcile pass starting", "pass", pass)
		start := time.Now()
		err := step()
		res.PassDurations[i] = time.Since(start)
		if r.Observer != nil {
			r.Observer.ObservePass(pass, res.PassDurations[i])
		}
		if err != nil {
			return res, &PassError{Pass: pass, Err: err}
		}
		logger.Info("reconcile pass finished", "pass", pass, "duration", res.PassDurations[i])
	}

	left, err := r.Cache.CountStage(root, archs, cachedb.StageIndexed)
	if err != nil {
		return res, fmt.Errorf("checking cache stages: %w", err)
	}
	if left != 0 {
		return res, fmt.Errorf("reconcile: %d cache rows still in stage %q after the final pass", left, cachedb.StageIndexed)
	}
	return res, nil
}

// removeGenerated deletes *.json and *.html at the root and directly inside
// each architecture directory. Cache directories are never touched.
func removeGenerated(root string, archs []channel.Arch) ([]string, error) {
	var removed []string
	dirs := []string{"."}
	for _, a := range archs {
		dirs = append(dirs, string(a))
	}
	for _, dir := range dirs {
		names, err := sandbox.RemoveMatching(root, dir, "*.json", "*.html")
		for _, n := range names {
			removed = append(removed, filepath.ToSlash(filepath.Join(dir, n)))
		}
		if err != nil {
			return removed, fmt.Errorf("removing generated files in %s: %w", dir, err)
		}
	}
	return removed, nil
}

// Package engine runs the conda-publish pipelines: a full channel rebuild,
// a single-package patch, lock acquisition and remote discovery. Each
// pipeline wires the lower packages together and owns the cleanup of any
// temporary tree it creates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/clock"
	"github.com/bianoble/conda-publish/internal/config"
	"github.com/bianoble/conda-publish/internal/ghactions"
	"github.com/bianoble/conda-publish/internal/indexer"
	"github.com/bianoble/conda-publish/internal/lock"
	"github.com/bianoble/conda-publish/internal/logging"
	"github.com/bianoble/conda-publish/internal/metrics"
	"github.com/bianoble/conda-publish/internal/remote"
	"github.com/bianoble/conda-publish/internal/staging"
)

// ErrNoChannel is returned by pipelines that need the remote channel when
// no channel URL is configured.
var ErrNoChannel = errors.New("channel url is not configured")

// Engine holds the collaborators shared by the pipelines. Store, Indexer and
// Lock may be nil; pipelines that need them fail with a clear error.
type Engine struct {
	Store   remote.Store
	Archs   *channel.ArchSet
	Indexer indexer.Indexer
	Lock    lock.Coordinator
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	Clock   clock.Clock

	// LockRepo and LockWorkflow are recorded in lock receipts.
	LockRepo     string
	LockWorkflow string
}

// Credentials are the secrets passed on the command line or in the
// environment. They are never read from the config file.
type Credentials struct {
	// Channel is "user:password" for the channel repository.
	Channel string
	// GitHub authenticates the Actions API and is forwarded to the lock
	// workflow.
	GitHub string
}

// Open builds an Engine from cfg. The remote store is opened only when a
// channel URL is set and the lock coordinator only when a GitHub token is
// given.
func Open(ctx context.Context, cfg *config.Config, creds Credentials, logger *slog.Logger, rec *metrics.Recorder) (*Engine, error) {
	archs, err := cfg.ArchSet()
	if err != nil {
		return nil, fmt.Errorf("architectures: %w", err)
	}
	ix, err := NewIndexer(cfg.Indexer, archs, logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		Archs:        archs,
		Indexer:      ix,
		Metrics:      rec,
		Logger:       logger,
		LockRepo:     cfg.Lock.Repo,
		LockWorkflow: cfg.Lock.Workflow,
	}

	if cfg.Channel.URL != "" {
		e.Store, err = remote.Open(ctx, cfg.Channel.URL, creds.Channel)
		if err != nil {
			return nil, err
		}
	}

	if creds.GitHub != "" {
		client, err := ghactions.NewClient(ghactions.Config{
			BaseURL: cfg.Lock.APIURL,
			Token:   creds.GitHub,
			Logger:  logging.Component(logger, "github"),
		})
		if err != nil {
			e.Close()
			return nil, err
		}
		e.Lock = &lock.WorkflowCoordinator{
			Actions:       client,
			Repo:          cfg.Lock.Repo,
			Workflow:      cfg.Lock.Workflow,
			Ref:           cfg.Lock.Ref,
			DispatchToken: creds.GitHub,
			Logger:        logging.Component(logger, "lock"),
		}
	}
	return e, nil
}

// NewIndexer returns the indexer selected by cfg.
func NewIndexer(cfg config.Indexer, archs *channel.ArchSet, logger *slog.Logger) (indexer.Indexer, error) {
	switch cfg.Type {
	case "", config.IndexerBuiltin:
		return &indexer.Builtin{Archs: archs, Title: cfg.Title, Logger: logging.Component(logger, "indexer")}, nil
	case config.IndexerCondaIndex:
		return &indexer.CondaIndex{Python: cfg.Python, Logger: logging.Component(logger, "indexer")}, nil
	default:
		return nil, fmt.Errorf("unknown indexer type %q", cfg.Type)
	}
}

// Close releases the remote store.
func (e *Engine) Close() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close()
}

func (e *Engine) archSet() *channel.ArchSet {
	if e.Archs == nil {
		return channel.DefaultArchSet()
	}
	return e.Archs
}

func (e *Engine) logger(component string) *slog.Logger {
	return logging.Component(e.Logger, component)
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) assembler() *staging.Assembler {
	return &staging.Assembler{Store: e.Store, Archs: e.archSet(), Logger: e.logger("staging")}
}

// Discover returns the architectures the remote channel already has.
func (e *Engine) Discover(ctx context.Context) ([]channel.Arch, error) {
	if e.Store == nil {
		return nil, ErrNoChannel
	}
	return e.assembler().DiscoverRemote(ctx)
}

// Package condapublish provides the public Go library API for conda-publish.
//
// conda-publish maintains a conda channel that several uncoordinated CI
// jobs publish to: it rebuilds the channel index from the new packages and
// the published caches, patches single packages into the existing index,
// and serializes writers through a lock held by a remote workflow run.
//
// # Basic Usage
//
//	client, err := condapublish.New(ctx, condapublish.Options{
//	    ConfigPath:  "conda-publish.yaml",
//	    Credentials: condapublish.Credentials{Channel: "user:pass"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Rebuild and publish the channel index
//	result, err := client.Rebuild(ctx, condapublish.RebuildOptions{PackagesDir: "dist"})
package condapublish

import (
	"context"
	"log/slog"

	"github.com/bianoble/conda-publish/internal/config"
	"github.com/bianoble/conda-publish/internal/engine"
	"github.com/bianoble/conda-publish/internal/metrics"
)

// Rebuilder regenerates and publishes the whole channel index.
type Rebuilder interface {
	Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildResult, error)
}

// Patcher merges one package into the channel index.
type Patcher interface {
	Patch(ctx context.Context, opts PatchOptions) (*PatchResult, error)
}

// Locker waits for the channel lock.
type Locker interface {
	Acquire(ctx context.Context, opts AcquireOptions) (*AcquireResult, error)
}

// Options configures a conda-publish client.
type Options struct {
	// ConfigPath is the path to the config file. Default: "conda-publish.yaml".
	// A missing default file is not an error.
	ConfigPath string

	// NoInherit skips the system and user config layers.
	NoInherit bool

	// ChannelURL overrides channel.url from the config.
	ChannelURL string

	Credentials Credentials

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Metrics, when set, records the client's activity.
	Metrics *metrics.Recorder
}

// Client is the main entry point for the conda-publish library.
// It implements Rebuilder, Patcher and Locker.
type Client struct {
	engine *engine.Engine
	config *config.Config
}

// New loads the configuration and opens the channel.
func New(ctx context.Context, opts Options) (*Client, error) {
	path := opts.ConfigPath
	required := path != ""
	if path == "" {
		path = config.FileName
	}

	cfg, _, err := config.LoadLayered(config.DiscoverOptions{
		ProjectPath:     path,
		ProjectRequired: required,
		NoInherit:       opts.NoInherit,
	})
	if err != nil {
		return nil, err
	}
	if opts.ChannelURL != "" {
		cfg, err = config.Merge(cfg, &config.Config{Channel: config.Channel{URL: opts.ChannelURL}})
		if err != nil {
			return nil, err
		}
		if errs := config.Validate(cfg); len(errs) > 0 {
			return nil, &config.ValidationError{Errors: errs}
		}
	}

	eng, err := engine.Open(ctx, cfg, opts.Credentials, opts.Logger, opts.Metrics)
	if err != nil {
		return nil, err
	}
	return &Client{engine: eng, config: cfg}, nil
}

// Close releases the channel connection.
func (c *Client) Close() error {
	return c.engine.Close()
}

// Rebuild regenerates the channel index from the packages in
// opts.PackagesDir and the published caches, then uploads it.
func (c *Client) Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildResult, error) {
	return c.engine.Rebuild(ctx, opts)
}

// Patch merges one package into the channel documents.
func (c *Client) Patch(ctx context.Context, opts PatchOptions) (*PatchResult, error) {
	return c.engine.Patch(ctx, opts)
}

// Acquire waits for the channel lock. The timeout defaults to the
// configured lock timeout.
func (c *Client) Acquire(ctx context.Context, opts AcquireOptions) (*AcquireResult, error) {
	if opts.Timeout == 0 {
		opts.Timeout = c.config.Lock.Timeout
	}
	return c.engine.Acquire(ctx, opts)
}

// Architectures returns the names of the architectures present in the
// remote channel.
func (c *Client) Architectures(ctx context.Context) ([]string, error) {
	archs, err := c.engine.Discover(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = string(a)
	}
	return names, nil
}

var (
	_ Rebuilder = (*Client)(nil)
	_ Patcher   = (*Client)(nil)
	_ Locker    = (*Client)(nil)
)


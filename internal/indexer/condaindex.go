package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultPython is the interpreter used when CondaIndex.Python is empty.
const DefaultPython = "python3"

// CondaIndex runs "python -m conda_index" over the channel root.
type CondaIndex struct {
	Python string
	Logger *slog.Logger
}

// Args returns the command line for one run.
func (c *CondaIndex) Args(root string, opts RunOptions) []string {
	python := c.Python
	if python == "" {
		python = DefaultPython
	}
	cacheFlag := "--no-update-cache"
	if opts.WriteCache {
		cacheFlag = "--update-cache"
	}
	return []string{python, "-m", "conda_index", root, cacheFlag, "--channeldata", "--no-rss"}
}

// Run executes conda_index on root, returning an *ExitError on failure.
func (c *CondaIndex) Run(ctx context.Context, root string, opts RunOptions) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	args := c.Args(root, opts)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	logger.Debug("conda-index finished", "args", strings.Join(args, " "), "output", string(output))
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExitError{Args: args, Code: exitErr.ExitCode(), Output: string(output)}
	}
	return fmt.Errorf("running %s: %w", args[0], err)
}

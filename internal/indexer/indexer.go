// Package indexer defines the contract of a channel indexer and provides two
// implementations: CondaIndex, which runs the external conda-index tool, and
// Builtin, a Go indexer producing the same documents from the same cache.
package indexer

import (
	"context"
	"fmt"
	"strings"
)

// RunOptions controls one indexer invocation.
type RunOptions struct {
	// WriteCache lets the indexer record what it processed in each
	// architecture's cache database. When false the cache is only read.
	WriteCache bool
}

// Indexer rebuilds the channel documents under root: repodata.json,
// repodata_from_packages.json and index.html in every architecture
// directory, and channeldata.json and index.html at the root.
type Indexer interface {
	Run(ctx context.Context, root string, opts RunOptions) error
}

// ExitError reports an indexer process that exited unsuccessfully.
type ExitError struct {
	Args   []string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ":\n" + out
	}
	return msg
}

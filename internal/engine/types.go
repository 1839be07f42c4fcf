package engine

import (
	"github.com/bianoble/conda-publish/internal/lock"
	"github.com/bianoble/conda-publish/internal/patch"
	"github.com/bianoble/conda-publish/internal/publish"
	"github.com/bianoble/conda-publish/internal/reconcile"
	"github.com/bianoble/conda-publish/internal/staging"
)

// Pipeline steps named in StepError.
const (
	StepFind      = "find packages"
	StepStage     = "stage"
	StepReconcile = "reconcile"
	StepPublish   = "publish"
	StepFetch     = "fetch"
	StepPatch     = "patch"
)

// StepError reports the pipeline step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RebuildResult holds the outcome of a rebuild.
type RebuildResult struct {
	Packages  []string
	WorkDir   string
	KeptWork  bool
	Plan      *staging.Plan
	Reconcile *reconcile.Result
	Publish   *publish.Result
}

// PatchResult holds the outcome of a patch.
type PatchResult struct {
	Patch     *patch.Result
	OutputDir string
	// Fetched lists the remote documents downloaded before patching.
	Fetched []string
	// Publish is set when the patched documents were uploaded.
	Publish *publish.Result
}

// AcquireResult holds the outcome of a lock acquisition.
type AcquireResult struct {
	Token       *lock.Token
	Outcome     string
	ReceiptPath string
}

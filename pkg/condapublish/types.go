package condapublish

import (
	"github.com/bianoble/conda-publish/internal/engine"
	"github.com/bianoble/conda-publish/internal/lock"
)

// Type aliases re-export engine types as the public API.
// Users import "github.com/bianoble/conda-publish/pkg/condapublish" and use
// condapublish.RebuildResult, condapublish.PatchOptions, etc.

type RebuildOptions = engine.RebuildOptions
type RebuildResult = engine.RebuildResult
type PatchOptions = engine.PatchOptions
type PatchResult = engine.PatchResult
type AcquireOptions = engine.AcquireOptions
type AcquireResult = engine.AcquireResult
type Credentials = engine.Credentials
type StepError = engine.StepError

type LockDescriptor = lock.Descriptor
type LockToken = lock.Token

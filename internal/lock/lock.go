// Package lock serializes writers to a shared channel through a remote
// lock: a workflow run in a CI system that the system itself runs one at a
// time.
//
// Mutual exclusion rests entirely on the remote workflow system running at
// most one instance of the lock workflow at once (its concurrency group).
// There is no lease renewal and no fencing token. A timeout therefore means
// only that this caller stopped waiting; the resource may still be locked.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a step of the lock protocol.
type State string

// Lock protocol states. Dispatched, Discovered and Polling are transient;
// the rest are terminal.
const (
	StateDispatched State = "dispatched"
	StateDiscovered State = "discovered"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// Terminal reports whether s ends the protocol.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

func (s State) valid() bool {
	switch s {
	case StateDispatched, StateDiscovered, StatePolling, StateSucceeded, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// Lock outcomes other than success.
var (
	ErrDispatch      = errors.New("lock: dispatch failed")
	ErrNotDiscovered = errors.New("lock: could not find dispatched run")
	ErrDenied        = errors.New("lock: remote run did not succeed")
	ErrTimeout       = errors.New("lock: timed out waiting for remote run")
)

// DefaultTimeout is how long Acquire waits for the remote run to finish.
const DefaultTimeout = 30 * time.Minute

// Descriptor identifies the resource to lock and who is asking.
type Descriptor struct {
	ResourceURL        string
	ResourceCredential string
	ArtifactName       string
	CallerRunID        string
	CallerRepo         string
}

// Validate returns an error naming every missing field.
func (d Descriptor) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"resource URL", d.ResourceURL},
		{"resource credential", d.ResourceCredential},
		{"artifact name", d.ArtifactName},
		{"caller run id", d.CallerRunID},
		{"caller repo", d.CallerRepo},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("lock descriptor is missing %v", missing)
	}
	return nil
}

// Token records the remote run backing a lock attempt and what was last
// observed of it.
type Token struct {
	RunID        int64
	RunURL       string
	State        State
	Status       string
	Conclusion   string
	DispatchedAt time.Time
	FinishedAt   time.Time
	Waited       time.Duration
	Polls        int
}

// Coordinator acquires the channel lock.
type Coordinator interface {
	// Acquire blocks until the lock is granted, refused, or timeout passes.
	// The returned token reflects the last observed state and is non-nil
	// whenever a run was dispatched, including on error.
	Acquire(ctx context.Context, d Descriptor, timeout time.Duration) (*Token, error)
}

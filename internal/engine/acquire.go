package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bianoble/conda-publish/internal/lock"
)

// ErrNoLock is returned by Acquire when no coordinator is configured.
var ErrNoLock = errors.New("lock: a GitHub token is required to acquire the channel lock")

// AcquireOptions configures a lock acquisition.
type AcquireOptions struct {
	Descriptor lock.Descriptor
	// Timeout defaults to lock.DefaultTimeout.
	Timeout time.Duration
	// ReceiptPath, when set, receives a YAML record of the attempt whenever
	// a run was dispatched.
	ReceiptPath string
}

// Acquire waits for the channel lock.
func (e *Engine) Acquire(ctx context.Context, opts AcquireOptions) (*AcquireResult, error) {
	if e.Lock == nil {
		return nil, ErrNoLock
	}
	logger := e.logger("lock")

	tok, err := e.Lock.Acquire(ctx, opts.Descriptor, opts.Timeout)
	res := &AcquireResult{Token: tok, Outcome: Outcome(err)}
	e.Metrics.LockOutcome(res.Outcome)

	if tok != nil && opts.ReceiptPath != "" {
		r := lock.NewReceipt(tok, opts.Descriptor, e.LockRepo, e.LockWorkflow)
		if saveErr := lock.SaveReceipt(opts.ReceiptPath, r); saveErr != nil {
			saveErr = fmt.Errorf("writing lock receipt: %w", saveErr)
			if err == nil {
				return res, saveErr
			}
			logger.Error("could not write lock receipt", "error", saveErr)
		} else {
			res.ReceiptPath = opts.ReceiptPath
		}
	}
	if err != nil {
		return res, err
	}
	logger.Info("lock acquired", "run_id", tok.RunID, "url", tok.RunURL, "waited", tok.Waited)
	return res, nil
}

// Outcome classifies the result of a lock attempt for metrics and output.
func Outcome(err error) string {
	switch {
	case err == nil:
		return string(lock.StateSucceeded)
	case errors.Is(err, lock.ErrDenied):
		return string(lock.StateFailed)
	case errors.Is(err, lock.ErrTimeout):
		return string(lock.StateTimedOut)
	case errors.Is(err, lock.ErrNotDiscovered):
		return "not_discovered"
	case errors.Is(err, lock.ErrDispatch):
		return "dispatch_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

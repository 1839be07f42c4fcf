package lock

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bianoble/conda-publish/internal/clock"
	"github.com/bianoble/conda-publish/internal/ghactions"
)

// Defaults for the workflow-backed lock.
const (
	DefaultRepo     = "ecmwf/reusable-workflows"
	DefaultWorkflow = "conda-index-lock.yml"
	DefaultRef      = "main"
)

// ActionsAPI is the subset of the GitHub Actions client the lock uses.
type ActionsAPI interface {
	DispatchWorkflow(ctx context.Context, repo, workflow string, req ghactions.DispatchRequest) error
	ListWorkflowRuns(ctx context.Context, repo, workflow string, perPage int) ([]ghactions.WorkflowRun, error)
	GetWorkflowRun(ctx context.Context, repo string, runID int64) (*ghactions.WorkflowRun, error)
}

// Timing holds the waits of the lock protocol.
type Timing struct {
	// Settle is the pause between dispatch and the first run listing.
	Settle time.Duration
	// DiscoveryAttempts and DiscoveryInterval bound the search for the run.
	DiscoveryAttempts int
	DiscoveryInterval time.Duration
	// DiscoverySkew is how far before the dispatch a run's creation time
	// may lie and still count as ours.
	DiscoverySkew time.Duration
	// ListSize is how many recent runs each listing returns.
	ListSize int
	// InitialPoll is the first status poll interval; each following one is
	// 1.5 times longer, truncated to whole seconds, up to MaxPoll.
	InitialPoll time.Duration
	MaxPoll     time.Duration
}

// DefaultTiming returns the production waits.
func DefaultTiming() Timing {
	return Timing{
		Settle:            5 * time.Second,
		DiscoveryAttempts: 30,
		DiscoveryInterval: time.Second,
		DiscoverySkew:     30 * time.Second,
		ListSize:          5,
		InitialPoll:       10 * time.Second,
		MaxPoll:           60 * time.Second,
	}
}

// NextPollInterval grows a poll interval by half, truncated to whole
// seconds and capped at max: 10s, 15s, 22s, 33s, 49s, 60s.
func NextPollInterval(cur, max time.Duration) time.Duration {
	next := time.Duration(int64(cur.Seconds()*1.5)) * time.Second
	if next > max {
		return max
	}
	return next
}

// WorkflowCoordinator implements Coordinator by dispatching a lock workflow
// and following its run to completion.
type WorkflowCoordinator struct {
	Actions  ActionsAPI
	Repo     string
	Workflow string
	Ref      string

	// DispatchToken is forwarded to the lock workflow as its gh_pat input.
	DispatchToken string

	Clock  clock.Clock
	Logger *slog.Logger
	Timing Timing

	// OnTransition, when set, is called on every state change with a copy
	// of the token.
	OnTransition func(State, Token)
}

func (c *WorkflowCoordinator) defaults() (clock.Clock, *slog.Logger, Timing) {
	clk := c.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timing := c.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	return clk, logger, timing
}

func (c *WorkflowCoordinator) repo() string {
	if c.Repo == "" {
		return DefaultRepo
	}
	return c.Repo
}

func (c *WorkflowCoordinator) workflow() string {
	if c.Workflow == "" {
		return DefaultWorkflow
	}
	return c.Workflow
}

func (c *WorkflowCoordinator) ref() string {
	if c.Ref == "" {
		return DefaultRef
	}
	return c.Ref
}

// Acquire dispatches the lock workflow, finds the run it created, and polls
// it with growing intervals until it completes or timeout elapses.
func (c *WorkflowCoordinator) Acquire(ctx context.Context, d Descriptor, timeout time.Duration) (*Token, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clk, logger, timing := c.defaults()
	repo, workflow := c.repo(), c.workflow()
	logger = logger.With("repo", repo, "workflow", workflow)

	tok := &Token{DispatchedAt: clk.Now()}
	err := c.Actions.DispatchWorkflow(ctx, repo, workflow, ghactions.DispatchRequest{
		Ref: c.ref(),
		Inputs: map[string]string{
			"nexus_url":             d.ResourceURL,
			"nexus_token":           d.ResourceCredential,
			"package_artifact_name": d.ArtifactName,
			"caller_run_id":         d.CallerRunID,
			"caller_repo":           d.CallerRepo,
			"gh_pat":                c.DispatchToken,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	c.transition(logger, StateDispatched, tok)

	if err := clock.Sleep(ctx, clk, timing.Settle); err != nil {
		return tok, err
	}

	run, err := c.discover(ctx, clk, timing, repo, workflow, tok.DispatchedAt)
	if err != nil {
		return tok, err
	}
	tok.RunID = run.ID
	tok.RunURL = run.HTMLURL
	c.transition(logger, StateDiscovered, tok)

	return c.poll(ctx, clk, logger, timing, repo, tok, timeout)
}

// discover returns the newest listed run created no earlier than the
// dispatch time minus the allowed skew.
func (c *WorkflowCoordinator) discover(ctx context.Context, clk clock.Clock, timing Timing, repo, workflow string, dispatchedAt time.Time) (*ghactions.WorkflowRun, error) {
	cutoff := dispatchedAt.Add(-timing.DiscoverySkew)
	for attempt := 0; attempt < timing.DiscoveryAttempts; attempt++ {
		runs, err := c.Actions.ListWorkflowRuns(ctx, repo, workflow, timing.ListSize)
		if err != nil {
			return nil, fmt.Errorf("lock: listing runs: %w", err)
		}
		for i := range runs {
			if !runs[i].CreatedAt.Before(cutoff) {
				return &runs[i], nil
			}
		}
		if err := clock.Sleep(ctx, clk, timing.DiscoveryInterval); err != nil {
			return nil, err
		}
	}
	return nil, ErrNotDiscovered
}

func (c *WorkflowCoordinator) poll(ctx context.Context, clk clock.Clock, logger *slog.Logger, timing Timing, repo string, tok *Token, timeout time.Duration) (*Token, error) {
	c.transition(logger, StatePolling, tok)
	interval := timing.InitialPoll

	for tok.Waited < timeout {
		run, err := c.Actions.GetWorkflowRun(ctx, repo, tok.RunID)
		if err != nil {
			return tok, fmt.Errorf("lock: reading run %d: %w", tok.RunID, err)
		}
		tok.Polls++
		tok.Status = run.Status
		tok.Conclusion = run.Conclusion
		logger.Info("lock run status",
			"run_id", tok.RunID,
			"status", run.Status,
			"conclusion", run.Conclusion,
			"elapsed", tok.Waited,
		)

		if run.Completed() {
			tok.FinishedAt = clk.Now()
			if run.Conclusion == ghactions.ConclusionSuccess {
				c.transition(logger, StateSucceeded, tok)
				return tok, nil
			}
			c.transition(logger, StateFailed, tok)
			return tok, fmt.Errorf("%w: conclusion %q (%s)", ErrDenied, run.Conclusion, tok.RunURL)
		}

		if err := clock.Sleep(ctx, clk, interval); err != nil {
			return tok, err
		}
		tok.Waited += interval
		interval = NextPollInterval(interval, timing.MaxPoll)
	}

	tok.FinishedAt = clk.Now()
	c.transition(logger, StateTimedOut, tok)
	return tok, fmt.Errorf("%w after %s (%s)", ErrTimeout, timeout, tok.RunURL)
}

func (c *WorkflowCoordinator) transition(logger *slog.Logger, s State, tok *Token) {
	tok.State = s
	logger.Info("lock state", "state", string(s), "run_id", tok.RunID)
	if c.OnTransition != nil {
		c.OnTransition(s, *tok)
	}
}

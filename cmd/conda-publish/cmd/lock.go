package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/bianoble/conda-publish/internal/engine"
	"github.com/bianoble/conda-publish/internal/lock"
	"github.com/spf13/cobra"
)

var (
	lockArtifactName string
	lockCallerRunID  string
	lockCallerRepo   string
	lockTimeout      time.Duration
	lockReceipt      string
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage the channel lock",
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Wait until this job holds the channel lock",
	Long: `Dispatches the lock workflow, finds the run it started and waits for it to
finish. The lock is held once the run succeeds; the workflow system runs at most
one lock run at a time, so concurrent publishers queue behind each other.

A timeout only means this job stopped waiting. The channel may still be locked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		timeout := lockTimeout
		if timeout == 0 {
			timeout = s.cfg.Lock.Timeout
		}
		desc := lock.Descriptor{
			ResourceURL:        s.cfg.Channel.URL,
			ResourceCredential: credentials().Channel,
			ArtifactName:       lockArtifactName,
			CallerRunID:        lockCallerRunID,
			CallerRepo:         lockCallerRepo,
		}

		info("Requesting lock for %s (timeout %s)", desc.ResourceURL, timeout)
		result, err := s.engine.Acquire(cmd.Context(), engine.AcquireOptions{
			Descriptor:  desc,
			Timeout:     timeout,
			ReceiptPath: lockReceipt,
		})
		if result != nil {
			if tok := result.Token; tok != nil {
				info("Lock run: %s", tok.RunURL)
				detail("state: %s, polls: %d, waited: %s", tok.State, tok.Polls, tok.Waited.Round(time.Second))
			}
			if result.ReceiptPath != "" {
				detail("receipt: %s", result.ReceiptPath)
			}
		}
		if err != nil {
			return fmt.Errorf("lock %s: %w", outcomeOf(result), err)
		}
		info("Lock acquired.")
		return nil
	},
}

var lockShowCmd = &cobra.Command{
	Use:   "show <receipt>",
	Short: "Print a saved lock receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := lock.LoadReceipt(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Workflow:   %s/%s\n", r.Repo, r.Workflow)
		fmt.Printf("State:      %s\n", r.State)
		if r.Conclusion != "" {
			fmt.Printf("Conclusion: %s\n", r.Conclusion)
		}
		if r.RunURL != "" {
			fmt.Printf("Run:        %s\n", r.RunURL)
		}
		if r.Artifact != "" {
			fmt.Printf("Artifact:   %s\n", r.Artifact)
		}
		if r.CallerRepo != "" {
			fmt.Printf("Caller:     %s run %s\n", r.CallerRepo, r.CallerRunID)
		}
		fmt.Printf("Dispatched: %s\n", r.DispatchedAt.Format(time.RFC3339))
		if !r.FinishedAt.IsZero() {
			fmt.Printf("Finished:   %s\n", r.FinishedAt.Format(time.RFC3339))
		}
		if r.Waited != "" {
			fmt.Printf("Waited:     %s\n", r.Waited)
		}
		return nil
	},
}

func outcomeOf(r *engine.AcquireResult) string {
	if r == nil {
		return "error"
	}
	return r.Outcome
}

func init() {
	lockAcquireCmd.Flags().StringVar(&lockArtifactName, "artifact-name", "", "name of the artifact being published")
	lockAcquireCmd.Flags().StringVar(&lockCallerRunID, "caller-run-id", os.Getenv("GITHUB_RUN_ID"), "run id of the publishing job")
	lockAcquireCmd.Flags().StringVar(&lockCallerRepo, "caller-repo", os.Getenv("GITHUB_REPOSITORY"), "repository of the publishing job")
	lockAcquireCmd.Flags().DurationVar(&lockTimeout, "timeout", 0, "how long to wait (default: lock.timeout from config)")
	lockAcquireCmd.Flags().StringVar(&lockReceipt, "receipt", "", "write a YAML receipt of the attempt to this file")

	lockCmd.AddCommand(lockAcquireCmd)
	lockCmd.AddCommand(lockShowCmd)
	rootCmd.AddCommand(lockCmd)
}

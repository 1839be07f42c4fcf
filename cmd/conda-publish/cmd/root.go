package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// Global flags.
var (
	configPath   string
	noInherit    bool
	channelURL   string
	channelToken string
	githubToken  string
	logFormat    string
	logLevel     string
	metricsFile  string
	verbose      bool
	quiet        bool
)

var rootCmd = &cobra.Command{
	Use:   "conda-publish",
	Short: "Publish packages to a shared conda channel",
	Long: `conda-publish maintains a conda channel that several CI jobs publish to.
It rebuilds the channel index from new packages and the caches left by earlier
publishes, patches single packages into an existing index, and serializes
writers through a lock held by a remote workflow run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("conda-publish %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "conda-publish.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&noInherit, "no-inherit", false, "ignore system and user config files")
	rootCmd.PersistentFlags().StringVar(&channelURL, "channel-url", "", "channel base URL (overrides channel.url)")
	rootCmd.PersistentFlags().StringVar(&channelToken, "channel-token", "", "channel credential user:password (default $NEXUS_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&githubToken, "gh-token", "", "GitHub token for the channel lock (default $GH_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-textfile", "", "write prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			errorf("interrupted: %v", err)
		} else {
			errorf("%v", err)
		}
		return err
	}
	return nil
}

// ExitCode maps the result of Execute to the process exit status.
func ExitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return ExitOK
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

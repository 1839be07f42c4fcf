package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initForce bool

// initTemplate is the default conda-publish.yaml scaffold.
const initTemplate = `# conda-publish configuration
# Credentials are read from --channel-token/$NEXUS_TOKEN and
# --gh-token/$GH_TOKEN, never from this file.
version: 1

channel:
  url: https://nexus.example.com/repository/conda-internal
  # Subdirectories the channel may contain.
  # architectures: [linux-64, osx-64, osx-arm64, win-64, noarch]

indexer:
  type: builtin
  # Use the conda-index package instead:
  # type: conda-index
  # python: python3
  # title: My channel

lock:
  repo: ecmwf/reusable-workflows
  workflow: conda-index-lock.yml
  ref: main
  timeout: 30m

# logging:
#   format: json
#   level: info

# metrics:
#   textfile: /var/lib/node_exporter/conda_publish.prom
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter conda-publish.yaml configuration",
	Long: `Creates a conda-publish.yaml file in the current directory with a commented
template for the channel, indexer and lock settings.

Use --force to overwrite an existing configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := configPath
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Set channel.url to your channel")
		info("  2. Run 'conda-publish discover' to check access")
		info("  3. Run 'conda-publish lock acquire' then 'conda-publish rebuild' in CI")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/bianoble/conda-publish/internal/engine"
	"github.com/spf13/cobra"
)

var (
	rebuildPackageDir  string
	rebuildWorkDir     string
	rebuildKeepWorkDir bool
	rebuildDryRun      bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the channel index with new packages and publish it",
	Long: `Finds every .tar.bz2 and .conda package under --package-dir (each in a
directory named after its architecture), downloads the cache database of every
architecture the channel has, regenerates repodata.json, channeldata.json and
index.html in three indexing passes, and uploads the packages, documents and
caches.

Run it while holding the channel lock ('conda-publish lock acquire').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rebuildPackageDir == "" {
			return fmt.Errorf("--package-dir is required")
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		info("Searching for packages in: %s", rebuildPackageDir)
		result, err := s.engine.Rebuild(cmd.Context(), engine.RebuildOptions{
			PackagesDir: rebuildPackageDir,
			WorkDir:     rebuildWorkDir,
			KeepWorkDir: rebuildKeepWorkDir,
			DryRun:      rebuildDryRun,
		})
		if result != nil {
			printRebuild(result)
		}
		if err != nil {
			return err
		}

		if rebuildDryRun {
			info("Dry run, nothing uploaded.")
		}
		info("")
		info("Rebuild complete: %d package(s), %d architecture(s), %d file(s) uploaded (%s).",
			len(result.Packages), len(result.Plan.Archs), len(result.Publish.Items), humanSize(result.Publish.Bytes))
		return nil
	},
}

func printRebuild(r *engine.RebuildResult) {
	info("Found %d package(s):", len(r.Packages))
	for _, p := range r.Packages {
		rel, err := filepath.Rel(rebuildPackageDir, p)
		if err != nil {
			rel = p
		}
		info("  - %s", rel)
	}
	if r.KeptWork {
		info("Working directory kept: %s", r.WorkDir)
	} else {
		detail("working directory: %s", r.WorkDir)
	}
	if r.Plan != nil {
		info("Architectures: %v", r.Plan.Archs)
		detail("existing remotely: %v", r.Plan.RemoteArchs)
		detail("caches downloaded: %v", r.Plan.Caches)
	}
	if r.Reconcile != nil {
		for i, d := range r.Reconcile.PassDurations {
			detail("pass %d: %s", i+1, d)
		}
		detail("cache rows reset: %d", r.Reconcile.RowsReset)
	}
	if r.Publish != nil {
		for _, it := range r.Publish.Items {
			detail("%-8s %s (%s)", it.Kind, it.Key, humanSize(it.Size))
		}
	}
}

func init() {
	rebuildCmd.Flags().StringVar(&rebuildPackageDir, "package-dir", "", "directory to search for conda packages")
	rebuildCmd.Flags().StringVar(&rebuildWorkDir, "work-dir", "", "working directory (default: a temporary directory)")
	rebuildCmd.Flags().BoolVar(&rebuildKeepWorkDir, "keep-work-dir", false, "keep the working directory after completion")
	rebuildCmd.Flags().BoolVar(&rebuildDryRun, "dry-run", false, "rebuild locally but do not upload")
	rootCmd.AddCommand(rebuildCmd)
}

package cmd

import (
	"strings"

	"github.com/bianoble/conda-publish/internal/engine"
	"github.com/spf13/cobra"
)

var (
	patchSubdir      string
	patchRepodataDir string
	patchOutputDir   string
	patchFetch       bool
	patchDryRun      bool
)

var patchCmd = &cobra.Command{
	Use:   "patch <package>",
	Short: "Merge one package into existing channel documents",
	Long: `Adds a single package to {subdir}/repodata.json and channeldata.json without
rebuilding the index. Other entries are left untouched and the cache database
is not updated, so a later 'rebuild' is still needed to keep the caches in step.

By default the documents are read from --repodata-dir and written to
--output-dir (default: the same directory). With --fetch the current
documents are downloaded from the channel, and the package and patched
documents are uploaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		result, err := s.engine.Patch(cmd.Context(), engine.PatchOptions{
			Package:     args[0],
			Subdir:      patchSubdir,
			RepodataDir: patchRepodataDir,
			OutputDir:   patchOutputDir,
			Fetch:       patchFetch,
			DryRun:      patchDryRun,
		})
		if err != nil {
			return err
		}

		p := result.Patch
		action := "Added"
		if p.Replaced {
			action = "Replaced"
		}
		info("%s %s in %s", action, p.Filename, p.Arch)
		if p.NewRepodata {
			info("  created new repodata.json")
		}
		if p.NewChanneldata {
			info("  created new channeldata.json")
		}
		info("  packages: %d, packages.conda: %d", p.Packages, p.PackagesConda)
		info("  channeldata: %d package(s), subdirs: %s", p.ChannelNames, strings.Join(p.Subdirs, ", "))
		for _, w := range p.Written {
			detail("wrote %s", w)
		}
		if result.Publish != nil {
			verb := "Uploaded"
			if result.Publish.DryRun {
				verb = "Would upload"
			}
			info("%s %d file(s) (%s)", verb, len(result.Publish.Items), humanSize(result.Publish.Bytes))
		} else {
			info("Output: %s", result.OutputDir)
		}
		return nil
	},
}

func init() {
	patchCmd.Flags().StringVar(&patchSubdir, "subdir", "", "architecture subdirectory (default: the package's parent directory)")
	patchCmd.Flags().StringVar(&patchRepodataDir, "repodata-dir", ".", "directory containing the current documents")
	patchCmd.Flags().StringVar(&patchOutputDir, "output-dir", "", "directory for the updated documents (default: --repodata-dir)")
	patchCmd.Flags().BoolVar(&patchFetch, "fetch", false, "download the documents from the channel and upload the result")
	patchCmd.Flags().BoolVar(&patchDryRun, "dry-run", false, "with --fetch, do not upload")
	rootCmd.AddCommand(patchCmd)
}

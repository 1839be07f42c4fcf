package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the architectures the channel already has",
	Long: `Probes {arch}/repodata.json for every configured architecture and prints
those that exist. A rebuild always covers these, even without new packages
for them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		archs, err := s.engine.Discover(cmd.Context())
		if err != nil {
			return err
		}
		if len(archs) == 0 {
			info("No architectures published at %s", s.cfg.Channel.URL)
			return nil
		}
		for _, a := range archs {
			fmt.Println(a)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

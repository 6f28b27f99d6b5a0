package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/output"
	"github.com/hanulsoft/scenarium/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			if !verbose {
				out.Printf("scenarium %s", version.Short())
				return nil
			}
			info := version.GetInfo()
			out.Printf("scenarium %s", info.Version)
			out.Printf("  commit: %s", info.Commit)
			out.Printf("  built:  %s", info.Date)
			out.Printf("  go:     %s", info.GoVersion)
			out.Printf("  platform: %s/%s", info.OS, info.Arch)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show build details")

	return cmd
}

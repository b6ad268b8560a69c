package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			b := opts.build
			fmt.Fprintf(cmd.OutOrStdout(), "switchboard %s (commit %s, built %s, %s)\n",
				orDefault(b.Version, "dev"), orDefault(b.Commit, "unknown"), orDefault(b.Date, "unknown"), runtime.Version())
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/switchboard/internal/ticket"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "sync <tickets.yaml>",
		Short: "Sync a ticket file through every active adapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.startApp(cmd)
			if err != nil {
				return err
			}
			defer stopApp(cmd, a)

			n, err := a.Sync(cmd.Context(), ticket.NewFileSource(args[0]))
			if err != nil {
				if n == 0 {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d tickets from %s\n", n, args[0])

			if query == "" {
				return nil
			}
			keys, err := a.Search(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(keys) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no tickets match %q\n", query)
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "search the synced tickets")
	return cmd
}

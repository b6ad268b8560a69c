package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/switchboard/internal/ticket"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		ticketsPath string
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start switchboard and keep it running until interrupted",
		Long: `Start every enabled adapter and supervise them until SIGINT or SIGTERM.

With --tickets the file is synced once at startup and again every
--interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.startApp(cmd)
			if err != nil {
				return err
			}
			defer stopApp(cmd, a)

			ctx := cmd.Context()
			fmt.Fprintf(cmd.OutOrStdout(), "switchboard running with %d adapters\n", a.Orchestrator().Count())

			if ticketsPath == "" {
				<-ctx.Done()
				return nil
			}

			src := ticket.NewFileSource(ticketsPath)
			syncOnce := func() {
				if _, err := a.Sync(ctx, src); err != nil && ctx.Err() == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			syncOnce()
			if interval <= 0 {
				<-ctx.Done()
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					syncOnce()
				}
			}
		},
	}

	cmd.Flags().StringVar(&ticketsPath, "tickets", "", "YAML ticket file to sync")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "resync interval, 0 to sync once")
	return cmd
}

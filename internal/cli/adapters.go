package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/switchboard/internal/app"
)

func newAdaptersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the adapters switchboard can build",
		Long: `List every built-in and scripted adapter in the registration table with
its version, dependencies and declared capabilities. Disabled adapters are
marked with a dash.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Shutdown(context.WithoutCancel(cmd.Context())) }()

			w := cmd.OutOrStdout()
			for _, id := range a.Table().IDs() {
				ad, err := a.Table().Build(id)
				if err != nil {
					fmt.Fprintf(w, "! %s: %v\n", id, err)
					continue
				}
				meta := ad.Metadata()

				mark := "+"
				if !cfg.IsEnabled(id) {
					mark = "-"
				}
				line := fmt.Sprintf("%s %s %s", mark, cell(headerStyle, 10, id), cell(plainStyle, 8, meta.Version))
				if len(meta.Dependencies) > 0 {
					line += mutedStyle.Render(" requires " + strings.Join(meta.Dependencies, ","))
				}
				fmt.Fprintln(w, line)
				if meta.Description != "" {
					fmt.Fprintf(w, "    %s\n", meta.Description)
				}
				if names := meta.CapabilityNames(); len(names) > 0 {
					fmt.Fprintf(w, "    capabilities: %s\n", strings.Join(names, ", "))
				}
			}
			return nil
		},
	}
}

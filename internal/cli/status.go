package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/switchboard/internal/app"
	"github.com/dshills/switchboard/internal/capability"
)

type adapterView struct {
	ID           string   `json:"id"`
	Version      string   `json:"version"`
	State        string   `json:"state"`
	Health       string   `json:"health"`
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities"`
	Issues       []string `json:"issues,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type statusView struct {
	HostVersion string        `json:"host_version"`
	Adapters    []adapterView `json:"adapters"`
	Published   uint64        `json:"events_published"`
	Executed    uint64        `json:"handlers_executed"`
	Errors      uint64        `json:"handler_errors"`
	Circuits    uint64        `json:"circuits_opened"`
	Subscribers int           `json:"subscriptions"`
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Start the adapters and report their state and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.startApp(cmd)
			if err != nil {
				return err
			}
			defer stopApp(cmd, a)

			st, err := a.Status(cmd.Context())
			if err != nil {
				return err
			}
			view := buildStatusView(st)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printStatus(cmd.OutOrStdout(), view, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output status as JSON")
	return cmd
}

func buildStatusView(st app.Status) statusView {
	integrations := make(map[string]capability.IntegrationStatus, len(st.Integrations))
	for _, in := range st.Integrations {
		integrations[in.ID] = in
	}

	view := statusView{
		HostVersion: st.HostVersion,
		Published:   st.Bus.EventsPublished,
		Executed:    st.Bus.HandlersExecuted,
		Errors:      st.Bus.HandlerErrors,
		Circuits:    st.Bus.CircuitsOpened,
		Subscribers: st.Bus.Subscriptions,
	}
	for _, info := range st.Adapters {
		v := adapterView{
			ID:      info.Metadata.ID,
			Version: info.Metadata.Version,
			State:   info.State.String(),
			Health:  info.Health.Status.String(),
			Issues:  info.Health.Issues,
		}
		for _, c := range info.Capabilities {
			v.Capabilities = append(v.Capabilities, c.Name)
		}
		if in, ok := integrations[v.ID]; ok {
			v.Available = in.Available
		}
		if info.Err != nil {
			v.Error = info.Err.Error()
		}
		view.Adapters = append(view.Adapters, v)
	}
	return view
}

func printStatus(w io.Writer, view statusView, st app.Status) {
	fmt.Fprintf(w, "%s  host %s\n\n", headerStyle.Render("SWITCHBOARD"), view.HostVersion)
	fmt.Fprintf(w, "%s%s%s%s%s\n",
		cell(headerStyle, 12, "ADAPTER"),
		cell(headerStyle, 10, "VERSION"),
		cell(headerStyle, 14, "STATE"),
		cell(headerStyle, 11, "HEALTH"),
		headerStyle.Render("CAPABILITIES"))

	for i, v := range view.Adapters {
		info := st.Adapters[i]
		fmt.Fprintf(w, "%s%s%s%s%s\n",
			cell(plainStyle, 12, v.ID),
			cell(plainStyle, 10, v.Version),
			cell(stateStyle(info.State), 14, v.State),
			cell(healthStyle(info.Health.Status), 11, v.Health),
			strings.Join(v.Capabilities, ", "))
		for _, issue := range v.Issues {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render("- "+issue))
		}
		if v.Error != "" {
			fmt.Fprintf(w, "  %s\n", healthStyle(capability.StatusUnhealthy).Render("error: "+v.Error))
		}
	}

	fmt.Fprintf(w, "\n%s\n", mutedStyle.Render(fmt.Sprintf(
		"events %d  handlers %d  errors %d  circuits opened %d  subscriptions %d",
		view.Published, view.Executed, view.Errors, view.Circuits, view.Subscribers)))
}

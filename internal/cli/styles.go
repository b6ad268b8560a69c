package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/capability"
)

var (
	healthyColor   = lipgloss.Color("#10B981")
	degradedColor  = lipgloss.Color("#F59E0B")
	unhealthyColor = lipgloss.Color("#F87171")
	mutedColor     = lipgloss.Color("#9CA3AF")

	headerStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	plainStyle    = lipgloss.NewStyle()
)

func healthStyle(s capability.Status) lipgloss.Style {
	switch s {
	case capability.StatusHealthy:
		return lipgloss.NewStyle().Foreground(healthyColor)
	case capability.StatusDegraded:
		return lipgloss.NewStyle().Foreground(degradedColor)
	case capability.StatusUnhealthy:
		return lipgloss.NewStyle().Foreground(unhealthyColor)
	default:
		return mutedStyle
	}
}

func stateStyle(s adapter.State) lipgloss.Style {
	switch s {
	case adapter.StateActive:
		return lipgloss.NewStyle().Foreground(healthyColor)
	case adapter.StateError:
		return lipgloss.NewStyle().Foreground(unhealthyColor)
	case adapter.StatePaused, adapter.StateReady:
		return lipgloss.NewStyle().Foreground(degradedColor)
	default:
		return mutedStyle
	}
}

// cell pads s to width using style.
func cell(style lipgloss.Style, width int, s string) string {
	return style.Width(width).Render(s)
}

// Package cli implements the switchboard command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/switchboard/internal/app"
	"github.com/dshills/switchboard/internal/config"
)

// BuildInfo is set via ldflags in main.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type rootOptions struct {
	configPath string
	logLevel   string
	build      BuildInfo
}

// NewRootCommand builds the switchboard command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	opts := &rootOptions{build: build}

	root := &cobra.Command{
		Use:   "switchboard",
		Short: "Event bus and adapter orchestrator for ticket integrations",
		Long: `Switchboard hosts integration adapters on a typed event bus. It activates
adapters in dependency order, tracks their capabilities and health, and
fans synced tickets out to every active adapter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default is $SWITCHBOARD_CONFIG or the user config dir)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(opts),
		newSyncCommand(opts),
		newStatusCommand(opts),
		newAdaptersCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, build BuildInfo) error {
	return NewRootCommand(build).ExecuteContext(ctx)
}

// resolveConfigPath picks the flag, then $SWITCHBOARD_CONFIG, then the
// default path if it exists.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if p := os.Getenv(config.EnvConfigPath); p != "" {
		return p
	}
	if p := config.DefaultPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// startApp loads configuration, builds the application and starts it.
// Adapter failures are reported on stderr and do not stop the command.
func (o *rootOptions) startApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Start(cmd.Context()); err != nil {
		if errors.Is(err, app.ErrShutdown) || errors.Is(err, app.ErrAlreadyStarted) {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return a, nil
}

func stopApp(cmd *cobra.Command, a *app.App) {
	if err := a.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: shutdown: %v\n", err)
	}
}

// ABOUTME: Entry point for the pause-notify command
// ABOUTME: Dispatches to watch, relay, token, inbox, init, and health subcommands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pause-notify/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                            _   _  __
 _ __   __ _ _   _ ___  ___       _ __   ___ | |_(_)/ _|_   _
| '_ \ / _' | | | / __|/ _ \_____| '_ \ / _ \| __| | |_| | | |
| |_) | (_| | |_| \__ \  __/_____| | | | (_) | |_| |  _| |_| |
| .__/ \__,_|\__,_|___/\___|     |_| |_|\___/ \__|_|_|  \__, |
|_|                                                     |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pause-notify",
		Short:         "Comment notifications for paused items",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("config", "", "config file (default $"+config.EnvConfigPath+" or ~/.config/pause-notify/config.yaml)")

	root.AddCommand(newWatchCmd())
	root.AddCommand(newRelayCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newInboxCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newHealthCmd())

	return root
}

// configPath returns the --config flag, falling back to the default location.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return config.DefaultPath()
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

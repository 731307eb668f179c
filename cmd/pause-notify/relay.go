// ABOUTME: relay subcommand: serves per-user comment streams over SSE

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pause-notify/internal/auth"
	"github.com/2389/pause-notify/internal/config"
	"github.com/2389/pause-notify/internal/realtime"
)

func newRelayCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the comment relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Relay.HTTPAddr = addr
			}
			if err := cfg.ValidateRelay(); err != nil {
				return fmt.Errorf("invalid config %s: %w", path, err)
			}
			return runRelay(cmd.Context(), cfg, path, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides relay.http_addr)")
	return cmd
}

func runRelay(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	logger := setupLogger(cfg.Logging, os.Stderr)

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:  %s\n", path)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:    %s\n\n", cfg.Relay.HTTPAddr)

	hub := realtime.NewHub(logger)
	srv, err := realtime.NewServer(realtime.ServerConfig{
		Addr:         cfg.Relay.HTTPAddr,
		Hub:          hub,
		Verifier:     auth.NewJWTVerifier([]byte(cfg.Relay.JWTSecret)),
		PingInterval: cfg.Relay.PingInterval,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting relay", "config", path, "http_addr", cfg.Relay.HTTPAddr)
	return srv.Run(ctx)
}

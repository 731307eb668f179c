// ABOUTME: watch subcommand: subscribes to the relay and shows comment notifications
// ABOUTME: Wires permission, subscription, dedupe, notifiers, and the orchestrator together

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pause-notify/internal/config"
	"github.com/2389/pause-notify/internal/dedupe"
	"github.com/2389/pause-notify/internal/identity"
	"github.com/2389/pause-notify/internal/notify"
	"github.com/2389/pause-notify/internal/orchestrator"
	"github.com/2389/pause-notify/internal/permission"
	"github.com/2389/pause-notify/internal/realtime"
	"github.com/2389/pause-notify/internal/store"
	"github.com/2389/pause-notify/internal/subscription"
)

func newWatchCmd() *cobra.Command {
	var user, mode string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch for new comments and show notifications",
		Long: `Subscribes to the relay as the configured user and shows a notification
for every new comment. Send SIGHUP to retry after notifications were disabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if user != "" {
				cfg.Identity.UserID = user
			}
			if mode != "" {
				cfg.Permission.Mode = mode
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if err := cfg.ValidateWatch(); err != nil {
				return fmt.Errorf("invalid config %s: %w", path, err)
			}
			return runWatch(cmd.Context(), cfg, path, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user to watch as (overrides identity.user_id)")
	cmd.Flags().StringVar(&mode, "permission", "", "permission mode: prompt, granted or denied")
	return cmd
}

// runWatch runs until ctx ends. path is re-read on SIGHUP; empty disables
// reloading.
func runWatch(ctx context.Context, cfg *config.Config, path string, in io.Reader, out io.Writer) error {
	logger := setupLogger(cfg.Logging, os.Stderr)

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "User:  %s\n", cfg.Identity.UserID)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Feed:  %s\n\n", cfg.Feed.URL)

	notifier, closeNotifier, err := buildNotifier(cfg, out, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	transport := realtime.NewSSETransport(cfg.Feed.URL, realtime.StaticToken(cfg.Identity.Token), nil, logger)
	subs := subscription.NewManager(transport, subscription.Options{
		MaxAttempts:     cfg.Subscription.MaxAttempts,
		InitialInterval: cfg.Subscription.InitialBackoff,
		MaxInterval:     cfg.Subscription.MaxBackoff,
		Logger:          logger,
	})

	gate := permission.NewGate(buildPlatform(cfg.Permission.Mode, in, out), logger)
	orch, err := orchestrator.New(orchestrator.Config{
		Gate:          gate,
		Subscriptions: subs,
		Dedupe:        dedupe.NewDeduplicator(cfg.Dedupe.Capacity),
		Notifier:      notifier,
		QueueSize:     cfg.Subscription.QueueSize,
		OnStatus:      func(s orchestrator.Status) { printStatus(out, s) },
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer orch.Teardown()

	provider := identity.NewProvider(identity.ID(cfg.Identity.UserID))
	unbind := orch.Bind(provider)
	defer unbind()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-hup:
			reaffirm(path, gate, orch, provider, logger)
		}
	}
}

// reaffirm applies a granted or denied permission mode edited into the
// config at path, then re-affirms the current identity so a disabled
// session retries.
func reaffirm(path string, gate *permission.Gate, orch *orchestrator.Orchestrator, provider *identity.Provider, logger *slog.Logger) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			logger.Warn("reloading config", "path", path, "error", err)
		} else if s, err := permission.ParseState(cfg.Permission.Mode); err == nil && s != permission.Unknown {
			revoked := s == permission.Denied && gate.State() != permission.Denied
			gate.Observe(s)
			if revoked {
				// a live session only stops on an identity change
				orch.SetIdentity("")
			}
		}
	}

	id, _ := provider.Current()
	logger.Info("retrying", "user_id", id.String())
	orch.SetIdentity(id)
}

// buildPlatform maps the configured mode to a permission platform.
func buildPlatform(mode string, in io.Reader, out io.Writer) permission.Platform {
	switch mode {
	case config.PermissionGranted:
		return permission.Static(permission.Granted)
	case config.PermissionDenied:
		return permission.Static(permission.Denied)
	default:
		return &permission.Terminal{In: in, Out: out}
	}
}

// buildNotifier assembles the configured notification targets. The returned
// func releases resources they hold.
func buildNotifier(cfg *config.Config, out io.Writer, logger *slog.Logger) (notify.Notifier, func(), error) {
	var targets notify.Fanout
	closers := []func(){}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Notify.Terminal.Enabled {
		targets = append(targets, notify.NewTerminalNotifier(out, cfg.Notify.Terminal.Bell))
	}

	if cfg.Notify.Inbox.Enabled {
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening inbox: %w", err)
		}
		closers = append(closers, func() { s.Close() })
		targets = append(targets, notify.NewInboxNotifier(s))
	}

	if cfg.Notify.Matrix.Enabled {
		m, err := notify.NewMatrixNotifier(notify.MatrixConfig{
			Homeserver:  cfg.Notify.Matrix.Homeserver,
			UserID:      cfg.Notify.Matrix.UserID,
			AccessToken: cfg.Notify.Matrix.AccessToken,
			RoomID:      cfg.Notify.Matrix.RoomID,
		})
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		targets = append(targets, m)
	}

	if len(targets) == 0 {
		targets = append(targets, notify.NewLogNotifier(logger))
	}
	return targets, cleanup, nil
}

func printStatus(out io.Writer, s orchestrator.Status) {
	var c *color.Color
	switch s.State {
	case orchestrator.Active:
		c = color.New(color.FgGreen)
	case orchestrator.Disabled:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgHiBlack)
	}

	c.Fprintf(out, "  ● %s", s.State)
	if !s.Identity.IsZero() {
		fmt.Fprintf(out, " %s", s.Identity)
	}
	if s.Err != nil {
		fmt.Fprintf(out, ": %v", s.Err)
	}
	fmt.Fprintln(out)
}

// ABOUTME: inbox subcommand: lists stored notifications and marks them read

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pause-notify/internal/store"
)

type inboxOptions struct {
	user     string
	unread   bool
	limit    int
	markRead bool
}

func newInboxCmd() *cobra.Command {
	var opts inboxOptions

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List delivered notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if opts.user == "" {
				opts.user = cfg.Identity.UserID
			}
			if opts.user == "" {
				return errors.New("--user is required when identity.user_id is not configured")
			}

			s, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("opening inbox: %w", err)
			}
			defer s.Close()

			return runInbox(cmd.Context(), s, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "user whose inbox to show (default identity.user_id)")
	cmd.Flags().BoolVar(&opts.unread, "unread", false, "only show unread notifications")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum notifications to show (0 for all)")
	cmd.Flags().BoolVar(&opts.markRead, "mark-read", false, "mark all notifications read after listing")
	return cmd
}

func runInbox(ctx context.Context, s store.Store, opts inboxOptions, out io.Writer) error {
	list, err := s.ListNotifications(ctx, opts.user, store.ListOptions{UnreadOnly: opts.unread, Limit: opts.limit})
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)

	if len(list) == 0 {
		gray.Fprintln(out, "  No notifications.")
	}
	for _, n := range list {
		marker := "  "
		if n.Unread() {
			marker = bold.Sprint("● ")
		}
		fmt.Fprintf(out, "%s%s %s", marker, gray.Sprint(n.CreatedAt.Local().Format("Jan 02 15:04")), cyan.Sprint(n.AuthorID))
		if n.ThreadID != "" {
			fmt.Fprintf(out, " %s", gray.Sprintf("[%s]", n.ThreadID))
		}
		fmt.Fprintf(out, "  %s\n", n.Summary)
	}

	if opts.markRead {
		changed, err := s.MarkAllRead(ctx, opts.user)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(out, "  ✓ Marked %d notification(s) read\n", changed)
	}
	return nil
}

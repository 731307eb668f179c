// ABOUTME: init subcommand: writes a starter config interactively
// ABOUTME: Generates a relay secret and a token for the chosen user

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/pause-notify/internal/auth"
	"github.com/2389/pause-notify/internal/config"
	"github.com/2389/pause-notify/internal/identity"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new config file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), configPath(cmd))
		},
	}
}

func runInit(in io.Reader, out io.Writer, defaultConfigPath string) error {
	reader := bufio.NewReader(in)
	def := config.Default()

	fmt.Fprintln(out, "pause-notify configuration setup")
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Identity ---")
	userID := strings.TrimSpace(prompt(reader, out, "Your user id", os.Getenv("USER")))
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	fmt.Fprintln(out, "\n--- Relay ---")
	httpAddr := prompt(reader, out, "Relay listen address", def.Relay.HTTPAddr)
	feedURL := prompt(reader, out, "Relay URL for watching", "http://"+httpAddr)

	fmt.Fprintln(out, "\n--- Notifications ---")
	mode := prompt(reader, out, "Permission mode (prompt/granted/denied)", def.Permission.Mode)
	dbPath := prompt(reader, out, "Inbox database path", def.Database.Path)
	bell := isYes(prompt(reader, out, "Ring terminal bell?", "no"))

	fmt.Fprintln(out, "\n--- Logging ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", def.Logging.Level)
	logFormat := prompt(reader, out, "Log format (text/json)", def.Logging.Format)

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	token, err := auth.NewJWTVerifier([]byte(jwtSecret)).Generate(identity.ID(userID), defaultTokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	var cfg strings.Builder
	cfg.WriteString("# pause-notify configuration\n")
	cfg.WriteString("# Generated by pause-notify init\n\n")

	cfg.WriteString("identity:\n")
	cfg.WriteString(fmt.Sprintf("  user_id: %q\n", userID))
	cfg.WriteString(fmt.Sprintf("  token: %q\n\n", token))

	cfg.WriteString("feed:\n")
	cfg.WriteString(fmt.Sprintf("  url: %q\n\n", feedURL))

	cfg.WriteString("permission:\n")
	cfg.WriteString(fmt.Sprintf("  mode: %q\n\n", mode))

	cfg.WriteString("relay:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n\n", jwtSecret))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	cfg.WriteString("notify:\n")
	cfg.WriteString("  terminal:\n")
	cfg.WriteString("    enabled: true\n")
	cfg.WriteString(fmt.Sprintf("    bell: %t\n", bell))
	cfg.WriteString("  inbox:\n")
	cfg.WriteString("    enabled: true\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// holds the relay secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if _, err := config.Load(outputFile); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start:")
	fmt.Fprintln(out, "  pause-notify relay     # run the relay")
	fmt.Fprintln(out, "  pause-notify watch     # watch for comments")

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes"
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pixelhamza/lbms-frontend/library"
)

const version = "0.1.0"

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg library.Config

	cmd := &cobra.Command{
		Use:   "lbms",
		Short: "Terminal client for the library management service",
		Long: `lbms logs in to a library management service, lists and searches the
catalog, creates, edits and deletes books, and borrows them while showing your
borrow history and the most borrowed titles.

Run without a subcommand to start the interactive shell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			var err error
			cfg, err = resolveConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cfg, os.Stdin, os.Stdout)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("api-url", "", "Base URL of the library API (env LBMS_API_URL)")
	pf.String("db", "", "Local storage file (env LBMS_DB_PATH)")
	pf.String("log-file", "", "Log file, or - for stderr (env LBMS_LOG_FILE)")
	pf.String("log-level", "", "debug, info, warn or error (env LBMS_LOG_LEVEL)")

	cmd.AddCommand(newLogoutCmd(&cfg))

	return cmd
}

// resolveConfig applies flags that were set explicitly on top of the file and
// environment layers.
func resolveConfig(cmd *cobra.Command) (library.Config, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	cfg, err := library.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	for name, dst := range map[string]*string{
		"api-url":   &cfg.APIURL,
		"db":        &cfg.DBPath,
		"log-file":  &cfg.LogFile,
		"log-level": &cfg.LogLevel,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogoutCmd(cfg *library.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := library.NewDatabase(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open local storage: %w", err)
			}
			defer db.Close()

			if err := db.Remove(library.TokenKey); err != nil {
				return fmt.Errorf("remove token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

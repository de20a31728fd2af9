package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/viant/vigil"
)

var (
	output  string
	cfgFile string
	apiURL  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Approval gating and circuit breaking for a strategy agent",
	Long: `vigil runs business strategies behind a human approval gate and pauses
strategies that keep failing.

Commands:
  serve        Run the HTTP API, expiry sweep and scheduled runs
  run          Run one or all active strategies
  approvals    Inspect and decide approval requests
  strategies   List, activate and deactivate strategies`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (json, table, yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file URL (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Base URL of a running 'vigil serve' to decide approvals through")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func loadConfig(ctx context.Context) (*vigil.Config, error) {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return vigil.DefaultConfig(), nil
	}
	return vigil.LoadConfig(ctx, path)
}

func newService(ctx context.Context) (*vigil.Service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	srv, err := vigil.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("start vigil: %w", err)
	}
	return srv, nil
}

// currentUser is the default decision identity.
func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

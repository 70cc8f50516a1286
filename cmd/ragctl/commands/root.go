package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/observability/logging"
)

var (
	version  = "dev"
	logLevel string
	asJSON   bool
)

func SetVersion(v string) {
	version = v
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Operate the campus assistant corpora from the command line",
		Long: `ragctl builds the primary and alternative indexes, asks questions
locally or through the NATS workers, prints ingestion reports and serves the
assistant as an MCP tool over stdio.

Configuration is read from the environment and .env, like the api and worker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print machine readable JSON")

	cmd.AddCommand(
		NewBuildCmd(),
		NewAskCmd(),
		NewReportCmd(),
		NewMCPCmd(),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads configuration and installs a JSON logger on stderr, so
// stdout stays free for command output and the MCP stdio protocol.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "ragctl", level))
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

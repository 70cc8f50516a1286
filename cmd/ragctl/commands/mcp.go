package commands

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/campus-assistant/internal/adapters/mcp"
	"github.com/kirillkom/campus-assistant/internal/bootstrap"
)

func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as an MCP tool over stdio",
		Long: `Runs the assistant as an MCP (Model Context Protocol) server on stdio,
exposing the ask_institution tool to LLM agents. Both indexes are loaded (or
built) before the server starts.`,
		Example: `  ragctl mcp

  # claude_desktop_config.json:
  # {"mcpServers": {"campus": {"command": "ragctl", "args": ["mcp"]}}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := bootstrap.New(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			mcpServer := mcpadapter.NewServer(app.Manager, cfg.Policy.Institution, version)

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.ServeStdio(mcpServer)
			}()

			slog.Info("mcp_server_started")
			select {
			case <-ctx.Done():
				return nil
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("mcp server: %w", err)
				}
				return nil
			}
		},
	}
}

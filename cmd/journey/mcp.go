package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvandessel/journeygraph/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run journey as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes the journey graph over stdio.

Tools:

  • journey_graph_get - Return the current graph and its ETag
  • journey_graph_put - Replace the graph, optionally guarded by if_match

The server communicates via JSON-RPC 2.0 over stdin/stdout. Logs go to
stderr.

Example client config:

  {
    "mcpServers": {
      "journey": {
        "command": "journey",
        "args": ["mcp-server"],
        "cwd": "${workspaceFolder}"
      }
    }
  }
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, repo, err := openRepository(ctx, cfg, root, logger)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "journey",
				Version: version,
			}, s, repo, logger)
			if err != nil {
				s.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			// Blocks until the client disconnects or SIGTERM/SIGINT.
			if err := server.Run(ctx); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}

	return cmd
}

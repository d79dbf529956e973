package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/sanitize"
	"github.com/nvandessel/journeygraph/internal/store"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current journey graph",
		Long: `Print the stored journey graph as JSON.

Without --json, a short summary is printed instead.

Examples:
  journey get --json > graph.json
  journey get --root ./site`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, root, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			s, repo, err := openRepository(ctx, cfg, root, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			g, err := repo.Read(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			}

			fmt.Fprintf(out, "Journey graph: %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
			if g.UpdatedAt != nil {
				fmt.Fprintf(out, "  Updated: %s\n", g.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			} else {
				fmt.Fprintln(out, "  Updated: never")
			}
			fmt.Fprintf(out, "  ETag:    %s\n", journey.ETag(g))
			return nil
		},
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Replace the journey graph from a JSON file",
		Long: `Replace the stored journey graph with {nodes, edges} read from a file.

The body is validated the same way as an HTTP PUT: both nodes and edges must
be JSON arrays. Use --file - to read from stdin.

Examples:
  journey put --file graph.json
  cat graph.json | journey put --file -
  journey put --file graph.json --if-match '"3f2a..."'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			ifMatch, _ := cmd.Flags().GetString("if-match")
			jsonOut, _ := cmd.Flags().GetBool("json")

			body, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			nodes, edges, err := journey.DecodePayload(body)
			if err != nil {
				return err
			}

			cfg, root, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			s, repo, err := openRepository(ctx, cfg, root, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			write := repo.Write
			if ifMatch != "" {
				write = func(ctx context.Context, nodes, edges []json.RawMessage) (store.Graph, error) {
					return repo.WriteIfMatch(ctx, ifMatch, nodes, edges)
				}
			}
			g, err := write(ctx, nodes, edges)
			if errors.Is(err, journey.ErrPreconditionFailed) {
				return fmt.Errorf("graph changed since %s was read: %w", ifMatch, err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"ok":         true,
					"etag":       journey.ETag(g),
					"node_count": len(g.Nodes),
					"edge_count": len(g.Edges),
				})
			}
			fmt.Fprintf(out, "✓ Journey graph written: %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
			return nil
		},
	}

	cmd.Flags().String("file", "", "JSON file with {nodes, edges}, or - for stdin (required)")
	cmd.Flags().String("if-match", "", "Only write if the current graph has this ETag")
	cmd.MarkFlagRequired("file")

	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	file = sanitize.FilePath(file)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}

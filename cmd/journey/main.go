package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvandessel/journeygraph/internal/config"
	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/logging"
	"github.com/nvandessel/journeygraph/internal/store"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "journey",
		Short: "Journey graph store and HTTP endpoint",
		Long: `journey persists a user-journey graph (nodes and edges) as a single JSON
document and serves it over HTTP for a visual editor.

Every read returns the whole graph and every write replaces it.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <root>/journey.yaml if present)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newServeCmd(),
		newGetCmd(),
		newPutCmd(),
		newBackupCmd(),
		newRestoreFromBackupCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			if jsonOut {
				json.NewEncoder(out).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(out, "journey version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory in the project root",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := store.EnsureDataDir(root)
			if err != nil {
				return err
			}
			if err := store.EnsureGitignore(dir); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{
					"status": "initialized",
					"path":   dir,
				})
			}
			fmt.Fprintf(out, "Initialized %s\n", dir)
			return nil
		},
	}
}

// loadConfig reads the layered config for the command's --root and
// --config flags.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, _ := cmd.Flags().GetString("root")
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(root, path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, root, nil
}

// newLogger builds the command logger. Logs go to stderr so stdout stays
// clean for command output.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

// openRepository opens the configured store and wraps it in a Repository.
// The caller closes the returned store.
func openRepository(ctx context.Context, cfg config.Config, root string, logger *zap.Logger) (store.GraphStore, *journey.Repository, error) {
	policy, err := journey.ParseReadPolicy(cfg.Store.ReadPolicy)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(ctx, cfg.StoreOptions(root))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	repo := journey.NewRepository(s,
		journey.WithReadPolicy(policy),
		journey.WithLogger(logger))
	return s, repo, nil
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DataDirName is the directory, relative to the project root, that holds
	// the journey graph and its companions.
	DataDirName = "data"

	// GraphFileName is the well-known name of the file-backed graph document.
	GraphFileName = "journey-graph.json"

	// SQLiteFileName is the database used by the sqlite backend.
	SQLiteFileName = "journey.db"
)

// DataDir returns the data directory for the given project root.
func DataDir(projectRoot string) string {
	return filepath.Join(projectRoot, DataDirName)
}

// DefaultGraphPath returns the fixed location of the graph document.
func DefaultGraphPath(projectRoot string) string {
	return filepath.Join(DataDir(projectRoot), GraphFileName)
}

// DefaultSQLitePath returns the location of the sqlite backend database.
func DefaultSQLitePath(projectRoot string) string {
	return filepath.Join(DataDir(projectRoot), SQLiteFileName)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir(projectRoot string) (string, error) {
	dir := DataDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// dataGitignore is the default .gitignore content for data directories.
const dataGitignore = `# SQLite backend files (the JSON document is the portable format)
journey.db
journey.db-shm
journey.db-wal

# Backups are rotated locally
backups/

# Temp files left by interrupted writes
.journey-graph-*.tmp
`

// EnsureGitignore creates a .gitignore in the given data directory if one
// does not already exist.
func EnsureGitignore(dataDir string) error {
	gitignorePath := filepath.Join(dataDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		return nil // already exists, respect user customizations
	}
	if err := os.WriteFile(gitignorePath, []byte(dataGitignore), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	return nil
}

// Package backup snapshots the journey graph to files and restores it.
//
// Restores are wholesale: the backed-up nodes and edges replace whatever the
// store holds, and updatedAt is stamped with the restore time.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/store"
)

const (
	backupPrefix = "journey-backup-"
	timeLayout   = "20060102-150405.000"
)

// DefaultKeep is how many backups RotateBackups keeps by default.
const DefaultKeep = 10

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Format        int
	NodesRestored int
	EdgesRestored int
	BackupTime    time.Time
}

// DefaultBackupDir returns the backup directory for a project root.
func DefaultBackupDir(projectRoot string) string {
	return filepath.Join(store.DataDir(projectRoot), "backups")
}

// GenerateBackupPath returns a timestamped V2 backup path inside dir. Names
// have millisecond resolution and skip forward past existing files, so they
// stay unique and sort chronologically.
func GenerateBackupPath(dir string) string {
	t := time.Now()
	for {
		path := filepath.Join(dir, backupPrefix+t.Format(timeLayout)+".json.gz")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		t = t.Add(time.Millisecond)
	}
}

// Backup writes the current graph to path. Paths ending in .gz are written
// in V2 format, anything else in V1.
func Backup(ctx context.Context, repo *journey.Repository, path string, opts *WriteOptions) (*BackupFormat, error) {
	g, err := repo.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journey graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	bf := &BackupFormat{CreatedAt: time.Now().UTC(), Graph: g}
	if strings.HasSuffix(path, ".gz") {
		err = WriteV2(path, bf, opts)
	} else {
		err = WriteV1(path, bf)
	}
	if err != nil {
		return nil, err
	}
	return bf, nil
}

// Restore replaces the stored graph with the one in the backup at path.
func Restore(ctx context.Context, repo *journey.Repository, path string) (*RestoreResult, error) {
	version, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var bf *BackupFormat
	if version == FormatV2 {
		bf, err = ReadV2(path)
	} else {
		bf, err = ReadV1(path)
	}
	if err != nil {
		return nil, err
	}

	g, err := repo.Write(ctx, bf.Graph.Nodes, bf.Graph.Edges)
	if err != nil {
		return nil, fmt.Errorf("restore journey graph: %w", err)
	}

	return &RestoreResult{
		Format:        version,
		NodesRestored: len(g.Nodes),
		EdgesRestored: len(g.Edges),
		BackupTime:    bf.CreatedAt,
	}, nil
}

// RotateBackups deletes the oldest backups in dir so that at most keep remain.
// Only files written by GenerateBackupPath are considered. keep must be at
// least 1.
func RotateBackups(dir string, keep int) error {
	if keep < 1 {
		return fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove old backup %s: %w", name, err)
		}
	}
	return nil
}

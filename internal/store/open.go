package store

import (
	"context"
	"fmt"

	"github.com/nvandessel/journeygraph/internal/sanitize"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backends lists every backend Open understands.
var Backends = []string{BackendFile, BackendSQLite, BackendRedis, BackendMemory}

// Options selects and locates a backend.
type Options struct {
	Backend  string
	Root     string // project root; used to derive default paths
	Path     string // file or sqlite path; defaults under Root/data
	Name     string // document name for sqlite and redis; sanitized by Open
	RedisURL string
}

// Open returns the GraphStore described by opts.
func Open(ctx context.Context, opts Options) (GraphStore, error) {
	name := sanitize.DocumentName(opts.Name)
	switch opts.Backend {
	case "", BackendFile:
		path := opts.Path
		if path == "" {
			path = DefaultGraphPath(opts.Root)
		}
		return NewFileGraphStore(path), nil
	case BackendSQLite:
		path := opts.Path
		if path == "" {
			path = DefaultSQLitePath(opts.Root)
		}
		return NewSQLiteGraphStore(path, name)
	case BackendRedis:
		return NewRedisGraphStore(ctx, opts.RedisURL, name)
	case BackendMemory:
		return NewInMemoryGraphStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q: must be one of %v", opts.Backend, Backends)
	}
}

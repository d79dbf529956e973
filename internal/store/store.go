// Package store defines the GraphStore interface for persisting the journey
// graph document, along with its file, SQLite, Redis and in-memory backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Load when no graph has been written yet.
	ErrNotFound = errors.New("journey graph not found")

	// ErrCorrupt is wrapped by Load when the persisted document cannot be parsed.
	ErrCorrupt = errors.New("journey graph document is corrupt")
)

// Graph is the persisted journey graph document. Node and edge records are
// opaque to the store; only their order is preserved.
type Graph struct {
	Nodes     []json.RawMessage `json:"nodes"`
	Edges     []json.RawMessage `json:"edges"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
}

// EmptyGraph returns the default document served before anything is written.
func EmptyGraph() Graph {
	return Graph{
		Nodes: []json.RawMessage{},
		Edges: []json.RawMessage{},
	}
}

// Normalize replaces nil sequences with empty ones so the document always
// encodes nodes and edges as arrays.
func (g Graph) Normalize() Graph {
	if g.Nodes == nil {
		g.Nodes = []json.RawMessage{}
	}
	if g.Edges == nil {
		g.Edges = []json.RawMessage{}
	}
	return g
}

// GraphStore persists a single journey graph document. Save replaces the whole
// document; there is no merge or patch.
type GraphStore interface {
	// Load returns the stored graph, ErrNotFound if nothing was written, or an
	// error wrapping ErrCorrupt if the stored bytes do not decode.
	Load(ctx context.Context) (Graph, error)

	// Save overwrites the stored graph.
	Save(ctx context.Context, g Graph) error

	Close() error
}

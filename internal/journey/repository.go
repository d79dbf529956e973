package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvandessel/journeygraph/internal/store"
)

// ReadPolicy decides what Read does with a document that cannot be loaded.
type ReadPolicy string

const (
	// ReadPolicyRecover serves the empty graph for any load failure.
	ReadPolicyRecover ReadPolicy = "recover"
	// ReadPolicyStrict serves the empty graph only when nothing was written.
	ReadPolicyStrict ReadPolicy = "strict"
)

// ParseReadPolicy validates a policy name. The empty string selects
// ReadPolicyRecover.
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch ReadPolicy(s) {
	case "", ReadPolicyRecover:
		return ReadPolicyRecover, nil
	case ReadPolicyStrict:
		return ReadPolicyStrict, nil
	default:
		return "", fmt.Errorf("invalid read policy %q: must be %q or %q", s, ReadPolicyRecover, ReadPolicyStrict)
	}
}

// Repository performs journey graph reads and writes against a GraphStore.
type Repository struct {
	store  store.GraphStore
	policy ReadPolicy
	logger *zap.Logger
	now    func() time.Time

	writeMu   sync.Mutex
	lastWrite string // ETag of the last document this repository saved
}

// Option configures a Repository.
type Option func(*Repository)

// WithReadPolicy sets the read policy. Defaults to ReadPolicyRecover.
func WithReadPolicy(p ReadPolicy) Option {
	return func(r *Repository) { r.policy = p }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for updatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a Repository over s.
func NewRepository(s store.GraphStore, opts ...Option) *Repository {
	r := &Repository{
		store:  s,
		policy: ReadPolicyRecover,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured read policy.
func (r *Repository) Policy() ReadPolicy {
	return r.policy
}

// Read returns the current graph. See ReadPolicy for failure handling.
func (r *Repository) Read(ctx context.Context) (store.Graph, error) {
	g, err := r.store.Load(ctx)
	if err == nil {
		return g.Normalize(), nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return store.EmptyGraph(), nil
	}

	if r.policy == ReadPolicyStrict {
		return store.Graph{}, fmt.Errorf("read journey graph: %w", err)
	}

	r.logger.Warn("Serving empty journey graph after load failure",
		zap.Bool("corrupt", errors.Is(err, store.ErrCorrupt)),
		zap.Error(err))
	return store.EmptyGraph(), nil
}

// Write replaces the document with nodes and edges, stamped with the
// current time. It returns the saved graph.
func (r *Repository) Write(ctx context.Context, nodes, edges []json.RawMessage) (store.Graph, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.save(ctx, nodes, edges)
}

// WriteIfMatch is Write guarded by an If-Match precondition: ifMatch must
// match (see MatchETag) the ETag of the graph Read would currently return.
func (r *Repository) WriteIfMatch(ctx context.Context, ifMatch string, nodes, edges []json.RawMessage) (store.Graph, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.Read(ctx)
	if err != nil {
		return store.Graph{}, err
	}
	if !MatchETag(ifMatch, ETag(current)) {
		return store.Graph{}, ErrPreconditionFailed
	}
	return r.save(ctx, nodes, edges)
}

func (r *Repository) save(ctx context.Context, nodes, edges []json.RawMessage) (store.Graph, error) {
	now := r.now().UTC()
	g := store.Graph{Nodes: nodes, Edges: edges, UpdatedAt: &now}.Normalize()

	if err := r.store.Save(ctx, g); err != nil {
		return store.Graph{}, fmt.Errorf("write journey graph: %w", err)
	}
	r.lastWrite = ETag(g)

	r.logger.Debug("Journey graph written",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)))
	return g, nil
}

// WroteLast reports whether g is the document this repository saved most
// recently. The file watcher uses it to tell its own writes from edits made
// by other processes.
func (r *Repository) WroteLast(g store.Graph) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.lastWrite != "" && r.lastWrite == ETag(g)
}

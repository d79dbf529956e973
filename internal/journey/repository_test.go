package journey

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nvandessel/journeygraph/internal/store"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newFileRepo(t *testing.T, opts ...Option) (*Repository, string) {
	t.Helper()
	path := store.DefaultGraphPath(t.TempDir())
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewRepository(store.NewFileGraphStore(path), opts...), path
}

func mustDecode(t *testing.T, body string) ([]json.RawMessage, []json.RawMessage) {
	t.Helper()
	nodes, edges, err := DecodePayload([]byte(body))
	if err != nil {
		t.Fatalf("DecodePayload(%s) error = %v", body, err)
	}
	return nodes, edges
}

func encodeNodes(t *testing.T, g store.Graph) string {
	t.Helper()
	b, err := json.Marshal(g.Nodes)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestRead_BeforeAnyWrite(t *testing.T) {
	repo, _ := newFileRepo(t)

	g, err := repo.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	data, _ := json.Marshal(g)
	if string(data) != `{"nodes":[],"edges":[]}` {
		t.Errorf("Read() = %s, want empty graph", data)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	nodes, edges := mustDecode(t, `{"nodes":[{"id":"a","pos":{"x":1}},{"id":"b"}],"edges":[{"id":"e1","source":"a","target":"b"}]}`)
	written, err := repo.Write(ctx, nodes, edges)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if written.UpdatedAt == nil || !written.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v, want %v", written.UpdatedAt, fixedNow)
	}

	got, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if want := `[{"id":"a","pos":{"x":1}},{"id":"b"}]`; encodeNodes(t, got) != want {
		t.Errorf("nodes = %s, want %s", encodeNodes(t, got), want)
	}
	if len(got.Edges) != 1 {
		t.Errorf("len(Edges) = %d, want 1", len(got.Edges))
	}
	if ETag(got) != ETag(written) {
		t.Errorf("ETag changed across round trip: %s != %s", ETag(got), ETag(written))
	}
}

func TestWrite_WholesaleOverwrite(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	nodes, edges := mustDecode(t, `{"nodes":[{"id":"a"}],"edges":[]}`)
	if _, err := repo.Write(ctx, nodes, edges); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	nodes, edges = mustDecode(t, `{"nodes":[],"edges":[]}`)
	if _, err := repo.Write(ctx, nodes, edges); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.Nodes) != 0 || len(got.Edges) != 0 {
		t.Errorf("Read() = %d nodes, %d edges, want 0, 0", len(got.Nodes), len(got.Edges))
	}
}

func TestRead_CorruptRecover(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo, path := newFileRepo(t, WithLogger(zap.New(core)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"nodes":[{"id":"a"}`), 0644); err != nil {
		t.Fatal(err)
	}

	g, err := repo.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v, want nil under recover policy", err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("Read() = %d nodes, %d edges, want empty graph", len(g.Nodes), len(g.Edges))
	}
	if logs.Len() != 1 {
		t.Fatalf("warn logs = %d, want 1", logs.Len())
	}
	if corrupt, ok := logs.All()[0].ContextMap()["corrupt"].(bool); !ok || !corrupt {
		t.Errorf("log context = %v, want corrupt=true", logs.All()[0].ContextMap())
	}
}

func TestRead_CorruptStrict(t *testing.T) {
	repo, path := newFileRepo(t, WithReadPolicy(ReadPolicyStrict))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Read(context.Background()); !errors.Is(err, store.ErrCorrupt) {
		t.Errorf("Read() error = %v, want ErrCorrupt", err)
	}
}

func TestRead_StrictMissingIsEmpty(t *testing.T) {
	repo, _ := newFileRepo(t, WithReadPolicy(ReadPolicyStrict))

	g, err := repo.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("Read() not empty")
	}
}

// failingStore fails every Save so error propagation can be checked.
type failingStore struct {
	store.InMemoryGraphStore
}

func (f *failingStore) Save(ctx context.Context, g store.Graph) error {
	return errors.New("disk full")
}

func TestWrite_StoreFailurePropagates(t *testing.T) {
	repo := NewRepository(&failingStore{})

	_, err := repo.Write(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("Write() expected error")
	}
}

func TestWriteIfMatch(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	initial, err := repo.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	staleTag := ETag(initial)

	nodes, edges := mustDecode(t, `{"nodes":[{"id":"a"}],"edges":[]}`)
	written, err := repo.WriteIfMatch(ctx, staleTag, nodes, edges)
	if err != nil {
		t.Fatalf("WriteIfMatch() with current tag error = %v", err)
	}

	// A second writer still holding the pre-write tag loses.
	if _, err := repo.WriteIfMatch(ctx, staleTag, nil, nil); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("WriteIfMatch() stale error = %v, want ErrPreconditionFailed", err)
	}

	got, err := repo.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) != 1 {
		t.Errorf("stale write altered document: %d nodes", len(got.Nodes))
	}

	if _, err := repo.WriteIfMatch(ctx, ETag(written), nil, nil); err != nil {
		t.Errorf("WriteIfMatch() with fresh tag error = %v", err)
	}
}

func TestMatchETag(t *testing.T) {
	const current = `"abc"`
	tests := []struct {
		name    string
		ifMatch string
		want    bool
	}{
		{"exact", `"abc"`, true},
		{"wildcard", "*", true},
		{"wildcard with spaces", " * ", true},
		{"list containing current", `"old", "abc"`, true},
		{"list without current", `"old","older"`, false},
		{"weak tag never matches", `W/"abc"`, false},
		{"weak then strong", `W/"abc", "abc"`, true},
		{"unquoted", "abc", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchETag(tt.ifMatch, current); got != tt.want {
				t.Errorf("MatchETag(%q) = %v, want %v", tt.ifMatch, got, tt.want)
			}
		})
	}
}

func TestWriteIfMatch_WildcardAndList(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	nodes, edges := mustDecode(t, `{"nodes":[{"id":"a"}],"edges":[]}`)
	written, err := repo.WriteIfMatch(ctx, "*", nodes, edges)
	if err != nil {
		t.Fatalf("WriteIfMatch(*) error = %v", err)
	}

	list := `"stale", ` + ETag(written)
	if _, err := repo.WriteIfMatch(ctx, list, nil, nil); err != nil {
		t.Errorf("WriteIfMatch(%s) error = %v", list, err)
	}
	if _, err := repo.WriteIfMatch(ctx, "W/"+ETag(written), nil, nil); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("WriteIfMatch(weak) error = %v, want ErrPreconditionFailed", err)
	}
}

func TestWrite_ConcurrentWritersLeaveValidDocument(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nodes := []json.RawMessage{json.RawMessage(`{"writer":` + string(rune('0'+i)) + `}`)}
			if _, err := repo.Write(ctx, nodes, nil); err != nil {
				t.Errorf("Write(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	g, err := NewRepository(repo.store, WithReadPolicy(ReadPolicyStrict)).Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(g.Nodes) != 1 {
		t.Errorf("len(Nodes) = %d, want exactly one writer's document", len(g.Nodes))
	}
}

func TestWroteLast(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if repo.WroteLast(store.EmptyGraph()) {
		t.Error("WroteLast() true before any write")
	}

	written, err := repo.Write(ctx, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := repo.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !repo.WroteLast(loaded) {
		t.Error("WroteLast() false for the document just written")
	}

	other := written
	other.Nodes = []json.RawMessage{json.RawMessage(`1`)}
	if repo.WroteLast(other) {
		t.Error("WroteLast() true for a different document")
	}
}

func TestParseReadPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ReadPolicy
		wantErr bool
	}{
		{"", ReadPolicyRecover, false},
		{"recover", ReadPolicyRecover, false},
		{"strict", ReadPolicyStrict, false},
		{"lenient", "", true},
	}
	for _, tt := range tests {
		got, err := ParseReadPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseReadPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseReadPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

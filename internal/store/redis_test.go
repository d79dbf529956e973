package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedisKey(t *testing.T) {
	if got := RedisKey(""); got != "journey:graph:default" {
		t.Errorf("RedisKey(\"\") = %q", got)
	}
	if got := RedisKey("onboarding"); got != "journey:graph:onboarding" {
		t.Errorf("RedisKey(onboarding) = %q", got)
	}
}

func TestNewRedisGraphStore_BadURL(t *testing.T) {
	if _, err := NewRedisGraphStore(context.Background(), "not a url", ""); err == nil {
		t.Error("NewRedisGraphStore() expected error for malformed URL")
	}
}

// TestRedisGraphStore_Integration runs against a live server when REDIS_URL is set.
func TestRedisGraphStore_Integration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "test-" + uuid.NewString()
	s, err := NewRedisGraphStore(ctx, redisURL, name)
	if err != nil {
		t.Fatalf("NewRedisGraphStore() error = %v", err)
	}
	defer s.Close()
	defer s.client.Del(context.Background(), s.key)

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}

	if err := s.Save(ctx, Graph{Nodes: rawList(t, `{"id":"a"}`), Edges: rawList(t)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Nodes) != 1 || len(got.Edges) != 0 {
		t.Errorf("Load() = %d nodes, %d edges, want 1, 0", len(got.Nodes), len(got.Edges))
	}

	if err := s.client.Set(ctx, s.key, "{", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}
}

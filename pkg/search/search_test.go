package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Quyzi/mc6/pkg/backend"
	"github.com/Quyzi/mc6/pkg/config"
	"github.com/Quyzi/mc6/pkg/label"
	"github.com/Quyzi/mc6/pkg/meta"
)

func openTestBackend(t *testing.T) *backend.Backend {
	t.Helper()
	cfg := config.Default()
	cfg.KV.Path = t.TempDir()
	cfg.Mauve.QueryTimeoutSecs = 5
	b, err := backend.Open(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	t.Cleanup(func() { b.Shutdown() })
	return b
}

func waitForIndex(t *testing.T, b *backend.Backend, collectionName, key string) {
	t.Helper()
	coll, err := b.GetCollection(collectionName)
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := coll.IndexFwd().Get(key); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("index key %q never appeared", key)
}

func TestEngineRunIncludeOnly(t *testing.T) {
	b := openTestBackend(t)
	coll, err := b.GetCollection("docs")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if err := coll.PutObjectMetadata("a.txt", meta.Metadata{Labels: label.NewSet(label.New("env", "prod"))}); err != nil {
		t.Fatalf("PutObjectMetadata: %v", err)
	}
	if err := coll.PutObjectMetadata("b.txt", meta.Metadata{Labels: label.NewSet(label.New("env", "dev"))}); err != nil {
		t.Fatalf("PutObjectMetadata: %v", err)
	}
	waitForIndex(t, b, "docs", "env=prod")

	e := New(b)
	req := Request{Collection: "docs"}
	req.Include(label.New("env", "prod"))

	resp, err := e.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Object.Name != "a.txt" {
		t.Fatalf("got %+v, want just a.txt", resp.Results)
	}
}

func TestEngineRunExcludeRemovesFromIncludes(t *testing.T) {
	b := openTestBackend(t)
	coll, err := b.GetCollection("docs")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	both := label.NewSet(label.New("env", "prod"), label.New("tier", "web"))
	if err := coll.PutObjectMetadata("a.txt", meta.Metadata{Labels: both}); err != nil {
		t.Fatalf("PutObjectMetadata: %v", err)
	}
	if err := coll.PutObjectMetadata("b.txt", meta.Metadata{Labels: label.NewSet(label.New("env", "prod"))}); err != nil {
		t.Fatalf("PutObjectMetadata: %v", err)
	}
	waitForIndex(t, b, "docs", "env=prod")
	waitForIndex(t, b, "docs", "tier=web")

	e := New(b)
	req := Request{Collection: "docs"}
	req.Include(label.New("env", "prod"))
	req.Exclude(label.New("tier", "web"))

	resp, err := e.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Object.Name != "b.txt" {
		t.Fatalf("got %+v, want just b.txt", resp.Results)
	}
}

func TestEngineRunEmptyLabelsYieldsEmptyResult(t *testing.T) {
	b := openTestBackend(t)
	if _, err := b.GetCollection("docs"); err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	e := New(b)
	resp, err := e.Run(context.Background(), Request{Collection: "docs"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("got %d results, want 0 for an empty request", len(resp.Results))
	}
}

func TestEngineRunMissingLabelYieldsEmptyIncludes(t *testing.T) {
	b := openTestBackend(t)
	if _, err := b.GetCollection("docs"); err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	e := New(b)
	req := Request{Collection: "docs"}
	req.Include(label.New("nope", "nope"))
	resp, err := e.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("got %d results, want 0 for an absent label", len(resp.Results))
	}
}

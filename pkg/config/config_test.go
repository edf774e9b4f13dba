package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	d := Default()
	if d.Mauve.ObjectMaxSizeMB != 30 {
		t.Fatalf("ObjectMaxSizeMB = %d, want 30", d.Mauve.ObjectMaxSizeMB)
	}
	if d.KV.CacheCapacity != 1<<30 {
		t.Fatalf("CacheCapacity = %d, want 1<<30", d.KV.CacheCapacity)
	}
	if d.KV.Mode != "HighThroughput" {
		t.Fatalf("Mode = %q, want HighThroughput", d.KV.Mode)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mauve.yaml")
	body := "mauve:\n  object_max_size_mb: 64\npath: /tmp/custom\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mauve.ObjectMaxSizeMB != 64 {
		t.Fatalf("ObjectMaxSizeMB = %d, want 64", cfg.Mauve.ObjectMaxSizeMB)
	}
	if cfg.KV.Path != "/tmp/custom" {
		t.Fatalf("Path = %q, want /tmp/custom", cfg.KV.Path)
	}
	// Unspecified keys still come from Default().
	if cfg.Mauve.QueryConcurrency != 16 {
		t.Fatalf("QueryConcurrency = %d, want 16 (from defaults)", cfg.Mauve.QueryConcurrency)
	}
}

func TestKVOptionsConversion(t *testing.T) {
	cfg := Default()
	opts := cfg.KVOptions()
	if opts.Path != cfg.KV.Path || opts.CacheCapacity != cfg.KV.CacheCapacity {
		t.Fatalf("KVOptions() = %+v did not mirror config", opts)
	}
}

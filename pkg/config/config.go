// Package config loads mc6's YAML-mergeable-with-defaults configuration
// (spec §6).
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Quyzi/mc6/pkg/kv"
	"github.com/Quyzi/mc6/pkg/mc6err"
)

// Mauve holds the object-store-level tuning knobs spec §6 lists under the
// `mauve.*` keys.
type Mauve struct {
	ObjectMaxSizeMB  int `yaml:"object_max_size_mb"`
	QueryConcurrency int `yaml:"query_concurrency"`
	QueryTimeoutSecs int `yaml:"query_timeout_secs"`
}

// KV holds the embedded-KV tuning knobs spec §6 lists at the top level.
type KV struct {
	CacheCapacity        int    `yaml:"cache_capacity"`
	FlushEveryMS         int    `yaml:"flush_every_ms"`
	Path                 string `yaml:"path"`
	Mode                 string `yaml:"mode"`
	UseCompression       bool   `yaml:"use_compression"`
	CompressionFactor    int    `yaml:"compression_factor"`
	IDGenPersistInterval int    `yaml:"idgen_persist_interval"`
}

// Config is the full application configuration. The KV tuning keys are
// inlined at the top level alongside `mauve`, matching spec §6's flat
// layout for cache_capacity/flush_every_ms/path/mode/etc.
type Config struct {
	Mauve Mauve `yaml:"mauve"`
	KV    `yaml:",inline"`
}

// Default returns the spec §6 defaults.
func Default() Config {
	return Config{
		Mauve: Mauve{
			ObjectMaxSizeMB:  30,
			QueryConcurrency: 16,
			QueryTimeoutSecs: 60,
		},
		KV: KV{
			CacheCapacity:        1 << 30,
			FlushEveryMS:         500,
			Path:                 "data/",
			Mode:                 string(kv.ModeHighThroughput),
			UseCompression:       false,
			CompressionFactor:    5,
			IDGenPersistInterval: 1_000_000,
		},
	}
}

// Load reads path as YAML and merges it over Default(), so a config file
// only needs to specify the keys it wants to override.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, mc6err.Wrap(mc6err.KindConfig, "read config file", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, mc6err.Wrap(mc6err.KindConfig, "parse config file", err)
	}
	return cfg, nil
}

// KVOptions converts the KV section into kv.Options.
func (c Config) KVOptions() kv.Options {
	return kv.Options{
		Path:                 c.KV.Path,
		CacheCapacity:        c.KV.CacheCapacity,
		FlushEveryMS:         c.KV.FlushEveryMS,
		Mode:                 kv.Mode(c.KV.Mode),
		UseCompression:       c.KV.UseCompression,
		CompressionFactor:    c.KV.CompressionFactor,
		IDGenPersistInterval: c.KV.IDGenPersistInterval,
	}
}

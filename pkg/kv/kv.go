// Package kv implements the embedded ordered key-value abstraction spec §2
// calls for: a durable, B-tree-like store offering named subtrees, atomic
// single-key operations, multi-key transactions scoped to one subtree,
// ascending prefix iteration, and a mutation-event subscription per
// subtree.
//
// It is backed by github.com/syndtr/goleveldb, a single flat ordered
// keyspace; named subtrees are realised as key-prefixed views over that
// one keyspace (see SPEC_FULL.md §3), the same technique
// containerd's metadata store uses to fit a hierarchical namespace into an
// embedded KV with no native subtree concept of its own.
package kv

import (
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Quyzi/mc6/pkg/mc6err"
)

const (
	registryPrefixByte = 0x01
	subtreePrefixByte  = 0x02
	subtreeSep         = 0x00
)

// Mode selects the durability/throughput tradeoff the embedded KV is
// opened with, per spec §6 config key `mode`.
type Mode string

const (
	ModeHighThroughput Mode = "HighThroughput"
	ModeLowSpace       Mode = "LowSpace"
)

// Options configures Open, mirroring spec §6's KV tuning keys.
type Options struct {
	Path                 string
	CacheCapacity        int // bytes
	FlushEveryMS         int
	Mode                 Mode
	UseCompression       bool
	CompressionFactor    int
	IDGenPersistInterval int
}

// DefaultOptions returns the spec §6 defaults.
func DefaultOptions() Options {
	return Options{
		Path:                 "data/",
		CacheCapacity:        1 << 30, // 1 GiB
		FlushEveryMS:         500,
		Mode:                 ModeHighThroughput,
		UseCompression:       false,
		CompressionFactor:    5,
		IDGenPersistInterval: 1_000_000,
	}
}

// DB wraps an opened embedded KV and exposes named subtree handles over it.
type DB struct {
	path string
	ldb  *leveldb.DB

	mu    sync.Mutex
	hubs  map[string]*hub
}

// Open opens (or creates) the embedded KV at opts.Path.
func Open(opts Options) (*DB, error) {
	compression := opt.NoCompression
	if opts.UseCompression {
		compression = opt.SnappyCompression
	}
	ldbOpts := &opt.Options{
		BlockCacheCapacity: opts.CacheCapacity,
		Compression:        compression,
		// LowSpace trades write throughput for a smaller on-disk
		// footprint by writing smaller SSTables more often.
		WriteBuffer: writeBufferFor(opts.Mode),
	}
	ldb, err := leveldb.OpenFile(opts.Path, ldbOpts)
	if err != nil {
		return nil, mc6err.Wrap(mc6err.KindStorage, "open embedded kv", err)
	}
	return &DB{
		path: opts.Path,
		ldb:  ldb,
		hubs: make(map[string]*hub),
	}, nil
}

func writeBufferFor(mode Mode) int {
	if mode == ModeLowSpace {
		return 2 << 20 // 2 MiB
	}
	return 16 << 20 // 16 MiB, goleveldb's own default-ish
}

// Close flushes and closes the embedded KV.
func (db *DB) Close() error {
	if err := db.ldb.Close(); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, "close embedded kv", err)
	}
	return nil
}

// subtreeKeyPrefix returns the physical key prefix for all keys belonging
// to the named subtree.
func subtreeKeyPrefix(name string) []byte {
	p := make([]byte, 0, len(name)+2)
	p = append(p, subtreePrefixByte)
	p = append(p, name...)
	p = append(p, subtreeSep)
	return p
}

func registryKey(name string) []byte {
	k := make([]byte, 0, len(name)+1)
	k = append(k, registryPrefixByte)
	k = append(k, name...)
	return k
}

// Subtree opens (creating on first use) the named subtree. Opening is
// idempotent and registers the name so ListSubtrees can enumerate it.
func (db *DB) Subtree(name string) (*Subtree, error) {
	if err := db.ldb.Put(registryKey(name), nil, nil); err != nil {
		return nil, mc6err.Wrap(mc6err.KindStorage, fmt.Sprintf("register subtree %q", name), err)
	}
	db.mu.Lock()
	h, ok := db.hubs[name]
	if !ok {
		h = newHub()
		db.hubs[name] = h
	}
	db.mu.Unlock()
	return &Subtree{db: db, name: name, prefix: subtreeKeyPrefix(name), hub: h}, nil
}

// ListSubtrees returns every currently registered subtree name whose name
// has the given prefix, e.g. "mauve_meta::" to enumerate collections
// (spec §3's "Enumeration of collections" rule).
func (db *DB) ListSubtrees(namePrefix string) ([]string, error) {
	rng := util.BytesPrefix(append([]byte{registryPrefixByte}, namePrefix...))
	it := db.ldb.NewIterator(rng, nil)
	defer it.Release()
	var names []string
	for it.Next() {
		names = append(names, string(it.Key()[1:]))
	}
	if err := it.Error(); err != nil {
		return nil, mc6err.Wrap(mc6err.KindStorage, "list subtrees", err)
	}
	return names, nil
}

// DropSubtree deletes every key belonging to name's subtree and removes it
// from the registry, satisfying I4 ("all four subtrees either all exist
// or are all absent after a successful delete") when called once per
// subtree of a collection.
func (db *DB) DropSubtree(name string) error {
	prefix := subtreeKeyPrefix(name)
	rng := util.BytesPrefix(prefix)
	it := db.ldb.NewIterator(rng, nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, fmt.Sprintf("scan subtree %q for drop", name), err)
	}
	batch.Delete(registryKey(name))
	if err := db.ldb.Write(batch, nil); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, fmt.Sprintf("drop subtree %q", name), err)
	}
	db.mu.Lock()
	if h, ok := db.hubs[name]; ok {
		h.closeAll()
		delete(db.hubs, name)
	}
	db.mu.Unlock()
	return nil
}

// Checksum computes a rolling CRC32 checksum over every key/value pair
// currently stored, for BackendState (spec §4.5). goleveldb has no native
// checksum primitive analogous to sled's, so this folds crc32 over the
// full keyspace; see DESIGN.md for why that's on the standard library
// rather than a third-party hashing package.
func (db *DB) Checksum() (uint32, error) {
	it := db.ldb.NewIterator(nil, nil)
	defer it.Release()
	h := crc32.NewIEEE()
	for it.Next() {
		h.Write(it.Key())
		h.Write(it.Value())
	}
	if err := it.Error(); err != nil {
		return 0, mc6err.Wrap(mc6err.KindStorage, "checksum", err)
	}
	return h.Sum32(), nil
}

// SizeOnDisk reports the on-disk footprint of the KV.
func (db *DB) SizeOnDisk() (int64, error) {
	sizes, err := db.ldb.SizeOf([]util.Range{*util.BytesPrefix(nil)})
	if err != nil {
		return 0, mc6err.Wrap(mc6err.KindStorage, "size on disk", err)
	}
	return sizes.Sum(), nil
}

// Path returns the directory the KV was opened from.
func (db *DB) Path() string { return db.path }

package kv

import (
	"bytes"
	"hash/crc32"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Quyzi/mc6/pkg/mc6err"
)

// Subtree is a named, ordered key-value namespace inside a DB. All of its
// operations are atomic and internally synchronised by the underlying KV.
type Subtree struct {
	db     *DB
	name   string
	prefix []byte
	hub    *hub
}

// Name returns the subtree's name.
func (s *Subtree) Name() string { return s.name }

func (s *Subtree) physicalKey(key string) []byte {
	return append(append([]byte(nil), s.prefix...), key...)
}

// Get fetches the value stored under key.
func (s *Subtree) Get(key string) ([]byte, bool, error) {
	v, err := s.db.ldb.Get(s.physicalKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mc6err.Wrap(mc6err.KindStorage, "get", err)
	}
	return v, true, nil
}

// Has reports whether key is present.
func (s *Subtree) Has(key string) (bool, error) {
	ok, err := s.db.ldb.Has(s.physicalKey(key), nil)
	if err != nil {
		return false, mc6err.Wrap(mc6err.KindStorage, "has", err)
	}
	return ok, nil
}

// Set writes value under key and publishes an Insert event to the
// subtree's subscribers, carrying whatever was previously stored under key
// (if anything) so a subscriber can diff an overwrite against its prior
// value (see Event).
func (s *Subtree) Set(key string, value []byte) error {
	prior, hadPrior, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := s.db.ldb.Put(s.physicalKey(key), value, nil); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, "set", err)
	}
	s.hub.publish(Event{Kind: EventInsert, Key: key, Value: value, PrevValue: prior, HasPrev: hadPrior})
	return nil
}

// Delete removes key, returning its prior value if present, and publishes
// a Remove event to the subtree's subscribers.
func (s *Subtree) Delete(key string) ([]byte, bool, error) {
	prior, ok, err := s.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if err := s.db.ldb.Delete(s.physicalKey(key), nil); err != nil {
		return nil, false, mc6err.Wrap(mc6err.KindStorage, "delete", err)
	}
	s.hub.publish(Event{Kind: EventRemove, Key: key, Value: prior})
	return prior, true, nil
}

// Count returns the number of keys currently stored in the subtree.
func (s *Subtree) Count() (int, error) {
	it := s.db.ldb.NewIterator(util.BytesPrefix(s.prefix), nil)
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return 0, mc6err.Wrap(mc6err.KindStorage, "count", err)
	}
	return n, nil
}

// Checksum computes a rolling CRC32 over the subtree's key/value pairs,
// for BackendState's per-subtree TreeState (spec §4.5/§4.2).
func (s *Subtree) Checksum() (uint32, error) {
	it := s.db.ldb.NewIterator(util.BytesPrefix(s.prefix), nil)
	defer it.Release()
	h := crc32.NewIEEE()
	for it.Next() {
		h.Write(bytes.TrimPrefix(it.Key(), s.prefix))
		h.Write(it.Value())
	}
	if err := it.Error(); err != nil {
		return 0, mc6err.Wrap(mc6err.KindStorage, "subtree checksum", err)
	}
	return h.Sum32(), nil
}

// PrefixIter returns every key (without the subtree's physical prefix) and
// value whose logical key starts with prefix, in ascending key order.
func (s *Subtree) PrefixIter(prefix string) ([]KV, error) {
	physPrefix := s.physicalKey(prefix)
	it := s.db.ldb.NewIterator(util.BytesPrefix(physPrefix), nil)
	defer it.Release()
	var out []KV
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), s.prefix))
		val := append([]byte(nil), it.Value()...)
		out = append(out, KV{Key: key, Value: val})
	}
	if err := it.Error(); err != nil {
		return nil, mc6err.Wrap(mc6err.KindStorage, "prefix iterate", err)
	}
	return out, nil
}

// KV is a logical key/value pair returned by PrefixIter.
type KV struct {
	Key   string
	Value []byte
}

// Watch subscribes to this subtree's mutation events. The returned channel
// receives every subsequent Insert/Remove; call the returned function to
// unsubscribe and release resources. There is no key filter: every
// mutation in the subtree is delivered.
func (s *Subtree) Watch() (<-chan Event, func()) {
	return s.hub.subscribe()
}

// Txn is a set of operations applied atomically within one subtree via
// Transact. Per spec §9 ("Index transactionality"), concurrent indexer
// workers on different collections never observe torn postings because
// each Transact commits as a single goleveldb transaction scoped to one
// subtree's key range.
type Txn struct {
	s   *Subtree
	tx  *leveldb.Transaction
}

// Get reads key's current value inside the transaction.
func (t *Txn) Get(key string) ([]byte, bool, error) {
	v, err := t.tx.Get(t.s.physicalKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mc6err.Wrap(mc6err.KindStorage, "txn get", err)
	}
	return v, true, nil
}

// Set writes key/value inside the transaction.
func (t *Txn) Set(key string, value []byte) error {
	if err := t.tx.Put(t.s.physicalKey(key), value, nil); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, "txn set", err)
	}
	return nil
}

// Delete removes key inside the transaction.
func (t *Txn) Delete(key string) error {
	if err := t.tx.Delete(t.s.physicalKey(key), nil); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, "txn delete", err)
	}
	return nil
}

// Transact runs fn inside a single-subtree atomic transaction. If fn
// returns an error, the transaction is discarded and no writes are
// applied; otherwise it is committed. Transact does not publish hub
// events — it is used exclusively by the indexer to update index
// subtrees, which nothing subscribes to (spec §4.3's upsert/downsert
// protocols).
func (s *Subtree) Transact(fn func(*Txn) error) error {
	tx, err := s.db.ldb.OpenTransaction()
	if err != nil {
		return mc6err.Wrap(mc6err.KindStorage, "open transaction", err)
	}
	if err := fn(&Txn{s: s, tx: tx}); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mc6err.Wrap(mc6err.KindStorage, "commit transaction", err)
	}
	return nil
}

// Package backend implements Backend, the top-level handle owning the
// embedded KV and the indexer supervisor, per spec §4.2.
package backend

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Quyzi/mc6/pkg/collection"
	"github.com/Quyzi/mc6/pkg/config"
	"github.com/Quyzi/mc6/pkg/indexer"
	"github.com/Quyzi/mc6/pkg/kv"
)

// signalBufferSize bounds the Backend's indexer signal channel. A generous
// buffer keeps ordinary traffic non-blocking; send's select-default
// fallback reports a full buffer as a KindSignal error. A supervisor that
// has exited is only noticed this way once the buffer has filled up.
const signalBufferSize = 4096

// Backend owns the embedded KV and the indexer supervisor's signal
// channel.
type Backend struct {
	db     *kv.DB
	cfg    config.Config
	log    *zap.SugaredLogger
	sig    chan indexer.Signal
	cancel context.CancelFunc
}

// Open opens the embedded KV with the supplied configuration and spawns
// the indexer supervisor, handing it a cloned handle and the receiving
// end of a signal channel (spec §4.2).
func Open(cfg config.Config, log *zap.SugaredLogger) (*Backend, error) {
	db, err := kv.Open(cfg.KVOptions())
	if err != nil {
		return nil, err
	}

	sup, err := indexer.NewSupervisor(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	sig := make(chan indexer.Signal, signalBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	go sup.Run(ctx, sig)

	return &Backend{db: db, cfg: cfg, log: log, sig: sig, cancel: cancel}, nil
}

// Config returns the configuration the Backend was opened with.
func (b *Backend) Config() config.Config { return b.cfg }

// DB returns the underlying embedded KV handle, for components (e.g. the
// query engine) that need to open collections directly.
func (b *Backend) DB() *kv.DB { return b.db }

// send delivers sig to the supervisor without blocking. A full channel is
// surfaced as mc6err.KindSignal. The channel is never closed, so a
// supervisor that has exited is reported only once the buffer is full.
func (b *Backend) send(sig indexer.Signal) error {
	select {
	case b.sig <- sig:
		return nil
	default:
		return indexer.ErrSupervisorGone()
	}
}

// GetCollection opens or creates the four subtrees for name and notifies
// the indexer supervisor (idempotent — duplicate Watch signals are
// filtered by the supervisor).
func (b *Backend) GetCollection(name string) (*collection.Collection, error) {
	coll, err := collection.Open(b.db, name)
	if err != nil {
		return nil, err
	}
	if err := b.send(indexer.WatchSignal(name)); err != nil {
		return nil, err
	}
	return coll, nil
}

// ListCollections returns the set of distinct collection names for which a
// `mauve_meta::<name>` subtree exists (spec §3).
func (b *Backend) ListCollections() ([]string, error) {
	names, err := b.db.ListSubtrees(collection.MetaPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, strings.TrimPrefix(n, collection.MetaPrefix))
	}
	return out, nil
}

// DeleteCollection unwatches and drops all four subtrees belonging to
// name. This cannot be undone.
func (b *Backend) DeleteCollection(name string) error {
	if err := b.send(indexer.UnwatchSignal(name)); err != nil {
		return err
	}
	for _, prefix := range []string{
		collection.DataPrefix,
		collection.MetaPrefix,
		collection.IndexFwdPrefix,
		collection.IndexRevPrefix,
	} {
		if err := b.db.DropSubtree(prefix + name); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown signals the indexer supervisor to stop all workers and closes
// the embedded KV. The KV's own close protocol guarantees a flush (spec §5).
func (b *Backend) Shutdown() error {
	if err := b.send(indexer.ShutdownSignal()); err != nil {
		b.log.Warnw("shutdown signal not delivered", "error", err)
	}
	b.cancel()
	return b.db.Close()
}

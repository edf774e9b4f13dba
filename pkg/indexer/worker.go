package indexer

import (
	"go.uber.org/zap"

	"github.com/Quyzi/mc6/pkg/collection"
	"github.com/Quyzi/mc6/pkg/kv"
	"github.com/Quyzi/mc6/pkg/label"
	"github.com/Quyzi/mc6/pkg/meta"
	"github.com/Quyzi/mc6/pkg/objectref"
	"github.com/Quyzi/mc6/pkg/posting"
)

// worker is the per-collection indexer task described in spec §4.3's
// "Collection indexer worker". It subscribes to its collection's metadata
// subtree (SPEC_FULL.md §5 Q1 resolves the data-vs-metadata subscription
// question in favor of metadata) and, for every Insert/Remove event,
// transactionally updates the forward and reverse label indices. Deleting
// an object's data does not deindex it; only deleting or relabeling its
// metadata does.
type worker struct {
	coll *collection.Collection
	sig  chan Signal
	log  *zap.SugaredLogger
}

func newWorker(coll *collection.Collection, log *zap.SugaredLogger) *worker {
	return &worker{
		coll: coll,
		sig:  make(chan Signal, 64),
		log:  log.With("collection", coll.Name),
	}
}

// run is the worker loop. It returns on Shutdown or Unwatch, or if the
// control channel is closed out from under it (spec §4.3, "Worker failure
// semantics": a channel read failure exits the worker).
func (w *worker) run() {
	events, unsubscribe := w.coll.MetaTree().Watch()
	defer unsubscribe()

	// Index metadata that was written before the subscription above
	// existed. Upserts are idempotent, so entries that also arrive as
	// events are not indexed twice.
	existing, err := w.coll.MetaTree().PrefixIter("")
	if err != nil {
		w.log.Errorw("indexer backfill failure", "error", err)
	}
	for _, entry := range existing {
		if err := w.processEvent(kv.Event{Kind: kv.EventInsert, Key: entry.Key, Value: entry.Value}); err != nil {
			w.log.Errorw("indexer failure", "error", err)
		}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				w.log.Info("metadata subscription closed, exiting")
				return
			}
			if err := w.processEvent(ev); err != nil {
				w.log.Errorw("indexer failure", "error", err)
			}
		case sig, ok := <-w.sig:
			if !ok {
				return
			}
			switch sig.Kind {
			case Shutdown:
				return
			case Unwatch:
				return
			default:
				// Watch/Rebuild are ignored by a running worker.
			}
		}
	}
}

func (w *worker) processEvent(ev kv.Event) error {
	ref := objectref.New(w.coll.Name, ev.Key)

	switch ev.Kind {
	case kv.EventInsert:
		m, err := meta.Decode(ev.Value)
		if err != nil {
			return err
		}
		var oldLabels label.Set
		if ev.HasPrev {
			old, err := meta.Decode(ev.PrevValue)
			if err != nil {
				w.log.Warnw("could not decode previous metadata, skipping deindex of stale labels", "object", ev.Key, "error", err)
			} else {
				oldLabels = old.Labels
			}
		}
		// A metadata overwrite (spec §3: put_object_metadata replaces any
		// prior metadata) can drop labels the previous metadata carried;
		// those must be downserted before the new labels are upserted, or
		// I2 never converges for a relabeled object.
		for _, l := range oldLabels.Slice() {
			if m.Labels.Contains(l) {
				continue
			}
			if err := w.downsert(w.coll.IndexFwd(), l.Forward(), ref); err != nil {
				return err
			}
			if err := w.downsert(w.coll.IndexRev(), l.Reverse(), ref); err != nil {
				return err
			}
		}
		for _, l := range m.Labels.Slice() {
			if err := w.upsert(w.coll.IndexFwd(), l.Forward(), ref); err != nil {
				return err
			}
			if err := w.upsert(w.coll.IndexRev(), l.Reverse(), ref); err != nil {
				return err
			}
		}
	case kv.EventRemove:
		m, err := meta.Decode(ev.Value)
		if err != nil {
			// The removed metadata couldn't be decoded (e.g. it
			// predates a schema change); there is nothing to
			// deindex.
			return err
		}
		for _, l := range m.Labels.Slice() {
			if err := w.downsert(w.coll.IndexFwd(), l.Forward(), ref); err != nil {
				return err
			}
			if err := w.downsert(w.coll.IndexRev(), l.Reverse(), ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// upsert inserts ref into the posting stored at labelKey, creating it if
// absent. It dedupes against the existing posting before appending, so a
// replayed event never produces a duplicate entry (spec §9, Q2).
func (w *worker) upsert(target *kv.Subtree, labelKey string, ref objectref.ObjectRef) error {
	return target.Transact(func(txn *kv.Txn) error {
		old, ok, err := txn.Get(labelKey)
		if err != nil {
			return err
		}
		var refs []objectref.ObjectRef
		if ok {
			refs, err = posting.Decode(old)
			if err != nil {
				return err
			}
		}
		if posting.Contains(refs, ref) {
			return nil
		}
		refs = append(refs, ref)
		encoded, err := posting.Encode(refs)
		if err != nil {
			return err
		}
		return txn.Set(labelKey, encoded)
	})
}

// downsert removes ref from the posting stored at labelKey. If removing it
// would leave the posting empty, the index key itself is removed,
// preserving I3 ("index keys that exist always map to a non-empty posting
// list"). A posting holding a single entry is removed whole without
// checking that the entry is ref.
func (w *worker) downsert(target *kv.Subtree, labelKey string, ref objectref.ObjectRef) error {
	return target.Transact(func(txn *kv.Txn) error {
		old, ok, err := txn.Get(labelKey)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		refs, err := posting.Decode(old)
		if err != nil {
			return err
		}
		if len(refs) <= 1 {
			return txn.Delete(labelKey)
		}
		refs = posting.Without(refs, ref)
		encoded, err := posting.Encode(refs)
		if err != nil {
			return err
		}
		return txn.Set(labelKey, encoded)
	})
}

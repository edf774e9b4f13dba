package backend

import (
	"bytes"
	"context"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/Quyzi/mc6/pkg/mc6err"
)

// exportedSubtree is one subtree's full key/value contents, the Go analogue
// of the Rust prototype's `MauveExport` (backend/src/backend.rs), reduced to
// a flat per-subtree record since goleveldb has no tree-export primitive
// analogous to sled's.
type exportedSubtree struct {
	Name    string            `cbor:"name"`
	Entries map[string][]byte `cbor:"entries"`
}

// Export streams every subtree's contents as a single CBOR-encoded value,
// for offline backup/migration (SPEC_FULL.md §4, "Export/import"). It is
// supplemental to the core spec, so no incremental or partial-import
// semantics are attempted: every call walks the whole keyspace.
func (b *Backend) Export(ctx context.Context) (io.Reader, error) {
	names, err := b.db.ListSubtrees("")
	if err != nil {
		return nil, err
	}

	out := make([]exportedSubtree, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, mc6err.Wrap(mc6err.KindIO, "export cancelled", err)
		}
		st, err := b.db.Subtree(name)
		if err != nil {
			return nil, err
		}
		kvs, err := st.PrefixIter("")
		if err != nil {
			return nil, err
		}
		entries := make(map[string][]byte, len(kvs))
		for _, kv := range kvs {
			entries[kv.Key] = kv.Value
		}
		out = append(out, exportedSubtree{Name: name, Entries: entries})
	}

	b2, err := cbor.Marshal(out)
	if err != nil {
		return nil, mc6err.Wrap(mc6err.KindSerialization, "encode export", err)
	}
	return bytes.NewReader(b2), nil
}

// Import replays a CBOR stream produced by Export, writing every subtree's
// entries back into the KV. Subtrees absent from the running KV are created
// on first write, matching the collection lifecycle's create-on-open rule.
func (b *Backend) Import(ctx context.Context, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return mc6err.Wrap(mc6err.KindIO, "read import stream", err)
	}

	var in []exportedSubtree
	if err := cbor.Unmarshal(raw, &in); err != nil {
		return mc6err.Wrap(mc6err.KindSerialization, "decode import stream", err)
	}

	for _, exp := range in {
		if err := ctx.Err(); err != nil {
			return mc6err.Wrap(mc6err.KindIO, "import cancelled", err)
		}
		st, err := b.db.Subtree(exp.Name)
		if err != nil {
			return err
		}
		for key, value := range exp.Entries {
			if err := st.Set(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

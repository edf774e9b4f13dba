// Package collection implements Collection, the four-subtree handle
// binding an object store's data, metadata, and label indices for one
// named collection (spec §3, §4.1).
package collection

import (
	"sort"
	"unicode/utf8"

	"github.com/Quyzi/mc6/pkg/kv"
	"github.com/Quyzi/mc6/pkg/label"
	"github.com/Quyzi/mc6/pkg/mc6err"
	"github.com/Quyzi/mc6/pkg/meta"
	"github.com/Quyzi/mc6/pkg/objectref"
)

// Subtree naming convention, spec §3.
const (
	DataPrefix     = "mauve_data::"
	MetaPrefix     = "mauve_meta::"
	IndexFwdPrefix = "mauve_fwd::"
	IndexRevPrefix = "mauve_rev::"
)

// Collection binds the four cooperating keyspaces that make up one named
// collection.
type Collection struct {
	Name string

	data     *kv.Subtree
	metaTree *kv.Subtree
	fwd      *kv.Subtree
	rev      *kv.Subtree
}

// Open opens (creating on first use) the four subtrees belonging to name.
// Collection lifecycle is create-on-open per spec §3.
func Open(db *kv.DB, name string) (*Collection, error) {
	data, err := db.Subtree(DataPrefix + name)
	if err != nil {
		return nil, err
	}
	metaTree, err := db.Subtree(MetaPrefix + name)
	if err != nil {
		return nil, err
	}
	fwd, err := db.Subtree(IndexFwdPrefix + name)
	if err != nil {
		return nil, err
	}
	rev, err := db.Subtree(IndexRevPrefix + name)
	if err != nil {
		return nil, err
	}
	return &Collection{Name: name, data: data, metaTree: metaTree, fwd: fwd, rev: rev}, nil
}

// DataTree returns the collection's data subtree handle. The indexer does
// not watch it; it subscribes to the metadata subtree instead (see
// MetaTree).
func (c *Collection) DataTree() *kv.Subtree { return c.data }

// MetaTree returns the collection's metadata subtree handle. The indexer
// worker subscribes here (SPEC_FULL.md §5 Q1).
func (c *Collection) MetaTree() *kv.Subtree { return c.metaTree }

// IndexFwd returns the forward label-index subtree ("name=value" -> posting).
func (c *Collection) IndexFwd() *kv.Subtree { return c.fwd }

// IndexRev returns the reverse label-index subtree ("value=name" -> posting).
func (c *Collection) IndexRev() *kv.Subtree { return c.rev }

// ListObjects prefix-scans the data subtree, returning matching keys in
// ascending order. Keys that are not valid UTF-8 are skipped, never
// reported as an error.
func (c *Collection) ListObjects(prefix string) ([]string, error) {
	kvs, err := c.data.PrefixIter(prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		if !utf8.ValidString(kv.Key) {
			continue
		}
		names = append(names, kv.Key)
	}
	sort.Strings(names)
	return names, nil
}

// HeadObject reports whether an object named ident exists.
func (c *Collection) HeadObject(ident string) (bool, error) {
	return c.data.Has(ident)
}

// GetObject fetches an object's bytes. Fails with mc6err.KindObjectNotFound
// when absent.
func (c *Collection) GetObject(ident string) ([]byte, error) {
	v, ok, err := c.data.Get(ident)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mc6err.ErrObjectNotFound
	}
	return v, nil
}

// PutObject writes object under ident. If an object already exists and
// replace is false, fails with mc6err.KindObjectExistsNoReplace. Does not
// touch metadata (spec §4.1 edge policy) — callers that want both updated
// atomically must also call PutObjectMetadata.
func (c *Collection) PutObject(ident string, object []byte, replace bool) (objectref.ObjectRef, error) {
	exists, err := c.data.Has(ident)
	if err != nil {
		return objectref.ObjectRef{}, err
	}
	if exists && !replace {
		return objectref.ObjectRef{}, mc6err.ErrObjectExistsNoReplace
	}
	if err := c.data.Set(ident, object); err != nil {
		return objectref.ObjectRef{}, err
	}
	return objectref.New(c.Name, ident), nil
}

// GetObjectMetadata fetches and decodes an object's metadata. Fails with
// mc6err.KindObjectNotFound when absent, mc6err.KindSerialization on
// decode failure.
func (c *Collection) GetObjectMetadata(ident string) (meta.Metadata, error) {
	v, ok, err := c.metaTree.Get(ident)
	if err != nil {
		return meta.Metadata{}, err
	}
	if !ok {
		return meta.Metadata{}, mc6err.ErrObjectNotFound
	}
	return meta.Decode(v)
}

// PutObjectMetadata replaces any prior metadata for ident.
func (c *Collection) PutObjectMetadata(ident string, m meta.Metadata) error {
	b, err := meta.Encode(m)
	if err != nil {
		return err
	}
	return c.metaTree.Set(ident, b)
}

// DeleteObject removes ident from the data subtree, returning its prior
// bytes if present. A delete of an absent object is a no-op.
func (c *Collection) DeleteObject(ident string) ([]byte, error) {
	prior, _, err := c.data.Delete(ident)
	return prior, err
}

// DeleteMetadata removes ident's metadata, returning it decoded if present.
func (c *Collection) DeleteMetadata(ident string) (*meta.Metadata, error) {
	prior, ok, err := c.metaTree.Delete(ident)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	m, err := meta.Decode(prior)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListLabels enumerates every label currently present in the forward
// index.
func (c *Collection) ListLabels() ([]label.Label, error) {
	kvs, err := c.fwd.PrefixIter("")
	if err != nil {
		return nil, err
	}
	labels := make([]label.Label, 0, len(kvs))
	for _, entry := range kvs {
		l, err := label.ParseForward(entry.Key)
		if err != nil {
			continue
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// Codec is implemented by values with a typed round-trip through
// Collection's byte-oriented object store, carried over from the original
// prototype's ToFromMauve trait (SPEC_FULL.md §4).
type Codec interface {
	ToObject() ([]byte, error)
}

// PutObjectT encodes obj with its own ToObject method and stores it under
// ident, the generic analogue of the prototype's put_object_t.
func PutObjectT[T Codec](c *Collection, ident string, obj T, replace bool) (objectref.ObjectRef, error) {
	b, err := obj.ToObject()
	if err != nil {
		return objectref.ObjectRef{}, mc6err.Wrap(mc6err.KindSerialization, "encode typed object", err)
	}
	return c.PutObject(ident, b, replace)
}

// GetObjectT fetches ident and decodes it with decode, the generic
// analogue of the prototype's get_object_t.
func GetObjectT[T any](c *Collection, ident string, decode func([]byte) (T, error)) (T, error) {
	var zero T
	b, err := c.GetObject(ident)
	if err != nil {
		return zero, err
	}
	v, err := decode(b)
	if err != nil {
		return zero, mc6err.Wrap(mc6err.KindSerialization, "decode typed object", err)
	}
	return v, nil
}

// DeleteObjectT removes ident and decodes its prior bytes with decode, the
// generic analogue of the prototype's delete_object_t. Returns false if
// ident was absent.
func DeleteObjectT[T any](c *Collection, ident string, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	b, err := c.DeleteObject(ident)
	if err != nil {
		return zero, false, err
	}
	if b == nil {
		return zero, false, nil
	}
	v, err := decode(b)
	if err != nil {
		return zero, false, mc6err.Wrap(mc6err.KindSerialization, "decode typed object", err)
	}
	return v, true, nil
}

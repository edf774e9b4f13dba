// Package posting implements the encoding of the ObjectRef lists stored
// under one forward/reverse index key (spec §3, "Posting").
package posting

import (
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/Quyzi/mc6/pkg/mc6err"
	"github.com/Quyzi/mc6/pkg/objectref"
)

// Encode serialises refs as a CBOR array, sorted by (Collection, Name) so
// re-encoding is stable under replay (spec §9, "Posting serialisation").
func Encode(refs []objectref.ObjectRef) ([]byte, error) {
	sorted := append([]objectref.ObjectRef(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	b, err := cbor.Marshal(sorted)
	if err != nil {
		return nil, mc6err.Wrap(mc6err.KindSerialization, "encode posting", err)
	}
	return b, nil
}

// Decode deserialises a posting back into its ObjectRef list.
func Decode(b []byte) ([]objectref.ObjectRef, error) {
	var refs []objectref.ObjectRef
	if err := cbor.Unmarshal(b, &refs); err != nil {
		return nil, mc6err.Wrap(mc6err.KindSerialization, "decode posting", err)
	}
	return refs, nil
}

// Contains reports whether ref is already present in refs.
func Contains(refs []objectref.ObjectRef, ref objectref.ObjectRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

// Without returns refs with every occurrence of ref removed.
func Without(refs []objectref.ObjectRef, ref objectref.ObjectRef) []objectref.ObjectRef {
	out := refs[:0:0]
	for _, r := range refs {
		if r != ref {
			out = append(out, r)
		}
	}
	return out
}

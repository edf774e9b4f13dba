// Package objectref implements ObjectRef, the canonical (collection, name)
// identity stored inside index postings.
package objectref

import "strings"

// ObjectRef identifies an object by its owning collection and its name
// within that collection. Both fields are normalised to lowercase on
// construction, per spec §3.
type ObjectRef struct {
	Collection string `cbor:"collection"`
	Name       string `cbor:"name"`
}

// New builds an ObjectRef, lowercasing both fields.
func New(collection, name string) ObjectRef {
	return ObjectRef{
		Collection: strings.ToLower(collection),
		Name:       strings.ToLower(name),
	}
}

// String returns the canonical "collection/name" form.
func (o ObjectRef) String() string {
	return o.Collection + "/" + o.Name
}

// Less orders ObjectRefs lexicographically over (Collection, Name), for
// sorting postings into a stable re-encoding order (spec §9).
func (o ObjectRef) Less(other ObjectRef) bool {
	if o.Collection != other.Collection {
		return o.Collection < other.Collection
	}
	return o.Name < other.Name
}

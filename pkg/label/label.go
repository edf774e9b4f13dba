// Package label implements the Label type: a canonical (name, value) pair
// used to tag objects and to key the forward/reverse label indices.
package label

import (
	"fmt"
	"strings"

	"github.com/Quyzi/mc6/pkg/mc6err"
)

// Label is a (name, value) tag. Both fields are normalised to lowercase on
// construction, per spec §3.
type Label struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`
}

// New builds a Label, lowercasing both fields.
func New(name, value string) Label {
	return Label{
		Name:  strings.ToLower(name),
		Value: strings.ToLower(value),
	}
}

// String returns the canonical "name=value" form.
func (l Label) String() string {
	return l.Name + "=" + l.Value
}

// Forward returns the forward index key: "name=value".
func (l Label) Forward() string {
	return l.Name + "=" + l.Value
}

// Reverse returns the reverse index key: "value=name".
func (l Label) Reverse() string {
	return l.Value + "=" + l.Name
}

// Parse parses "name=value" into a Label. It fails with
// mc6err.KindInvalidLabel if s contains no '='.
func Parse(s string) (Label, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return Label{}, mc6err.New(mc6err.KindInvalidLabel, fmt.Sprintf("label %q has no '=' separator", s))
	}
	return New(name, value), nil
}

// ParseForward parses a forward-index key ("name=value") back into a Label.
// Equivalent to Parse; named separately so callers reading index_fwd keys
// read naturally.
func ParseForward(s string) (Label, error) {
	return Parse(s)
}

// ParseReverse parses a reverse-index key ("value=name") back into a Label.
func ParseReverse(s string) (Label, error) {
	value, name, ok := strings.Cut(s, "=")
	if !ok {
		return Label{}, mc6err.New(mc6err.KindInvalidLabel, fmt.Sprintf("reverse label %q has no '=' separator", s))
	}
	return New(name, value), nil
}

// Set is an unordered collection of distinct labels, matching Metadata's
// "labels: set of Label (unordered, duplicates collapsed)" field.
type Set map[Label]struct{}

// NewSet builds a Set from a slice of labels, collapsing duplicates.
func NewSet(labels ...Label) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Add inserts l into the set.
func (s Set) Add(l Label) {
	s[l] = struct{}{}
}

// Contains reports whether l is a member of the set. Safe to call on a nil
// Set (reports false).
func (s Set) Contains(l Label) bool {
	_, ok := s[l]
	return ok
}

// Slice returns the set's members in no particular order.
func (s Set) Slice() []Label {
	out := make([]Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}

// Package meta implements Metadata, the per-object content-descriptor and
// label-set record, and its self-describing CBOR wire encoding.
package meta

import (
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/Quyzi/mc6/pkg/label"
	"github.com/Quyzi/mc6/pkg/mc6err"
)

// Metadata is the per-object record: content descriptors, declared size,
// label set, and an opaque client-defined offset map. See spec §3.
type Metadata struct {
	ContentType     string
	ContentEncoding string
	ContentLanguage string
	Size            uint64
	Labels          label.Set
	OffsetMap       string
}

// wireMetadata is Metadata's CBOR shape. Labels round-trip as a sorted
// slice rather than a Go map so the encoding never depends on map iteration
// order and so fxamacker/cbor never has to deal with a struct-keyed map.
type wireMetadata struct {
	ContentType     string        `cbor:"content_type"`
	ContentEncoding string        `cbor:"content_encoding"`
	ContentLanguage string        `cbor:"content_language"`
	Size            uint64        `cbor:"size"`
	Labels          []label.Label `cbor:"labels"`
	OffsetMap       string        `cbor:"offset_map"`
}

func (m Metadata) toWire() wireMetadata {
	labels := m.Labels.Slice()
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Name != labels[j].Name {
			return labels[i].Name < labels[j].Name
		}
		return labels[i].Value < labels[j].Value
	})
	return wireMetadata{
		ContentType:     m.ContentType,
		ContentEncoding: m.ContentEncoding,
		ContentLanguage: m.ContentLanguage,
		Size:            m.Size,
		Labels:          labels,
		OffsetMap:       m.OffsetMap,
	}
}

func (w wireMetadata) fromWire() Metadata {
	return Metadata{
		ContentType:     w.ContentType,
		ContentEncoding: w.ContentEncoding,
		ContentLanguage: w.ContentLanguage,
		Size:            w.Size,
		Labels:          label.NewSet(w.Labels...),
		OffsetMap:       w.OffsetMap,
	}
}

// MarshalCBOR implements cbor.Marshaler.
func (m Metadata) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(m.toWire())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Metadata) UnmarshalCBOR(data []byte) error {
	var w wireMetadata
	if err := cbor.Unmarshal(data, &w); err != nil {
		return mc6err.Wrap(mc6err.KindSerialization, "decode metadata", err)
	}
	*m = w.fromWire()
	return nil
}

// Encode serialises m into its self-describing CBOR form.
func Encode(m Metadata) ([]byte, error) {
	b, err := cbor.Marshal(m)
	if err != nil {
		return nil, mc6err.Wrap(mc6err.KindSerialization, "encode metadata", err)
	}
	return b, nil
}

// Decode deserialises Metadata from its CBOR form. Decode failures are
// reported as mc6err.KindSerialization, per spec §4.1.
func Decode(b []byte) (Metadata, error) {
	var m Metadata
	if err := cbor.Unmarshal(b, &m); err != nil {
		return Metadata{}, mc6err.Wrap(mc6err.KindSerialization, "decode metadata", err)
	}
	return m, nil
}

// LabelString renders the label set as a comma-separated "name=value" list,
// the format echoed on the x-mauve-labels header (spec §6).
func (m Metadata) LabelString() string {
	labels := m.Labels.Slice()
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Forward())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// ParseLabelHeader parses the x-mauve-labels header value into a label.Set.
// Empty segments and segments without '=' are skipped (spec §6).
func ParseLabelHeader(header string) label.Set {
	set := label.NewSet()
	for _, part := range strings.Split(header, ",") {
		if part == "" {
			continue
		}
		l, err := label.Parse(part)
		if err != nil {
			continue
		}
		set.Add(l)
	}
	return set
}

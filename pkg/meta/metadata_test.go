package meta

import (
	"testing"

	"github.com/Quyzi/mc6/pkg/label"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := Metadata{
		ContentType: "text/plain",
		Size:        42,
		Labels:      label.NewSet(label.New("env", "prod"), label.New("tier", "web")),
		OffsetMap:   "0-41",
	}
	b, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ContentType != m.ContentType || got.Size != m.Size || got.OffsetMap != m.OffsetMap {
		t.Fatalf("got %+v, want %+v", got, m)
	}
	if len(got.Labels) != len(m.Labels) {
		t.Fatalf("label set size = %d, want %d", len(got.Labels), len(m.Labels))
	}
}

func TestEncodeStableUnderLabelSetIterationOrder(t *testing.T) {
	m1 := Metadata{Labels: label.NewSet(label.New("a", "1"), label.New("b", "2"))}
	m2 := Metadata{Labels: label.NewSet(label.New("b", "2"), label.New("a", "1"))}

	b1, err := Encode(m1)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b2, err := Encode(m2)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatal("Encode must be stable regardless of label set construction order")
	}
}

func TestLabelString(t *testing.T) {
	m := Metadata{Labels: label.NewSet(label.New("tier", "web"), label.New("env", "prod"))}
	if got, want := m.LabelString(), "env=prod,tier=web"; got != want {
		t.Fatalf("LabelString() = %q, want %q", got, want)
	}
}

func TestParseLabelHeader(t *testing.T) {
	set := ParseLabelHeader("env=prod,,tier=web,malformed")
	if len(set) != 2 {
		t.Fatalf("len(set) = %d, want 2 (malformed/empty segments skipped)", len(set))
	}
	if !has(set, label.New("env", "prod")) || !has(set, label.New("tier", "web")) {
		t.Fatalf("got %+v", set)
	}
}

func has(s label.Set, l label.Label) bool {
	_, ok := s[l]
	return ok
}

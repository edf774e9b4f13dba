package posting

import (
	"bytes"
	"testing"

	"github.com/Quyzi/mc6/pkg/objectref"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	refs := []objectref.ObjectRef{
		objectref.New("docs", "b.txt"),
		objectref.New("docs", "a.txt"),
	}
	b, err := Encode(refs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []objectref.ObjectRef{
		objectref.New("docs", "a.txt"),
		objectref.New("docs", "b.txt"),
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v, want %+v (sorted)", got, want)
	}
}

func TestEncodeIsStableUnderReordering(t *testing.T) {
	a, err := Encode([]objectref.ObjectRef{objectref.New("x", "1"), objectref.New("x", "2")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode([]objectref.ObjectRef{objectref.New("x", "2"), objectref.New("x", "1")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("Encode should produce identical bytes regardless of input order")
	}
}

func TestContains(t *testing.T) {
	refs := []objectref.ObjectRef{objectref.New("c", "n")}
	if !Contains(refs, objectref.New("c", "n")) {
		t.Fatal("expected Contains to find matching ref")
	}
	if Contains(refs, objectref.New("c", "other")) {
		t.Fatal("expected Contains to reject non-member ref")
	}
}

func TestWithout(t *testing.T) {
	refs := []objectref.ObjectRef{
		objectref.New("c", "a"),
		objectref.New("c", "b"),
		objectref.New("c", "a"),
	}
	out := Without(refs, objectref.New("c", "a"))
	if len(out) != 1 || out[0] != objectref.New("c", "b") {
		t.Fatalf("got %+v, want only c/b", out)
	}
}

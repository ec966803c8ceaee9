package timecode

import (
	"testing"
)

func TestParseRange_roundtrip(t *testing.T) {
	cases := []string{"[0:0_6:0)", "(1:0_2:500000000]", "[3:0_3:0]", "(0:0_10:0)"}
	for _, in := range cases {
		r, err := ParseRange(in)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", in, err)
		}
		if got := r.String(); got != in {
			t.Errorf("round trip %q: got %q", in, got)
		}
	}
}

func TestParseRange_malformed(t *testing.T) {
	cases := []string{"", "[", "0:0_6:0", "[0:0_6:0", "0:0_6:0)", "[0:06:0)", "[6:0_0:0)", "{0:0_6:0)"}
	for _, in := range cases {
		if _, err := ParseRange(in); err == nil {
			t.Errorf("ParseRange(%q): expected error", in)
		}
	}
}

func TestTimeRange_length(t *testing.T) {
	r, err := ParseRange("[2:0_8:500000000)")
	if err != nil {
		t.Fatal(err)
	}
	if r.Length() != 6_500_000_000 {
		t.Errorf("Length: got %d", r.Length())
	}
	if r.LengthSeconds() != 6.5 {
		t.Errorf("LengthSeconds: got %v", r.LengthSeconds())
	}
}

func TestIntersect_overlapping(t *testing.T) {
	a, _ := ParseRange("[0:0_6:0)")
	b, _ := ParseRange("[4:0_10:0)")
	got, ok := a.Intersect(b)
	if !ok {
		t.Fatal("expected overlap")
	}
	if got.String() != "[4:0_6:0)" {
		t.Errorf("got %q", got.String())
	}
}

func TestIntersect_touching_exclusive_boundary(t *testing.T) {
	a, _ := ParseRange("[0:0_6:0)")
	b, _ := ParseRange("[6:0_12:0)")
	if _, ok := a.Intersect(b); ok {
		t.Error("touching at an excluded boundary should not intersect")
	}
}

func TestIntersect_touching_inclusive_boundary(t *testing.T) {
	a, _ := ParseRange("[0:0_6:0]")
	b, _ := ParseRange("[6:0_12:0)")
	got, ok := a.Intersect(b)
	if !ok {
		t.Fatal("shared included boundary should intersect")
	}
	if got.String() != "[6:0_6:0]" {
		t.Errorf("got %q", got.String())
	}
}

func TestIntersect_disjoint(t *testing.T) {
	a, _ := ParseRange("[0:0_2:0)")
	b, _ := ParseRange("[4:0_6:0)")
	if _, ok := a.Intersect(b); ok {
		t.Error("disjoint ranges should not intersect")
	}
}

func TestIntersect_commutative_and_bounded(t *testing.T) {
	ranges := []string{"[0:0_6:0)", "[4:0_10:0)", "(2:0_8:0]", "[6:0_6:0]", "[0:0_2:0)"}
	for _, as := range ranges {
		for _, bs := range ranges {
			a, _ := ParseRange(as)
			b, _ := ParseRange(bs)
			ab, okAB := a.Intersect(b)
			ba, okBA := b.Intersect(a)
			if okAB != okBA || (okAB && ab.String() != ba.String()) {
				t.Errorf("Intersect not commutative for %s and %s: %v/%v", as, bs, ab, ba)
			}
			if okAB && (ab.Length() > a.Length() || ab.Length() > b.Length()) {
				t.Errorf("intersection of %s and %s longer than an input: %s", as, bs, ab)
			}
		}
	}
}

func TestNewRange_rejects_inverted(t *testing.T) {
	if _, err := NewRange(FromSeconds(5, 0), FromSeconds(4, 0), IncludeStart); err == nil {
		t.Error("expected error for end before start")
	}
}

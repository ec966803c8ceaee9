package timecode

import (
	"testing"
	"time"
)

func TestParseTimestamp_roundtrip(t *testing.T) {
	cases := []string{"0:0", "5:0", "5:500000000", "-2:250000000", "1234567890:999999999"}
	for _, in := range cases {
		ts, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if got := ts.String(); got != in {
			t.Errorf("round trip %q: got %q", in, got)
		}
	}
}

func TestParseTimestamp_malformed(t *testing.T) {
	cases := []string{"", "5", "5:", ":5", "a:b", "5:-1", "5:1000000000", "1:2:3", "-:0"}
	for _, in := range cases {
		if _, err := ParseTimestamp(in); err == nil {
			t.Errorf("ParseTimestamp(%q): expected error", in)
		}
	}
}

func TestTimestamp_arithmetic(t *testing.T) {
	a := FromSeconds(5, 0)
	b := a.Add(500_000_000)
	if got := b.String(); got != "5:500000000" {
		t.Errorf("Add: got %q", got)
	}
	if diff := b.Sub(a); diff != 500_000_000 {
		t.Errorf("Sub: got %d", diff)
	}
	if !a.Before(b) || b.Before(a) {
		t.Error("Before ordering wrong")
	}
	if a.Compare(a) != 0 {
		t.Error("Compare self should be 0")
	}
}

func TestTimestamp_negative_formatting(t *testing.T) {
	ts := FromNanoseconds(-1_500_000_000)
	got := ts.String()
	if got != "-1:500000000" {
		t.Errorf("got %q", got)
	}
	back, err := ParseTimestamp(got)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Nanoseconds() != -1_500_000_000 {
		t.Errorf("reparse value: got %d", back.Nanoseconds())
	}
}

func TestTimestamp_time_conversion(t *testing.T) {
	wall := time.Date(2024, 3, 1, 12, 0, 0, 250_000_000, time.UTC)
	ts := FromTime(wall)
	if !ts.Time().Equal(wall) {
		t.Errorf("Time round trip: got %v want %v", ts.Time(), wall)
	}
}

func TestTimestamp_text_marshalling(t *testing.T) {
	ts := FromNanoseconds(2_000_000_001)
	data, err := ts.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back Timestamp
	if err := back.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if back.Compare(ts) != 0 {
		t.Errorf("marshal round trip: got %v want %v", back, ts)
	}
}

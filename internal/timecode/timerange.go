package timecode

import (
	"fmt"
	"strings"
)

// Inclusivity states which ends of a TimeRange contain their boundary
// timestamp. Start and end are settable independently.
type Inclusivity uint8

const (
	Exclusive    Inclusivity = 0
	IncludeStart Inclusivity = 1 << 0
	IncludeEnd   Inclusivity = 1 << 1
	IncludeBoth  Inclusivity = IncludeStart | IncludeEnd
)

// TimeRange is a span between two Timestamps. The canonical text form wraps
// "<start>_<end>" in a bracket for an inclusive bound and a parenthesis for an
// exclusive one, e.g. "[0:0_6:0)".
type TimeRange struct {
	Start       Timestamp
	End         Timestamp
	Inclusivity Inclusivity
}

// NewRange builds a TimeRange, requiring start <= end.
func NewRange(start, end Timestamp, inc Inclusivity) (TimeRange, error) {
	if end.Before(start) {
		return TimeRange{}, fmt.Errorf("%w: range end %s before start %s", ErrMalformedTimecode, end, start)
	}
	return TimeRange{Start: start, End: end, Inclusivity: inc}, nil
}

// ParseRange parses the canonical bracketed form.
func ParseRange(s string) (TimeRange, error) {
	if len(s) < 2 {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	var inc Inclusivity
	switch s[0] {
	case '[':
		inc |= IncludeStart
	case '(':
	default:
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	switch s[len(s)-1] {
	case ']':
		inc |= IncludeEnd
	case ')':
	default:
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	start, end, ok := strings.Cut(s[1:len(s)-1], "_")
	if !ok {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	startTS, err := ParseTimestamp(start)
	if err != nil {
		return TimeRange{}, err
	}
	endTS, err := ParseTimestamp(end)
	if err != nil {
		return TimeRange{}, err
	}
	return NewRange(startTS, endTS, inc)
}

// String renders the canonical bracketed form.
func (r TimeRange) String() string {
	open, closing := "(", ")"
	if r.Inclusivity&IncludeStart != 0 {
		open = "["
	}
	if r.Inclusivity&IncludeEnd != 0 {
		closing = "]"
	}
	return open + r.Start.String() + "_" + r.End.String() + closing
}

// Length returns end minus start in nanoseconds.
func (r TimeRange) Length() int64 {
	return r.End.Sub(r.Start)
}

// LengthSeconds returns the range length as seconds in floating point, for
// duration fields that tolerate it.
func (r TimeRange) LengthSeconds() float64 {
	return float64(r.Length()) / float64(nanosPerSecond)
}

// Intersect returns the overlap of r and o. ok is false when the ranges are
// disjoint, including the touching case where only an excluded boundary is
// shared; callers can therefore tell "touching" from "overlapping".
func (r TimeRange) Intersect(o TimeRange) (TimeRange, bool) {
	start := r.Start
	startInc := r.Inclusivity & IncludeStart
	switch start.Compare(o.Start) {
	case -1:
		start = o.Start
		startInc = o.Inclusivity & IncludeStart
	case 0:
		startInc &= o.Inclusivity & IncludeStart
	}

	end := r.End
	endInc := r.Inclusivity & IncludeEnd
	switch end.Compare(o.End) {
	case 1:
		end = o.End
		endInc = o.Inclusivity & IncludeEnd
	case 0:
		endInc &= o.Inclusivity & IncludeEnd
	}

	if end.Before(start) {
		return TimeRange{}, false
	}
	if start.Compare(end) == 0 && (startInc == 0 || endInc == 0) {
		return TimeRange{}, false
	}
	return TimeRange{Start: start, End: end, Inclusivity: startInc | endInc}, true
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (r TimeRange) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *TimeRange) UnmarshalText(b []byte) error {
	parsed, err := ParseRange(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

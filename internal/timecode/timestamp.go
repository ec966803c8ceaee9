// Package timecode implements the exact rational time model used by the
// media store: nanosecond-precision timestamps and inclusive/exclusive time
// ranges with canonical text forms. All arithmetic is integer arithmetic;
// floating point appears only in display helpers.
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTimecode is returned when timestamp or time range text does not
// match the canonical grammar.
var ErrMalformedTimecode = errors.New("malformed timecode")

const nanosPerSecond = 1_000_000_000

// Timestamp is a signed count of nanoseconds since an arbitrary or wall-clock
// epoch. The zero value is the epoch itself.
type Timestamp struct {
	nanos int64
}

// FromNanoseconds returns the Timestamp n nanoseconds from the epoch.
func FromNanoseconds(n int64) Timestamp {
	return Timestamp{nanos: n}
}

// FromSeconds returns the Timestamp at sec whole seconds plus ns nanoseconds.
func FromSeconds(sec int64, ns int64) Timestamp {
	return Timestamp{nanos: sec*nanosPerSecond + ns}
}

// FromTime converts a wall-clock time to a Timestamp on the Unix epoch.
func FromTime(t time.Time) Timestamp {
	return Timestamp{nanos: t.UnixNano()}
}

// ParseTimestamp parses the canonical "<seconds>:<nanoseconds>" form, with an
// optional leading "-" applied to the whole value.
func ParseTimestamp(s string) (Timestamp, error) {
	text := s
	negative := strings.HasPrefix(text, "-")
	if negative {
		text = text[1:]
	}
	sec, ns, ok := strings.Cut(text, ":")
	if !ok {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	secs, err := strconv.ParseInt(sec, 10, 64)
	if err != nil || strings.HasPrefix(sec, "-") {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	nanos, err := strconv.ParseInt(ns, 10, 64)
	if err != nil || nanos < 0 || nanos >= nanosPerSecond {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimecode, s)
	}
	total := secs*nanosPerSecond + nanos
	if negative {
		total = -total
	}
	return Timestamp{nanos: total}, nil
}

// String renders the canonical "<seconds>:<nanoseconds>" form.
func (t Timestamp) String() string {
	n := t.nanos
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d:%d", sign, n/nanosPerSecond, n%nanosPerSecond)
}

// Nanoseconds returns the total nanosecond count from the epoch.
func (t Timestamp) Nanoseconds() int64 { return t.nanos }

// Seconds returns the whole-seconds part, truncated toward zero.
func (t Timestamp) Seconds() int64 { return t.nanos / nanosPerSecond }

// Nano returns the sub-second nanoseconds part of the absolute value.
func (t Timestamp) Nano() int64 {
	n := t.nanos % nanosPerSecond
	if n < 0 {
		n = -n
	}
	return n
}

// Add returns t shifted forward by d nanoseconds.
func (t Timestamp) Add(d int64) Timestamp {
	return Timestamp{nanos: t.nanos + d}
}

// Sub returns the delta t minus o in nanoseconds.
func (t Timestamp) Sub(o Timestamp) int64 {
	return t.nanos - o.nanos
}

// Compare returns -1, 0 or 1 as t is before, equal to or after o.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.nanos < o.nanos:
		return -1
	case t.nanos > o.nanos:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool { return t.nanos < o.nanos }

// After reports whether t is strictly later than o.
func (t Timestamp) After(o Timestamp) bool { return t.nanos > o.nanos }

// IsZero reports whether t is the epoch.
func (t Timestamp) IsZero() bool { return t.nanos == 0 }

// Float returns the timestamp as seconds in floating point. Display only;
// never feed the result back into range arithmetic.
func (t Timestamp) Float() float64 {
	return float64(t.nanos) / float64(nanosPerSecond)
}

// Time converts a Unix-epoch Timestamp to a wall-clock time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, t.nanos)
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

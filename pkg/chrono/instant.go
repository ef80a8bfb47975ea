package chrono

import (
	"fmt"
	"strings"
	"time"
)

// Instant is a timezone-free point on the UTC timeline. Raw timestamp strings
// are converted exactly once, at load time; every downstream comparison and
// subtraction happens between Instants, so a tz-aware and a tz-naive source
// value can never meet in a comparison.
type Instant struct {
	t time.Time
}

// Layouts accepted at ingestion. Naive layouts are read as UTC wall clock,
// which matches how the research extracts are exported.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseError reports a timestamp value that none of the accepted layouts
// could read. The affected record is excluded from all aggregations.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable timestamp %q", e.Value)
}

// Parse normalizes a raw timestamp string to an Instant.
func Parse(value string) (Instant, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Instant{}, &ParseError{Value: value}
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return FromTime(ts), nil
		}
	}
	return Instant{}, &ParseError{Value: value}
}

// FromTime normalizes a time.Time, collapsing whatever zone it carries onto
// the UTC wall clock.
func FromTime(ts time.Time) Instant {
	return Instant{t: ts.UTC()}
}

func (i Instant) Sub(other Instant) time.Duration {
	return i.t.Sub(other.t)
}

func (i Instant) Add(d time.Duration) Instant {
	return Instant{t: i.t.Add(d)}
}

func (i Instant) Before(other Instant) bool {
	return i.t.Before(other.t)
}

func (i Instant) After(other Instant) bool {
	return i.t.After(other.t)
}

func (i Instant) Equal(other Instant) bool {
	return i.t.Equal(other.t)
}

func (i Instant) IsZero() bool {
	return i.t.IsZero()
}

// Time exposes the underlying UTC time for formatting and storage.
func (i Instant) Time() time.Time {
	return i.t
}

func (i Instant) String() string {
	return i.t.Format("2006-01-02T15:04:05")
}

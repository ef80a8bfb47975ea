package chrono

import (
	"errors"
	"testing"
	"time"
)

func TestParseNormalizesZones(t *testing.T) {
	// The same physical instant written tz-aware and tz-naive (already in
	// UTC wall clock) must compare equal after parsing.
	aware, err := Parse("2024-01-01T10:00:00+02:00")
	if err != nil {
		t.Fatalf("parse aware: %v", err)
	}
	naive, err := Parse("2024-01-01T08:00:00")
	if err != nil {
		t.Fatalf("parse naive: %v", err)
	}
	if !aware.Equal(naive) {
		t.Fatalf("expected %v == %v", aware, naive)
	}
}

func TestParseLayouts(t *testing.T) {
	values := []string{
		"2024-03-15T09:30:00Z",
		"2024-03-15T09:30:00.123456789Z",
		"2024-03-15T09:30:00",
		"2024-03-15 09:30:00",
		"2024-03-15",
	}
	for _, v := range values {
		if _, err := Parse(v); err != nil {
			t.Errorf("Parse(%q): %v", v, err)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "   ", "not-a-time", "15/03/2024", "2024-13-45"} {
		_, err := Parse(v)
		if err == nil {
			t.Errorf("Parse(%q): expected error", v)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): expected *ParseError, got %T", v, err)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a, _ := Parse("2024-01-01T00:00:00")
	b := a.Add(36 * time.Hour)
	if got := b.Sub(a); got != 36*time.Hour {
		t.Fatalf("Sub = %v, want 36h", got)
	}
	if !a.Before(b) || !b.After(a) {
		t.Fatal("ordering broken")
	}
	if a.IsZero() {
		t.Fatal("parsed instant reported zero")
	}
	var zero Instant
	if !zero.IsZero() {
		t.Fatal("zero instant not reported zero")
	}
}

package internal

import (
	"errors"
	"testing"
	"time"
)

func TestParseExpirationPositiveOffset(t *testing.T) {
	got, err := ParseExpiration("2026-03-01 15:04:05+07:00")
	if err != nil {
		t.Fatalf("ParseExpiration failed: %v", err)
	}

	want := time.Date(2026, 3, 1, 8, 4, 5, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Instant mismatch. Got %v, want %v", got, want)
	}
}

func TestParseExpirationNegativeOffset(t *testing.T) {
	got, err := ParseExpiration("2026-03-01 15:04:05-05:30")
	if err != nil {
		t.Fatalf("ParseExpiration failed: %v", err)
	}

	want := time.Date(2026, 3, 1, 20, 34, 5, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Instant mismatch. Got %v, want %v", got, want)
	}
}

func TestParseExpirationRoundTrip(t *testing.T) {
	inputs := []string{
		"2026-03-01 15:04:05+07:00",
		"2026-03-01 15:04:05-07:00",
		"2026-12-31 23:59:59+00:00",
		"2025-01-01 00:00:00-11:45",
	}

	for _, in := range inputs {
		first, err := ParseExpiration(in)
		if err != nil {
			t.Fatalf("ParseExpiration(%q) failed: %v", in, err)
		}
		second, err := ParseExpiration(FormatExpiration(first))
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", FormatExpiration(first), err)
		}
		if !first.Equal(second) {
			t.Errorf("Round trip of %q drifted: %v != %v", in, first, second)
		}
	}
}

func TestParseExpirationMalformed(t *testing.T) {
	inputs := []string{
		"",
		"2026-03-01 15:04:05",       // no offset
		"2026-03-01 15:04:05 07:00", // offset sign missing
		"2026-03-01 15:04:05*07:00", // bad sign
		"2026-03-01 15:04:05+ab:cd", // non-numeric offset
		"garbage",
	}

	for _, in := range inputs {
		_, err := ParseExpiration(in)
		if err == nil {
			t.Errorf("ParseExpiration(%q) should have failed", in)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseExpiration(%q) returned %T, want *ParseError", in, err)
		}
	}
}

func TestRemainingValiditySignChangesAtBoundary(t *testing.T) {
	expiry, err := ParseExpiration("2026-03-01 12:00:00+00:00")
	if err != nil {
		t.Fatalf("ParseExpiration failed: %v", err)
	}

	before := expiry.Add(-1 * time.Second)
	after := expiry.Add(1 * time.Second)

	if RemainingValidity(expiry, before) <= 0 {
		t.Error("One second before expiry should still be valid")
	}
	if RemainingValidity(expiry, expiry) > 0 {
		t.Error("At the expiry instant the session counts as expired")
	}
	if RemainingValidity(expiry, after) > 0 {
		t.Error("One second after expiry should be expired")
	}
}

package internal

import (
	"strings"
	"time"
)

const (
	// ExpirationFormat is the wire format AWS returns for session
	// expirations: a local timestamp followed by a UTC offset.
	ExpirationFormat = "2006-01-02 15:04:05-07:00"
	// DisplayTimeFormat is the standard time format used across the application
	DisplayTimeFormat = "2006-01-02 15:04:05"
)

// ParseExpiration converts an expiration string in the form
// "YYYY-MM-DD HH:MM:SS±HH:MM" into an absolute UTC instant.
// Malformed input is a hard error: a silently wrong offset adjustment
// would produce wrong expiry decisions downstream.
func ParseExpiration(s string) (time.Time, error) {
	if len(s) < len(ExpirationFormat) {
		return time.Time{}, &ParseError{Input: s, Reason: "too short"}
	}
	sign := s[19]
	if sign != '+' && sign != '-' {
		return time.Time{}, &ParseError{Input: s, Reason: "offset must start with '+' or '-'"}
	}
	t, err := time.Parse(ExpirationFormat, s)
	if err != nil {
		reason := err.Error()
		if idx := strings.Index(reason, ": "); idx >= 0 {
			reason = reason[idx+2:]
		}
		return time.Time{}, &ParseError{Input: s, Reason: reason}
	}
	return t.UTC(), nil
}

// FormatExpiration is the inverse of ParseExpiration; a profile written
// with it always round-trips through the parser.
func FormatExpiration(t time.Time) string {
	return t.Format(ExpirationFormat)
}

// RemainingValidity returns how long the session identified by expiry is
// still usable at the given instant. Zero or negative means expired.
func RemainingValidity(expiry, now time.Time) time.Duration {
	return expiry.Sub(now)
}

// Package duration provides human-readable duration parsing and formatting
// for the timeouts and polling delays configured on the checker.
//
// Supported units (case-insensitive, with plural/singular variants):
//   - ns, nanosecond(s): nanoseconds
//   - us/µs, microsecond(s): microseconds
//   - ms, millisecond(s): milliseconds
//   - s, sec, second(s): seconds
//   - m, min, minute(s): minutes
//   - h, hr, hour(s): hours
//
// Examples:
//   - "30s" = 30 seconds
//   - "1m30s" = 90 seconds
//   - "500 ms" = 500 milliseconds
package duration

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// standardUnitReplacements maps full word time units to their Go duration equivalents.
// This allows users to write "30 seconds" instead of "30s".
var standardUnitReplacements = map[string]string{
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"millisecond": "ms", "milliseconds": "ms", "milli": "ms", "millis": "ms",
	"microsecond": "us", "microseconds": "us", "micro": "us", "micros": "us",
	"nanosecond": "ns", "nanoseconds": "ns", "nano": "ns", "nanos": "ns",
}

// standardUnitPattern matches standard time units written as full words
// with optional whitespace between number and unit.
// Examples: "3 hours", "30 minutes", "5 seconds"
var standardUnitPattern = regexp.MustCompile(`(?i)(\d+)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?|milliseconds?|millis?|microseconds?|micros?|nanoseconds?|nanos?)`)

// Parse parses a human-readable duration string, extending time.ParseDuration
// to accept full unit words ("30 seconds") and optional whitespace between the
// number and the unit ("5 min").
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	normalized := standardUnitPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := standardUnitPattern.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		if short, ok := standardUnitReplacements[strings.ToLower(parts[2])]; ok {
			return parts[1] + short
		}
		return match
	})
	normalized = strings.Join(strings.Fields(normalized), "")

	d, err := time.ParseDuration(normalized)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
// Use only for compile-time constants.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format converts a duration to a human-readable string with zero components
// omitted.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var result strings.Builder

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second

	if hours > 0 {
		fmt.Fprintf(&result, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&result, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&result, "%ds", seconds)
	}
	if d > 0 {
		switch {
		case d >= time.Millisecond:
			fmt.Fprintf(&result, "%dms", d/time.Millisecond)
		case d >= time.Microsecond:
			fmt.Fprintf(&result, "%dµs", d/time.Microsecond)
		default:
			fmt.Fprintf(&result, "%dns", d)
		}
	}

	if result.Len() == 0 {
		return "0s"
	}
	if negative {
		return "-" + result.String()
	}
	return result.String()
}

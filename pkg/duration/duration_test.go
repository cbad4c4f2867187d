package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"hours", "72h", 72 * time.Hour, false},
		{"minutes", "30m", 30 * time.Minute, false},
		{"seconds", "45s", 45 * time.Second, false},
		{"milliseconds", "100ms", 100 * time.Millisecond, false},
		{"combined standard", "1h30m", 90 * time.Minute, false},

		{"hours word", "3 hours", 3 * time.Hour, false},
		{"hour singular", "1 hour", time.Hour, false},
		{"minutes word", "30 minutes", 30 * time.Minute, false},
		{"minute singular", "1 minute", time.Minute, false},
		{"seconds word", "45 seconds", 45 * time.Second, false},
		{"second singular", "1 second", time.Second, false},
		{"hrs abbrev", "2 hrs", 2 * time.Hour, false},
		{"mins abbrev", "15 mins", 15 * time.Minute, false},
		{"secs abbrev", "30 secs", 30 * time.Second, false},
		{"mixed full words", "2 hours 30 minutes", 2*time.Hour + 30*time.Minute, false},
		{"full words no space", "2hours30minutes", 2*time.Hour + 30*time.Minute, false},

		{"zero", "0s", 0, false},
		{"negative seconds", "-5s", -5 * time.Second, false},
		{"negative words", "-30 seconds", -30 * time.Second, false},

		{"invalid", "invalid", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d, "Parse(%q) = %v, want %v", tt.input, d, tt.expected)
		})
	}
}

func TestMustParse(t *testing.T) {
	assert.NotPanics(t, func() {
		d := MustParse("30s")
		assert.Equal(t, 30*time.Second, d)
	})

	assert.Panics(t, func() {
		MustParse("invalid")
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"seconds", 45 * time.Second, "45s"},
		{"minutes", 30 * time.Minute, "30m"},
		{"hours", 12 * time.Hour, "12h"},
		{"hours and minutes", 90 * time.Minute, "1h30m"},
		{"sub-second", 500 * time.Millisecond, "500ms"},
		{"negative", -3 * time.Second, "-3s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	durations := []time.Duration{
		0,
		time.Second,
		time.Minute,
		time.Hour,
		90 * time.Second,
		3*time.Hour + 4*time.Minute + 5*time.Second,
	}

	for _, d := range durations {
		formatted := Format(d)
		parsed, err := Parse(formatted)
		require.NoError(t, err, "Parse(Format(%v)) failed: %v", d, err)
		assert.Equal(t, d, parsed, "round trip failed for %v: formatted=%q, parsed=%v", d, formatted, parsed)
	}
}

package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"30s", 30},
		{"10m", 600},
		{"2h", 7200},
		{"1d", 86400},
		{"0s", 0},
		{"1d2h30m", 86400 + 7200 + 1800},
		{"1h30m15s", 3600 + 1800 + 15},
		{"90m", 5400},
		{"1h1h", 7200},
		{" 5M ", 300},
		{"007s", 7},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"-5m",
		"5",
		"m",
		"5w",
		"1.5h",
		"abc",
		"10 m",
		"1h-30m",
		"h1",
		"99999999999999999999s",
		"9223372036854775807d",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := Parse(in)
			assert.ErrorIs(t, err, ErrParse)
			assert.Zero(t, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("1h30m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = ParseDuration("soon")
	assert.ErrorIs(t, err, ErrParse)
}

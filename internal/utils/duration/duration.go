// Package duration parses the compact durations users type into the
// giveaway command: "30s", "10m", "2h", "1d" or combinations like "1d2h30m".
package duration

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrParse is returned for any input that is not a sequence of <int><unit> pairs.
var ErrParse = errors.New("invalid duration: use s, m, h or d (e.g. 30s, 10m, 2h, 1d2h30m)")

var unitSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// Parse returns the total number of whole seconds described by s.
func Parse(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrParse
	}

	var total int64
	for i := 0; i < len(s); {
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start || i == len(s) {
			// no digits, or digits with no unit
			return 0, ErrParse
		}
		mult, ok := unitSeconds[s[i]]
		if !ok {
			return 0, ErrParse
		}
		amount, err := strconv.ParseInt(s[start:i], 10, 64)
		if err != nil {
			return 0, ErrParse
		}
		i++

		if amount > (math.MaxInt64-total)/mult {
			return 0, ErrParse
		}
		total += amount * mult
	}
	return total, nil
}

// ParseDuration is Parse expressed as a time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	secs, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if secs > int64(math.MaxInt64/time.Second) {
		return 0, ErrParse
	}
	return time.Duration(secs) * time.Second, nil
}

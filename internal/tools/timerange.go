package tools

import (
	"strconv"
	"strings"
	"time"

	"persai/internal/api"
)

// DefaultLookback is the window used when a range query specifies neither
// explicit bounds nor a duration.
const DefaultLookback = time.Hour

// ParseLookback parses a relative duration string of the form "<n><unit>"
// where unit is one of s, m, h, d or w. Matching is case-insensitive and
// surrounding whitespace is tolerated.
func ParseLookback(s string) (time.Duration, error) {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	if len(cleaned) < 2 {
		return 0, api.NewValidationError("invalid duration %q: expected a number followed by s, m, h, d or w", s)
	}

	value, err := strconv.ParseInt(cleaned[:len(cleaned)-1], 10, 64)
	if err != nil || value < 0 {
		return 0, api.NewValidationError("invalid duration %q: expected a number followed by s, m, h, d or w", s)
	}

	var unit time.Duration
	switch cleaned[len(cleaned)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, api.NewValidationError("invalid duration %q: unknown unit %q", s, string(cleaned[len(cleaned)-1]))
	}

	return time.Duration(value) * unit, nil
}

// ResolveTimeRange turns the range-query time arguments into concrete
// start/end timestamps (Unix seconds, as strings).
//
// Exactly one addressing mode is allowed: an explicit start+end pair, or a
// relative duration ending now. Mixing the two, or providing only half of
// the explicit pair, is an input error. With no arguments at all the range
// defaults to the last hour.
func ResolveTimeRange(start, end, duration string, now time.Time) (string, string, error) {
	hasPair := start != "" && end != ""
	hasPartialPair := (start != "") != (end != "")

	if duration != "" && (start != "" || end != "") {
		return "", "", api.NewValidationError("provide either start/end or duration, not both")
	}
	if hasPartialPair {
		return "", "", api.NewValidationError("start and end must be provided together")
	}
	if hasPair {
		return start, end, nil
	}

	lookback := DefaultLookback
	if duration != "" {
		parsed, err := ParseLookback(duration)
		if err != nil {
			return "", "", err
		}
		lookback = parsed
	}

	endTime := now
	startTime := endTime.Add(-lookback)
	return formatUnix(startTime), formatUnix(endTime), nil
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

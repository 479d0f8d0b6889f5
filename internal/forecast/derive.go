package forecast

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// RainfallBounds extracts the numeric envelope of a free-text rainfall field.
// The feed uses four shapes: empty or "0", a bare amount ("5"), a range
// ("5-10", optionally with a unit suffix), or a comma-joined compound of
// ranges with qualifier words ("5-10, 10-20 hills"). The result is the lowest
// lower bound and the highest upper bound across all parts.
func RainfallBounds(raw string) (float64, float64) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "0" {
		return 0, 0
	}

	var low, high float64
	seen := false
	for _, part := range strings.Split(trimmed, ",") {
		lo, hi, ok := parseRainfallPart(part)
		if !ok {
			continue
		}
		if !seen || lo < low {
			low = lo
		}
		if !seen || hi > high {
			high = hi
		}
		seen = true
	}
	if !seen {
		return 0, 0
	}
	return low, high
}

func parseRainfallPart(part string) (float64, float64, bool) {
	part = strings.TrimSpace(part)
	if part == "" {
		return 0, 0, false
	}
	if i := strings.Index(part, "-"); i >= 0 {
		lo, okLo := firstNumber(part[:i])
		hi, okHi := firstNumber(part[i+1:])
		switch {
		case okLo && okHi:
			return lo, hi, true
		case okHi:
			return hi, hi, true
		case okLo:
			return lo, lo, true
		default:
			return 0, 0, false
		}
	}
	value, ok := firstNumber(part)
	return value, value, ok
}

func firstNumber(text string) (float64, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ClassifyVisibility reduces a free-text visibility phrase to a coarse code.
// Only the leading comma segment counts: "Good, falling moderate or poor in
// rain" is a good-visibility day. Within that segment the earliest keyword
// wins.
func ClassifyVisibility(raw string) Visibility {
	segment := raw
	if i := strings.Index(raw, ","); i >= 0 {
		segment = raw[:i]
	}
	segment = strings.ToLower(segment)

	code := VisibilityUnknown
	best := -1
	for keyword, candidate := range map[string]Visibility{
		"good":     VisibilityGood,
		"moderate": VisibilityModerate,
		"poor":     VisibilityPoor,
	} {
		idx := strings.Index(segment, keyword)
		if idx >= 0 && (best == -1 || idx < best) {
			code = candidate
			best = idx
		}
	}
	return code
}

package viewmodel

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimal prefix: sign, digits with optional fraction, optional exponent
var numberPrefixRegexp = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber reads the numeric prefix of a state string. Missing, invalid or
// non-finite values are 0.
func ParseNumber(raw string) float64 {
	match := numberPrefixRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(match), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value == 0 {
		// drop negative zero
		return 0
	}
	return value
}

func FormatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func clampPercent(value float64) float64 {
	return math.Max(0, math.Min(value, 100))
}

// Package timefmt turns raw durations and Meshtastic "last heard" timestamps
// into short human strings.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400

	UPTIME_UNKNOWN = "N/A"
	JUST_NOW       = "just now"
)

var (
	leadingIntRegexp = regexp.MustCompile(`^\s*[+-]?\d+`)
	// YYYY-MM-DD HH:MM:SS UTC, as emitted by the Meshtastic integration
	utcTimestampRegexp = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2}) (\d{2}):(\d{2}):(\d{2}) UTC`)
)

// ParseLeadingInt reads the integer prefix of raw. Anything that does not
// start with an integer yields 0.
func ParseLeadingInt(raw string) int64 {
	match := leadingIntRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseInt(strings.TrimSpace(match), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// FormatUptime formats a state string holding a number of seconds.
func FormatUptime(raw string) string {
	return FormatUptimeSeconds(ParseLeadingInt(raw))
}

// FormatUptimeSeconds renders seconds as "Xd Xh Xm". Zero days and zero hours
// are omitted, minutes are always present. Non-positive input is "N/A".
func FormatUptimeSeconds(seconds int64) string {
	if seconds <= 0 {
		return UPTIME_UNKNOWN
	}
	days := seconds / secondsPerDay
	hours := (seconds % secondsPerDay) / secondsPerHour
	minutes := (seconds % secondsPerHour) / secondsPerMinute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}

// ParseUTCTimestamp extracts the first "YYYY-MM-DD HH:MM:SS UTC" instant found
// in raw. Out of range fields are normalized the way time.Date does.
func ParseUTCTimestamp(raw string) (time.Time, bool) {
	match := utcTimestampRegexp.FindStringSubmatch(raw)
	if match == nil {
		return time.Time{}, false
	}
	fields := make([]int, 6)
	for i := range fields {
		value, err := strconv.Atoi(match[i+1])
		if err != nil {
			return time.Time{}, false
		}
		fields[i] = value
	}
	return time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, time.UTC), true
}

// FormatRelative turns an absolute UTC timestamp into a "time ago" string
// relative to now. Input that does not hold a timestamp is returned unchanged.
func FormatRelative(raw string, now time.Time) string {
	then, ok := ParseUTCTimestamp(raw)
	if !ok {
		return raw
	}
	return FormatAgo(int64(now.Sub(then) / time.Second))
}

// FormatAgo buckets an elapsed number of seconds. Negative values come from
// clock skew between the radio and this host and are reported as "just now".
func FormatAgo(diffSeconds int64) string {
	switch {
	case diffSeconds < secondsPerMinute:
		return JUST_NOW
	case diffSeconds < secondsPerHour:
		return fmt.Sprintf("%d min ago", diffSeconds/secondsPerMinute)
	case diffSeconds < secondsPerDay:
		hours := diffSeconds / secondsPerHour
		minutes := (diffSeconds % secondsPerHour) / secondsPerMinute
		if minutes == 0 {
			return fmt.Sprintf("%dh ago", hours)
		}
		return fmt.Sprintf("%dh %dmin ago", hours, minutes)
	default:
		days := diffSeconds / secondsPerDay
		hours := (diffSeconds % secondsPerDay) / secondsPerHour
		return fmt.Sprintf("%dd %dh ago", days, hours)
	}
}

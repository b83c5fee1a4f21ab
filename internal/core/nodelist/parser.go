package nodelist

import (
	"fmt"
	"regexp"
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/timefmt"
)

// ONLINE_NODES_ATTRIBUTE holds the peer list on the nodes_online entity.
const ONLINE_NODES_ATTRIBUTE = "online_nodes"

// <name> (last heard: <timestamp>), name is the shortest prefix
var peerLineRegexp = regexp.MustCompile(`^(.+?) \(last heard: (.+)\)$`)

// Parse decodes the online peer attribute. Anything that is not a list yields
// an empty result; lines that do not follow the expected shape are kept
// verbatim as the name with an empty LastHeardAgo.
func Parse(raw any, now time.Time) []domain.PeerEntry {
	var lines []string
	switch list := raw.(type) {
	case []string:
		lines = list
	case []any:
		lines = make([]string, 0, len(list))
		for _, item := range list {
			lines = append(lines, lineOf(item))
		}
	default:
		return []domain.PeerEntry{}
	}

	entries := make([]domain.PeerEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, ParseLine(line, now))
	}
	return entries
}

func ParseLine(line string, now time.Time) domain.PeerEntry {
	match := peerLineRegexp.FindStringSubmatch(line)
	if match == nil {
		return domain.PeerEntry{Name: line}
	}
	return domain.PeerEntry{
		Name:         match[1],
		LastHeardAgo: timefmt.FormatRelative(match[2], now),
	}
}

func lineOf(item any) string {
	switch v := item.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

package expansion

import "github.com/berfenger/meshcard/internal/core/domain"

const (
	NO_ONLINE_NODES = "No online nodes"
	CHEVRON_UP      = "up"
	CHEVRON_DOWN    = "down"
)

type PeerRow struct {
	Name        string `json:"name"`
	Ago         string `json:"ago"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Presentation is what a shell shows for a snapshot: the peer rows are only
// present while expanded.
type Presentation struct {
	Snapshot domain.ViewSnapshot `json:"snapshot"`
	Expanded bool                `json:"expanded"`
	Chevron  string              `json:"chevron"`
	Rows     []PeerRow           `json:"rows"`
}

func Present(snapshot domain.ViewSnapshot, expanded bool) Presentation {
	p := Presentation{
		Snapshot: snapshot,
		Expanded: expanded,
		Chevron:  CHEVRON_DOWN,
		Rows:     []PeerRow{},
	}
	if !expanded {
		return p
	}
	p.Chevron = CHEVRON_UP
	if len(snapshot.PeerList) == 0 {
		p.Rows = append(p.Rows, PeerRow{Name: NO_ONLINE_NODES, Placeholder: true})
		return p
	}
	for _, peer := range snapshot.PeerList {
		p.Rows = append(p.Rows, PeerRow{Name: peer.Name, Ago: peer.LastHeardAgo})
	}
	return p
}

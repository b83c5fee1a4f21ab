package domain

import "time"

// RawMetric is the resolved value of a single suffix lookup.
type RawMetric struct {
	EntityId   string
	State      string
	Unit       string
	Attributes map[string]any
}

func (m *RawMetric) Attribute(name string) any {
	if m == nil || m.Attributes == nil {
		return nil
	}
	return m.Attributes[name]
}

type PeerEntry struct {
	Name         string `json:"name"`
	LastHeardAgo string `json:"last_heard_ago"`
}

// Bar is a percentage metric. Value is shown as-is, Fill is the bar width
// clamped to [0, 100].
type Bar struct {
	Label       string  `json:"label"`
	Icon        string  `json:"icon"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Text        string  `json:"text"`
	Fill        float64 `json:"fill"`
	Color       string  `json:"color"`
	ShowPowered bool    `json:"show_powered"`
	Powered     bool    `json:"powered"`
}

type Reading struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Text  string  `json:"text"`
}

type Traffic struct {
	Sent      float64 `json:"sent"`
	Received  float64 `json:"received"`
	Relayed   float64 `json:"relayed"`
	Canceled  float64 `json:"canceled"`
	Duplicate float64 `json:"duplicate"`
	Malformed float64 `json:"malformed"`
}

type PeerCount struct {
	Online int64 `json:"online"`
	Total  int64 `json:"total"`
}

// ViewSnapshot is the render-ready aggregation of every metric of one node.
type ViewSnapshot struct {
	DeviceId  string      `json:"device_id"`
	ShortName string      `json:"short_name"`
	LongName  string      `json:"long_name"`
	Model     string      `json:"model"`
	SwVersion string      `json:"sw_version"`
	Uptime    string      `json:"uptime"`
	Battery   Bar         `json:"battery"`
	Channel   Bar         `json:"channel"`
	Airtime   Bar         `json:"airtime"`
	Voltage   Reading     `json:"voltage"`
	Traffic   Traffic     `json:"traffic"`
	Peers     PeerCount   `json:"peers"`
	PeerList  []PeerEntry `json:"peer_list"`
	BuiltAt   time.Time   `json:"built_at"`
}

func (s ViewSnapshot) Bars() []Bar {
	return []Bar{s.Battery, s.Channel, s.Airtime}
}

// Package viewmodel aggregates the entities of one Meshtastic node into a
// render-ready ViewSnapshot.
package viewmodel

import (
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/nodelist"
	"github.com/berfenger/meshcard/internal/core/resolver"
	"github.com/berfenger/meshcard/internal/core/timefmt"
)

const (
	COLOR_BATTERY = "#4CAF50"
	COLOR_CHANNEL = "#2196F3"
	COLOR_AIRTIME = "#FF9800"

	POWERED_STATE = "on"
	VOLTAGE_UNIT  = "V"
)

type barSpec struct {
	label       string
	icon        string
	color       string
	showPowered bool
}

var (
	batteryBar = barSpec{label: "Battery", icon: "mdi:battery", color: COLOR_BATTERY, showPowered: true}
	channelBar = barSpec{label: "Channel", icon: "mdi:chart-donut", color: COLOR_CHANNEL}
	airtimeBar = barSpec{label: "Airtime", icon: "mdi:clock-fast", color: COLOR_AIRTIME}
)

// Build resolves every known suffix of deviceId and assembles the snapshot.
// It keeps no state between calls; now anchors the relative peer timestamps.
func Build(device domain.DeviceInfo, deviceId string, catalog domain.Catalog, now time.Time) domain.ViewSnapshot {
	lookup := func(suffix resolver.Suffix) *domain.RawMetric {
		return resolver.Resolve(deviceId, catalog, suffix)
	}

	powered := stateOf(lookup(resolver.SUFFIX_DEVICE_POWERED)) == POWERED_STATE
	nodesOnline := lookup(resolver.SUFFIX_NODES_ONLINE)

	return domain.ViewSnapshot{
		DeviceId:  deviceId,
		ShortName: stateOf(lookup(resolver.SUFFIX_NODE_SHORT_NAME)),
		LongName:  stateOf(lookup(resolver.SUFFIX_NODE_LONG_NAME)),
		Model:     device.Model,
		SwVersion: device.SwVersion,
		Uptime:    timefmt.FormatUptime(stateOf(lookup(resolver.SUFFIX_DEVICE_UPTIME))),
		Battery:   buildBar(batteryBar, lookup(resolver.SUFFIX_BATTERY_LEVEL), powered),
		Channel:   buildBar(channelBar, lookup(resolver.SUFFIX_CHANNEL_UTILIZATION), false),
		Airtime:   buildBar(airtimeBar, lookup(resolver.SUFFIX_AIRTIME), false),
		Voltage:   buildReading(lookup(resolver.SUFFIX_DEVICE_VOLTAGE), VOLTAGE_UNIT),
		Traffic: domain.Traffic{
			Sent:      numberOf(lookup(resolver.SUFFIX_PACKETS_TX)),
			Received:  numberOf(lookup(resolver.SUFFIX_PACKETS_RX)),
			Relayed:   numberOf(lookup(resolver.SUFFIX_PACKETS_TX_RELAYED)),
			Canceled:  numberOf(lookup(resolver.SUFFIX_PACKETS_TX_RELAY_CANCELLED)),
			Duplicate: numberOf(lookup(resolver.SUFFIX_PACKETS_RX_DUPLICATE)),
			Malformed: numberOf(lookup(resolver.SUFFIX_PACKETS_RX_BAD)),
		},
		Peers: domain.PeerCount{
			Online: int64(numberOf(nodesOnline)),
			Total:  int64(numberOf(lookup(resolver.SUFFIX_NODES_TOTAL))),
		},
		PeerList: nodelist.Parse(nodesOnline.Attribute(nodelist.ONLINE_NODES_ATTRIBUTE), now),
		BuiltAt:  now,
	}
}

func buildBar(spec barSpec, metric *domain.RawMetric, powered bool) domain.Bar {
	value := numberOf(metric)
	unit := unitOf(metric)
	return domain.Bar{
		Label:       spec.label,
		Icon:        spec.icon,
		Value:       value,
		Unit:        unit,
		Text:        FormatNumber(value) + unit,
		Fill:        clampPercent(value),
		Color:       spec.color,
		ShowPowered: spec.showPowered,
		Powered:     spec.showPowered && powered,
	}
}

func buildReading(metric *domain.RawMetric, unit string) domain.Reading {
	value := numberOf(metric)
	return domain.Reading{
		Value: value,
		Unit:  unit,
		Text:  FormatNumber(value) + unit,
	}
}

func stateOf(metric *domain.RawMetric) string {
	if metric == nil {
		return ""
	}
	return metric.State
}

func unitOf(metric *domain.RawMetric) string {
	if metric == nil {
		return ""
	}
	return metric.Unit
}

func numberOf(metric *domain.RawMetric) float64 {
	return ParseNumber(stateOf(metric))
}

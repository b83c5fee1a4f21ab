package resolver

import (
	"strings"

	"github.com/berfenger/meshcard/internal/core/domain"
)

const UNIT_ATTRIBUTE = "unit_of_measurement"

// Suffix identifies the sensor entity of a node by a fragment of its entity id.
type Suffix string

const (
	SUFFIX_NODE_SHORT_NAME            Suffix = "node_short_name"
	SUFFIX_NODE_LONG_NAME             Suffix = "node_long_name"
	SUFFIX_DEVICE_UPTIME              Suffix = "device_uptime"
	SUFFIX_BATTERY_LEVEL              Suffix = "battery_level"
	SUFFIX_DEVICE_VOLTAGE             Suffix = "device_voltage"
	SUFFIX_CHANNEL_UTILIZATION        Suffix = "channel_utilization"
	SUFFIX_AIRTIME                    Suffix = "airtime"
	SUFFIX_DEVICE_POWERED             Suffix = "device_powered"
	SUFFIX_PACKETS_RX                 Suffix = "packets_rx"
	SUFFIX_PACKETS_TX                 Suffix = "packets_tx"
	SUFFIX_PACKETS_TX_RELAYED         Suffix = "packets_tx_relayed"
	SUFFIX_PACKETS_TX_RELAY_CANCELLED Suffix = "packets_tx_relay_cancelled"
	SUFFIX_PACKETS_RX_BAD             Suffix = "packets_rx_bad"
	SUFFIX_PACKETS_RX_DUPLICATE       Suffix = "packets_rx_duplicate"
	SUFFIX_NODES_ONLINE               Suffix = "nodes_online"
	SUFFIX_NODES_TOTAL                Suffix = "nodes_total"
)

// DeviceEntities returns the entities of deviceId in catalog order.
func DeviceEntities(deviceId string, catalog domain.Catalog) []domain.EntityMeta {
	var entities []domain.EntityMeta
	for _, e := range catalog.Entities {
		if e.DeviceId == deviceId {
			entities = append(entities, e)
		}
	}
	return entities
}

// Resolve finds the first entity of deviceId whose id contains suffix and
// returns its current state. It returns nil when nothing matches or the
// matching entity has no state.
//
// Suffixes are plain substrings: "packets_rx" also matches
// "sensor.node_packets_rx_bad". The first entity in catalog order wins.
func Resolve(deviceId string, catalog domain.Catalog, suffix Suffix) *domain.RawMetric {
	for _, e := range catalog.Entities {
		if e.DeviceId != deviceId || !strings.Contains(e.EntityId, string(suffix)) {
			continue
		}
		st, ok := catalog.State(e.EntityId)
		if !ok {
			return nil
		}
		unit, _ := st.Attributes[UNIT_ATTRIBUTE].(string)
		return &domain.RawMetric{
			EntityId:   e.EntityId,
			State:      st.State,
			Unit:       unit,
			Attributes: st.Attributes,
		}
	}
	return nil
}

// StubDeviceID returns the device of the first Meshtastic entity, or "" when
// the catalog holds none.
func StubDeviceID(catalog domain.Catalog) string {
	for _, e := range catalog.Entities {
		if e.Platform == domain.PLATFORM_MESHTASTIC {
			return e.DeviceId
		}
	}
	return ""
}

// MeshtasticDevices lists the distinct devices owning Meshtastic entities, in
// catalog order.
func MeshtasticDevices(catalog domain.Catalog) []domain.MeshtasticDevice {
	seen := map[string]bool{}
	devices := []domain.MeshtasticDevice{}
	for _, e := range catalog.Entities {
		if e.Platform != domain.PLATFORM_MESHTASTIC || e.DeviceId == "" || seen[e.DeviceId] {
			continue
		}
		seen[e.DeviceId] = true
		dev := catalog.Device(e.DeviceId)
		devices = append(devices, domain.MeshtasticDevice{
			Id:        e.DeviceId,
			Name:      dev.Name,
			Model:     dev.Model,
			SwVersion: dev.SwVersion,
		})
	}
	return devices
}

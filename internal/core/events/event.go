package events

import (
	. "github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/expansion"
)

// SnapshotToUpdateEvents turns a card update into the sensor events published
// over MQTT.
func SnapshotToUpdateEvents(ev SnapshotUpdatedEvent) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	// Card presentation, peers only listed while expanded
	events = append(events, JsonSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CARD,
		},
		Value: expansion.Present(ev.Snapshot, ev.Expanded),
	})
	// Expansion switch
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_NODES_EXPANDED,
		},
		Value: ev.Expanded,
	})

	return events
}

package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type JsonSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value any
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// CatalogSnapshotEvent replaces the whole catalog known to the card.
type CatalogSnapshotEvent struct {
	Catalog *Catalog
}

// StateChangedEvent carries a single entity update. A nil State means the
// entity was removed.
type StateChangedEvent struct {
	EntityId string
	State    *EntityState
}

// SnapshotUpdatedEvent is published on the event stream after every rebuild
// or expansion toggle.
type SnapshotUpdatedEvent struct {
	Snapshot ViewSnapshot
	Expanded bool
}

package domain

const (
	PLATFORM_MESHTASTIC = "meshtastic"
)

// EntityMeta is one entry of the Home Assistant entity registry.
type EntityMeta struct {
	EntityId string `json:"entity_id"`
	DeviceId string `json:"device_id"`
	Platform string `json:"platform"`
}

// EntityState is the current state of an entity as reported by Home Assistant.
type EntityState struct {
	EntityId   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

type DeviceInfo struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	SwVersion    string `json:"sw_version"`
	Manufacturer string `json:"manufacturer"`
}

// Catalog is a point-in-time view of the entities, states and devices known to
// Home Assistant. Entities keep registry order, which is the order used to
// break ties between ambiguous lookups.
type Catalog struct {
	Entities []EntityMeta
	States   map[string]EntityState
	Devices  map[string]DeviceInfo
}

func NewCatalog() *Catalog {
	return &Catalog{
		States:  map[string]EntityState{},
		Devices: map[string]DeviceInfo{},
	}
}

func (c Catalog) State(entityId string) (EntityState, bool) {
	st, ok := c.States[entityId]
	return st, ok
}

func (c Catalog) Device(deviceId string) DeviceInfo {
	if dev, ok := c.Devices[deviceId]; ok {
		return dev
	}
	return DeviceInfo{Id: deviceId}
}

// Clone returns a copy whose slice and maps can be modified without touching c.
func (c Catalog) Clone() *Catalog {
	clone := &Catalog{
		Entities: append([]EntityMeta(nil), c.Entities...),
		States:   make(map[string]EntityState, len(c.States)),
		Devices:  make(map[string]DeviceInfo, len(c.Devices)),
	}
	for k, v := range c.States {
		clone.States[k] = v
	}
	for k, v := range c.Devices {
		clone.Devices[k] = v
	}
	return clone
}

// ApplyState replaces the state of entityId, or removes it when st is nil.
func (c *Catalog) ApplyState(entityId string, st *EntityState) {
	if c.States == nil {
		c.States = map[string]EntityState{}
	}
	if st == nil {
		delete(c.States, entityId)
		return
	}
	c.States[entityId] = *st
}

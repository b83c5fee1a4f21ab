package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CARD         = "card"
	ACTOR_ID_HASS         = "hass"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetSnapshotRequest struct {
	CardRequestMixIn
}

type GetSnapshotResponse struct {
	ActorResponseMixIn
	Ready    bool
	Snapshot ViewSnapshot
	Expanded bool
}

type ToggleExpansionRequest struct {
	CardRequestMixIn
}

// SetExpansionRequest toggles the expansion only when it differs from On.
type SetExpansionRequest struct {
	CardRequestMixIn
	On bool
}

type ExpansionResponse struct {
	ActorResponseMixIn
	Expanded bool
}

type GetDevicesRequest struct {
	CardRequestMixIn
}

type MeshtasticDevice struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	SwVersion string `json:"sw_version"`
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices []MeshtasticDevice
	Stub    string
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// ensure interface compliance
var (
	_ CardRequest = (*GetSnapshotRequest)(nil)
	_ CardRequest = (*ToggleExpansionRequest)(nil)
	_ CardRequest = (*SetExpansionRequest)(nil)
	_ CardRequest = (*GetDevicesRequest)(nil)
)

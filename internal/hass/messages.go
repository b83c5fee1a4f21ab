package hass

import (
	"encoding/json"
	"fmt"
)

const (
	MSG_AUTH_REQUIRED = "auth_required"
	MSG_AUTH          = "auth"
	MSG_AUTH_OK       = "auth_ok"
	MSG_AUTH_INVALID  = "auth_invalid"
	MSG_RESULT        = "result"
	MSG_EVENT         = "event"
	MSG_PONG          = "pong"

	CMD_ENTITY_REGISTRY_LIST = "config/entity_registry/list"
	CMD_DEVICE_REGISTRY_LIST = "config/device_registry/list"
	CMD_GET_STATES           = "get_states"
	CMD_SUBSCRIBE_EVENTS     = "subscribe_events"
	CMD_PING                 = "ping"

	EVENT_STATE_CHANGED           = "state_changed"
	EVENT_ENTITY_REGISTRY_UPDATED = "entity_registry_updated"
	EVENT_DEVICE_REGISTRY_UPDATED = "device_registry_updated"
)

// incoming is the envelope of every server message.
type incoming struct {
	Id        int64           `json:"id"`
	Type      string          `json:"type"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     *CommandError   `json:"error"`
	Event     *Event          `json:"event"`
	HAVersion string          `json:"ha_version"`
	Message   string          `json:"message"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// CommandError is the error object of a failed result.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("home assistant: %s: %s", e.Code, e.Message)
}

type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired string          `json:"time_fired"`
}

type State struct {
	EntityId    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

type StateChangedData struct {
	EntityId string `json:"entity_id"`
	NewState *State `json:"new_state"`
	OldState *State `json:"old_state"`
}

type EntityRegistryEntry struct {
	EntityId   string `json:"entity_id"`
	DeviceId   string `json:"device_id"`
	Platform   string `json:"platform"`
	DisabledBy string `json:"disabled_by"`
}

type DeviceRegistryEntry struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	NameByUser   string `json:"name_by_user"`
	Model        string `json:"model"`
	SwVersion    string `json:"sw_version"`
	Manufacturer string `json:"manufacturer"`
}

// DisplayName prefers the name set by the user.
func (d DeviceRegistryEntry) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	return d.Name
}

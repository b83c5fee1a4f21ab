package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_ID_CARD            = "card"
	SWITCH_ID_NODES_EXPANDED  = "nodes_expanded"
	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	ENTITY_CLASS_CONFIG       = "config"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device                 Device
	Id                     string
	SensorType             string
	Name                   string
	UniqueId               string
	UnitOfMeasurement      string
	StateClass             string // measurement
	DeviceClass            string // connectivity
	EntityCategory         string // diagnostic, config, nil
	EnabledByDefault       *bool
	Icon                   string
	ValueTemplate          string
	JsonAttributesTemplate string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("meshcard_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Meshtastic Node Card",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Meshcard %s", md5HashShort(baseTopic)),
	}
}

// NodeDevice describes the monitored node as seen by the card.
func NodeDevice(snapshot ViewSnapshot) Device {
	name := strings.TrimSpace(snapshot.ShortName)
	if snapshot.LongName != "" {
		name = strings.TrimSpace(fmt.Sprintf("%s | %s", name, snapshot.LongName))
	}
	if name == "" {
		name = md5HashShort(snapshot.DeviceId)
	}
	return Device{
		Id:           fmt.Sprintf("meshcard_node_%s", md5HashShort(snapshot.DeviceId)),
		Manufacturer: "Meshtastic",
		Model:        snapshot.Model,
		Version:      snapshot.SwVersion,
		Name:         fmt.Sprintf("Meshtastic %s", name),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Bridge state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

func CardSensors(nodeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:                 nodeDevice,
			Id:                     SENSOR_ID_CARD,
			SensorType:             SENSOR_TYPE_SENSOR,
			Name:                   "Online nodes",
			StateClass:             STATE_CLASS_MEASUREMENT,
			Icon:                   "mdi:antenna",
			ValueTemplate:          "{{ value_json.snapshot.peers.online }}",
			JsonAttributesTemplate: "{{ value_json.snapshot | tojson }}",
			UniqueId:               uniqueId(nodeDevice.Id, SENSOR_ID_CARD),
		},
	}
}

func CardSwitches(nodeDevice Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   nodeDevice,
			Id:       SWITCH_ID_NODES_EXPANDED,
			Name:     "Show online nodes",
			UniqueId: uniqueId(nodeDevice.Id, SWITCH_ID_NODES_EXPANDED),
			Icon:     "mdi:chevron-down",
		},
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

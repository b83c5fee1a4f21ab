package mqtt

import (
	"fmt"

	"github.com/berfenger/meshcard/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device                 HADiscoveryDevice `json:"device"`
	StateTopic             string            `json:"state_topic"`
	CommandTopic           string            `json:"command_topic,omitempty"`
	StateClass             string            `json:"state_class,omitempty"`
	DeviceClass            string            `json:"device_class,omitempty"`
	UnitOfMeasurement      string            `json:"unit_of_measurement,omitempty"`
	AvTopic                string            `json:"availability_topic,omitempty"`
	EntityCategory         string            `json:"entity_category,omitempty"`
	Name                   string            `json:"name"`
	UniqueId               string            `json:"unique_id"`
	Platform               string            `json:"platform"`
	EnabledByDefault       *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn              string            `json:"payload_on,omitempty"`
	PayloadOff             string            `json:"payload_off,omitempty"`
	StateOn                string            `json:"state_on,omitempty"`
	StateOff               string            `json:"state_off,omitempty"`
	Icon                   string            `json:"icon,omitempty"`
	ValueTemplate          string            `json:"value_template,omitempty"`
	JsonAttributesTopic    string            `json:"json_attributes_topic,omitempty"`
	JsonAttributesTemplate string            `json:"json_attributes_template,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func (c *MQTTClient) HADiscoverySensorTopic(sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.DiscoveryPrefix(), sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func (c *MQTTClient) HADiscoverySwitchTopic(_switch domain.GenericSwitch) string {
	return fmt.Sprintf("%s/switch/%s/%s/config", c.DiscoveryPrefix(), _switch.Device.Id, _switch.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		ValueTemplate:     sensor.ValueTemplate,
		Platform:          "mqtt",
	}
	if sensor.JsonAttributesTemplate != "" {
		disConfig.JsonAttributesTopic = topic
		disConfig.JsonAttributesTemplate = sensor.JsonAttributesTemplate
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericSwitchToHADiscoveryMessage(client *MQTTClient, _switch domain.GenericSwitch) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(_switch.Device),
		StateTopic:   client.SwitchStateTopic(_switch.Id),
		CommandTopic: client.SwitchCommandTopic(_switch.Id),
		AvTopic:      client.BridgeStateTopic(),
		Name:         _switch.Name,
		UniqueId:     _switch.UniqueId,
		Icon:         _switch.Icon,
		Platform:     "mqtt",
		PayloadOn:    MQTT_PAYLOAD_ON,
		PayloadOff:   MQTT_PAYLOAD_OFF,
		StateOn:      MQTT_PAYLOAD_ON,
		StateOff:     MQTT_PAYLOAD_OFF,
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}

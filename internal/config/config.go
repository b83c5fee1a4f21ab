package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

var (
	ErrMissingDeviceId = errors.New("please define a Meshtastic device (device_id)")
	ErrMissingHassURL  = errors.New("please define the Home Assistant url (hass.url)")
	ErrInvalidTopic    = errors.New("invalid topic. can only contain letters, numbers and underscores")
)

const (
	MIN_REFRESH_INTERVAL_MILLIS = 1000
	MIN_REQUEST_TIMEOUT_MILLIS  = 500
)

type Config struct {
	LogLevel zapcore.Level
	DeviceId string     `mapstructure:"device_id"`
	Hass     HassConfig `mapstructure:"hass"`
	MQTT     MQTTConfig `mapstructure:"mqtt"`
	Card     CardConfig `mapstructure:"card"`
	Port     uint       `mapstructure:"port"`
	HttpLog  bool       `mapstructure:"http_log"`
}

type HassConfig struct {
	URL                  string
	Token                string
	RequestTimeoutMillis uint32 `mapstructure:"request_timeout_millis"`
}

type CardConfig struct {
	RefreshIntervalMillis uint32 `mapstructure:"refresh_interval_millis"`
	RenderWidth           int    `mapstructure:"render_width"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// CheckDeviceId validates the only mandatory setting of the card.
func CheckDeviceId(deviceId string) (string, error) {
	deviceId = strings.TrimSpace(deviceId)
	if deviceId == "" {
		return "", ErrMissingDeviceId
	}
	return deviceId, nil
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !topicRegexp.MatchString(lowerBaseTopic) {
		return "", ErrInvalidTopic
	}
	return lowerBaseTopic, nil
}

// Normalize checks the loaded config and fixes what can be fixed in place.
func (c *Config) Normalize() error {
	deviceId, err := CheckDeviceId(c.DeviceId)
	if err != nil {
		return err
	}
	c.DeviceId = deviceId

	c.Hass.URL = strings.TrimSpace(c.Hass.URL)
	if c.Hass.URL == "" {
		return ErrMissingHassURL
	}

	baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
	if err != nil {
		return fmt.Errorf("mqtt.base_topic: %w", err)
	}
	c.MQTT.BaseTopic = baseTopic

	discoveryTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
	if err != nil {
		return fmt.Errorf("mqtt.ha_discovery_topic: %w", err)
	}
	c.MQTT.HADiscoveryTopic = discoveryTopic

	if c.Card.RefreshIntervalMillis < MIN_REFRESH_INTERVAL_MILLIS {
		return fmt.Errorf("config param card.refresh_interval_millis should be >= %d", MIN_REFRESH_INTERVAL_MILLIS)
	}
	if c.Hass.RequestTimeoutMillis < MIN_REQUEST_TIMEOUT_MILLIS {
		return fmt.Errorf("config param hass.request_timeout_millis should be >= %d", MIN_REQUEST_TIMEOUT_MILLIS)
	}
	return nil
}

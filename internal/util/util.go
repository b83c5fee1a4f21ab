package util

import (
	"github.com/berfenger/meshcard/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		DeviceId: "a1b2c3d4",
		Hass: config.HassConfig{
			URL:                  "http://localhost:8123",
			Token:                "-",
			RequestTimeoutMillis: 2000,
		},
		MQTT: config.MQTTConfig{
			Enable:           true,
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "meshcard",
			HADiscoveryTopic: "homeassistant",
		},
		Card: config.CardConfig{
			RefreshIntervalMillis: 60000,
			RenderWidth:           44,
		},
		Port: 8080,
	}
}

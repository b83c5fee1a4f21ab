package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/meshcard/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	COMPONENT_SWITCH = "switch"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrInvalidPayload = errors.New("invalid switch payload")
	ErrTimeout        = errors.New("mqtt timeout")
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("meshcard_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:              mqtt.NewClient(opts),
		cfg:                 cfg.MQTT,
		switchCommandRegexp: switchCommandExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client              mqtt.Client
	cfg                 config.MQTTConfig
	switchCommandRegexp *regexp.Regexp
}

// ParsedMQTTCommand is a command received on <base>/<component>/<id>/command.
type ParsedMQTTCommand struct {
	Component string
	SwitchId  string
	Payload   string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) DiscoveryPrefix() string {
	if c.cfg.HADiscoveryTopic == "" {
		return "homeassistant"
	}
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/state", c.baseTopic(), switchId)
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/command", c.baseTopic(), switchId)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return parseSwitchCommand(c.switchCommandRegexp, msg.Topic(), string(msg.Payload()))
}

func parseSwitchCommand(r *regexp.Regexp, topic, payload string) (*ParsedMQTTCommand, error) {
	match := r.FindStringSubmatch(topic)
	if len(match) != 2 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, topic)
	}
	return &ParsedMQTTCommand{
		Component: COMPONENT_SWITCH,
		SwitchId:  match[1],
		Payload:   payload,
	}, nil
}

// ParseSwitchPayload accepts on/off in any case.
func ParseSwitchPayload(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case MQTT_PAYLOAD_ON:
		return true, nil
	case MQTT_PAYLOAD_OFF:
		return false, nil
	}
	return false, ErrInvalidPayload
}

func SwitchPayload(on bool) string {
	if on {
		return MQTT_PAYLOAD_ON
	}
	return MQTT_PAYLOAD_OFF
}

// awaitToken reports the outcome of token to continuation from a new
// goroutine, so callers never block on the broker.
func awaitToken(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("%s: %w", op, ErrTimeout))
			return
		}
		if err := token.Error(); err != nil {
			continuation(fmt.Errorf("%s: %w", op, err))
			return
		}
		continuation(nil)
	}()
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Publish(topic, qos, retain, payload), "publish "+topic, continuation, timeout)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Subscribe(topic, qos, handler), "subscribe "+topic, continuation, timeout)
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Connect(), "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/switch/+/command", c.baseTopic())
}

func switchCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/switch/([a-zA-Z0-9_]+)/command$", regexp.QuoteMeta(baseTopic)))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

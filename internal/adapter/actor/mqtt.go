package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/events"
	"github.com/berfenger/meshcard/internal/mqtt"
	"github.com/berfenger/meshcard/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_CONNECT_TIMEOUT   = 10 * time.Second
	MQTT_PUBLISH_TIMEOUT   = 5 * time.Second
	MQTT_SUBSCRIBE_TIMEOUT = time.Second
	MQTT_BRIDGE_TIMEOUT    = 500 * time.Millisecond
)

// MQTTActor mirrors every card snapshot to the broker and turns switch
// commands into card requests for its parent.
type MQTTActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	client      *mqtt.MQTTClient
	eventStream *eventstream.EventStream
	snapshotSub *eventstream.Subscription
	pending     *pendingPublish
	logger      *zap.Logger
}

type brokerConnected struct{}

type commandsSubscribed struct{}

type brokerLost struct {
	err error
}

type snapshotPublished struct {
	event domain.SnapshotUpdatedEvent
}

type publishDone struct {
	err error
}

// ParsedCommand is sent to the parent for every valid switch command.
type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type outgoing struct {
	topic   string
	payload string
	retain  bool
}

// pendingPublish is the publish the actor is blocked on. respond builds the
// reply for the requester, if any.
type pendingPublish struct {
	replyTo *actor.PID
	respond func(err error) any
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.ConnectingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) ConnectingReceive(ctx actor.Context) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@connecting started", zap.String("host", state.config.MQTT.Host))
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, func(_ pahomqtt.Client, err error) {
			root.Send(self, brokerLost{err: err})
		})
		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, brokerLost{err: err})
				return
			}
			root.Send(self, brokerConnected{})
		}, MQTT_CONNECT_TIMEOUT)

	case brokerConnected:
		state.logger.Debug("mqtt@connecting connected")
		state.setBridgeState(true)
		state.snapshotSub = state.eventStream.Subscribe(func(value any) {
			if ev, ok := value.(domain.SnapshotUpdatedEvent); ok {
				root.Send(self, snapshotPublished{event: ev})
			}
		})
		state.client.SubscribeToCommandTopic(func(_ pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err != nil {
				state.logger.Warn("mqtt: ignoring command", zap.String("topic", m.Topic()), zap.Error(err))
				return
			}
			if cmd != nil {
				root.Send(self, ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				root.Send(self, brokerLost{err: fmt.Errorf("subscribe commands: %w", err)})
				return
			}
			root.Send(self, commandsSubscribed{})
		}, MQTT_SUBSCRIBE_TIMEOUT)

	case commandsSubscribed:
		state.logger.Debug("mqtt@connecting subscribed")
		state.behavior.Become(state.ReadyReceive)
		state.stash.UnstashAll(ctx)

	case brokerLost:
		state.logger.Error("mqtt@connecting broker lost", zap.Error(msg.err))
		panic(msg.err)

	case *actor.Restarting, *actor.Stopping:
		state.stop()

	default:
		// health requests included: they are answered once ready
		state.logger.Debug("mqtt@connecting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) ReadyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MQTT, Healthy: true, State: "ready"})

	case ParsedCommand:
		state.logger.Debug("mqtt@ready command", zap.String("switch", msg.Command.SwitchId), zap.String("payload", msg.Command.Payload))
		ctx.Send(ctx.Parent(), msg)

	case snapshotPublished:
		// one request per topic, queued behind any publish in flight
		for _, ev := range events.SnapshotToUpdateEvents(msg.event) {
			ctx.Send(ctx.Self(), domain.PublishSensorUpdateRequest{Event: ev, Retain: true})
		}

	case domain.PublishSensorUpdateRequest:
		out, err := state.outgoingMessage(msg.Event)
		if err != nil || out == nil {
			if err != nil {
				state.logger.Error("mqtt@ready encode sensor", zap.Error(err))
			}
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
			return
		}
		out.retain = out.retain || msg.Retain
		state.publish(ctx, *out, actorutil.ForRequest(msg).ReplyTo(ctx), func(err error) any {
			return domain.PublishSensorUpdateResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err}}
		})

	case domain.PublishMessageRequest:
		state.publish(ctx, outgoing{topic: msg.Topic, payload: msg.Payload, retain: msg.Retain}, actorutil.ForRequest(msg).ReplyTo(ctx), func(err error) any {
			return domain.PublishMessageResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err}}
		})

	case domain.PublishDiscoveryRequest:
		err := state.PublishHomeAssistantDiscovery(msg.Sensors, msg.Switches)
		if err != nil {
			state.logger.Error("mqtt@ready discovery", zap.Error(err))
		} else {
			state.logger.Info("mqtt@ready discovery published", zap.Int("sensors", len(msg.Sensors)), zap.Int("switches", len(msg.Switches)))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})

	case brokerLost:
		state.logger.Error("mqtt@ready broker lost", zap.Error(msg.err))
		panic(msg.err)

	case *actor.Restarting, *actor.Stopping:
		state.stop()

	default:
		state.logger.Debug("mqtt@ready unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// PublishingReceive holds every other message until the broker acknowledges
// the pending publish.
func (state *MQTTActor) PublishingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishDone:
		if msg.err != nil {
			state.logger.Error("mqtt@publishing failed", zap.Error(msg.err))
		}
		if p := state.pending; p != nil && p.replyTo != nil {
			ctx.Send(p.replyTo, p.respond(msg.err))
		}
		state.pending = nil
		state.behavior.UnbecomeStacked()
		// a publish started by any of these stashes the rest again
		state.stash.UnstashAll(ctx)
	case brokerLost:
		state.logger.Error("mqtt@publishing broker lost", zap.Error(msg.err))
		panic(msg.err)
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) publish(ctx actor.Context, out outgoing, replyTo *actor.PID, respond func(error) any) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.logger.Debug("mqtt@ready publish", zap.String("topic", out.topic), zap.Int("bytes", len(out.payload)))
	state.pending = &pendingPublish{replyTo: replyTo, respond: respond}
	state.client.Publish(out.topic, out.payload, 1, out.retain, func(err error) {
		root.Send(self, publishDone{err: err})
	}, MQTT_PUBLISH_TIMEOUT)
	state.behavior.BecomeStacked(state.PublishingReceive)
}

func (state *MQTTActor) outgoingMessage(event domain.SensorUpdateEvent) (*outgoing, error) {
	switch ev := event.(type) {
	case domain.JsonSensorUpdateEvent:
		payload, err := json.Marshal(ev.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev.Id, err)
		}
		return &outgoing{topic: state.client.SensorStateTopic(ev.Id), payload: string(payload), retain: true}, nil
	case domain.SwitchSensorUpdateEvent:
		return &outgoing{topic: state.client.SwitchStateTopic(ev.Id), payload: mqtt.SwitchPayload(ev.Value), retain: true}, nil
	case domain.BridgeStateUpdateEvent:
		return &outgoing{topic: state.client.BridgeStateTopic(), payload: bridgePayload(ev.Value), retain: true}, nil
	}
	return nil, nil
}

func bridgePayload(online bool) string {
	if online {
		return mqtt.MQTT_PAYLOAD_ONLINE
	}
	return mqtt.MQTT_PAYLOAD_OFFLINE
}

// discoveryMessages encodes the retained discovery config of every component.
func (state *MQTTActor) discoveryMessages(sensors []domain.GenericSensor, switches []domain.GenericSwitch) ([]outgoing, error) {
	out := make([]outgoing, 0, len(sensors)+len(switches))
	for _, sensor := range sensors {
		payload, err := json.Marshal(mqtt.GenericSensorToHADiscoveryMessage(state.client, sensor))
		if err != nil {
			return nil, fmt.Errorf("encode discovery %s: %w", sensor.Id, err)
		}
		out = append(out, outgoing{topic: state.client.HADiscoverySensorTopic(sensor), payload: string(payload), retain: true})
	}
	for _, sw := range switches {
		payload, err := json.Marshal(mqtt.GenericSwitchToHADiscoveryMessage(state.client, sw))
		if err != nil {
			return nil, fmt.Errorf("encode discovery %s: %w", sw.Id, err)
		}
		out = append(out, outgoing{topic: state.client.HADiscoverySwitchTopic(sw), payload: string(payload), retain: true})
	}
	return out, nil
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor, switches []domain.GenericSwitch) error {
	messages, err := state.discoveryMessages(sensors, switches)
	if err != nil {
		return err
	}
	for _, m := range messages {
		state.client.Publish(m.topic, m.payload, 0, m.retain, func(error) {}, time.Second)
	}
	return nil
}

func (state *MQTTActor) setBridgeState(online bool) {
	state.client.Publish(state.client.BridgeStateTopic(), bridgePayload(online), 0, true, func(error) {}, MQTT_BRIDGE_TIMEOUT)
}

func (state *MQTTActor) stop() {
	if state.snapshotSub != nil {
		state.eventStream.Unsubscribe(state.snapshotSub)
		state.snapshotSub = nil
	}
	if state.client != nil {
		state.logger.Debug("mqtt: disconnect")
		state.setBridgeState(false)
		state.client.Disconnect(MQTT_BRIDGE_TIMEOUT)
		state.client = nil
	}
}

// NewTestMQTTActor answers health checks and publish requests without a broker.
// Every request it receives is forwarded to observer when set.
func NewTestMQTTActor(config *config.Config, observer *actor.PID, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(func(ctx actor.Context) {
		act.observedReceive(ctx, observer)
	})
	return act
}

func (state *MQTTActor) observedReceive(ctx actor.Context, observer *actor.PID) {
	msg := ctx.Message()
	var response domain.ActorResponse
	switch msg.(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MQTT, Healthy: true, State: "ready"})
		return
	case domain.PublishSensorUpdateRequest:
		response = domain.PublishSensorUpdateResponse{}
	case domain.PublishMessageRequest:
		response = domain.PublishMessageResponse{}
	case domain.PublishDiscoveryRequest:
		response = domain.PublishDiscoveryResponse{}
	default:
		return
	}
	if observer != nil {
		ctx.Send(observer, msg)
	}
	if req, ok := msg.(domain.ActorRequest); ok {
		actorutil.ForRequest(req).Respond(ctx, response)
	}
}

package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/meshcard/internal/adapter/actor"
	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/domain"
	. "github.com/berfenger/meshcard/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type HassActorProvider func(cardActor *actor.PID) *adactor.HassActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	cardActor          *actor.PID
	hassActor          *actor.PID
	mqttActor          *actor.PID
	hassActorProvider  HassActorProvider
	mqttActorProvider  MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	expected       int
	checksReceived int
	respondTo      *actor.PID
}

// NewMasterOfPuppetsActor builds the supervisor of the card pipeline. A nil
// mqttActorProvider disables MQTT.
func NewMasterOfPuppetsActor(config config.Config, hassActorProvider HassActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       &eventstream.EventStream{},
		hassActorProvider: hassActorProvider,
		mqttActorProvider: mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start Card child
		cardActorPID, err := state.startCardActor(ctx)
		if err != nil {
			panic(err)
		}
		state.cardActor = cardActorPID

		// start MQTT child
		if state.mqttActorProvider != nil {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID

			// start HA Discovery
			if state.config.MQTT.HADiscoveryEnable {
				_, err := state.startHADiscoveryActor(ctx)
				if err != nil {
					panic(err)
				}
			}
		}

		// start Home Assistant child
		hassActorPID, err := state.startHassActor(ctx)
		if err != nil {
			panic(err)
		}
		state.hassActor = hassActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_CARD: state.cardActor,
		domain.ACTOR_ID_HASS: state.hassActor,
	}
	if state.mqttActor != nil {
		children[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	return children
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		children := state.children()
		state.currentHealthCheck.reset()
		state.currentHealthCheck.expected = len(children)
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range children {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.CardRequest:
		// card requests keep the original sender so the card answers directly
		ctx.RequestWithCustomSender(state.cardActor, msg, ctx.Sender())
	case adactor.ParsedCommand:
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Error(err))
				return
			}
			if cardCmd, ok := cmd.(domain.CardRequest); ok {
				ctx.Send(state.cardActor, cardCmd)
			}
		}
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.Id))
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy), zap.String("state", msg.State))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startCardActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	cardProps := actor.PropsFromProducer(func() actor.Actor {
		return NewCardActor(&state.config, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(cardProps, domain.ACTOR_ID_CARD)
}

func (state *MasterOfPuppetsActor) startHassActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(60*time.Second, 1*time.Second)

	hassProps := actor.PropsFromProducer(func() actor.Actor {
		return state.hassActorProvider(state.cardActor)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(hassProps, domain.ACTOR_ID_HASS)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.cardActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{}
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.expected {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}

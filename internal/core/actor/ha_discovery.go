package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	HADISCOVERY_SNAPSHOT_RETRY = 2 * time.Second
)

var ErrMQTTNotHealthy = errors.New("MQTT actor is not healthy")

// HADiscoveryActor publishes the Home Assistant discovery config once MQTT is
// up and the card has built its first snapshot.
type HADiscoveryActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	scheduler   *scheduler.TimerScheduler
	cardActor   *actor.PID
	mqttActor   *actor.PID
	retryPeriod time.Duration

	logger *zap.Logger
}

type discoveryRetry struct {
}

func NewHADiscoveryActor(config *config.Config, cardActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		cardActor:   cardActor,
		mqttActor:   mqttActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		retryPeriod: HADISCOVERY_SNAPSHOT_RETRY,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)

		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 5*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(ErrMQTTNotHealthy)
		}
		state.requestSnapshot(ctx)
		state.behavior.Become(state.WaitingSnapshotReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) requestSnapshot(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cardActor, domain.GetSnapshotRequest{}, 2*time.Second), func(err error) any {
		return domain.GetSnapshotResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *HADiscoveryActor) WaitingSnapshotReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case discoveryRetry:
		state.requestSnapshot(ctx)
	case domain.GetSnapshotResponse:
		if msg.HasResponseError() || !msg.Ready {
			state.logger.Debug("hadiscovery@snapshot: card not ready", zap.Error(msg.GetResponseError()))
			state.scheduler.RequestOnce(state.retryPeriod, ctx.Self(), discoveryRetry{})
			return
		}
		state.logger.Debug("hadiscovery@snapshot: GetSnapshotResponse", zap.String("device", msg.Snapshot.DeviceId))

		sensors, switches := DiscoveryComponents(state.config.MQTT.BaseTopic, msg.Snapshot)
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  sensors,
			Switches: switches,
		})
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@snapshot: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

// DiscoveryComponents lists the bridge sensors followed by the node sensors
// and switches. Only the first component of each device carries the full
// device description.
func DiscoveryComponents(baseTopic string, snapshot domain.ViewSnapshot) ([]domain.GenericSensor, []domain.GenericSwitch) {
	var sensors []domain.GenericSensor
	var switches []domain.GenericSwitch

	bridgeDevice := domain.BridgeDevice(baseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	nodeDevice := domain.NodeDevice(snapshot)
	nodeDevice.ViaDevice = bridgeDevice.Id
	cardSensors := domain.CardSensors(nodeDevice)
	for i := range cardSensors {
		if i > 0 {
			cardSensors[i].Device = domain.IdDevice(nodeDevice)
		}
		sensors = append(sensors, cardSensors[i])
	}
	switches = append(switches, domain.CardSwitches(domain.IdDevice(nodeDevice))...)
	return sensors, switches
}

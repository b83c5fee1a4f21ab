package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/expansion"
	"github.com/berfenger/meshcard/internal/core/resolver"
	"github.com/berfenger/meshcard/internal/core/viewmodel"
	. "github.com/berfenger/meshcard/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// CardActor owns the catalog copy and the expansion state of the card. Every
// change rebuilds the snapshot and publishes it on the event stream.
type CardActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	config      *config.Config
	eventStream *eventstream.EventStream
	clock       func() time.Time

	catalog   *domain.Catalog
	expansion expansion.State
	snapshot  domain.ViewSnapshot

	logger *zap.Logger
}

type cardRefreshTick struct {
}

func NewCardActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *CardActor {
	act := &CardActor{
		config:      config,
		eventStream: eventStream,
		stash:       &Stash{},
		clock:       time.Now,
		logger:      ActorLogger(domain.ACTOR_ID_CARD, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CardStartingState{
		actor: act,
	})
	return act
}

func (state *CardActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *CardActor) refreshInterval() time.Duration {
	return time.Duration(state.config.Card.RefreshIntervalMillis) * time.Millisecond
}

func (state *CardActor) scheduleRefresh(ctx actor.Context) {
	if state.scheduler != nil && state.refreshInterval() > 0 {
		state.scheduler.RequestOnce(state.refreshInterval(), ctx.Self(), cardRefreshTick{})
	}
}

func (state *CardActor) rebuild() {
	state.snapshot = viewmodel.Build(state.catalog.Device(state.config.DeviceId), state.config.DeviceId, *state.catalog, state.clock())
	state.publish()
}

func (state *CardActor) publish() {
	state.eventStream.Publish(domain.SnapshotUpdatedEvent{
		Snapshot: state.snapshot,
		Expanded: state.expansion.Expanded(),
	})
}

func (state *CardActor) health(ctx actor.Context) {
	ForRequest(domain.ActorHealthRequest{}).Respond(ctx, domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CARD,
		Healthy: true,
		State:   state.StateName(),
	})
}

func (state *CardActor) devices(ctx actor.Context, msg domain.GetDevicesRequest) {
	var resp domain.GetDevicesResponse
	if state.catalog != nil {
		resp.Devices = resolver.MeshtasticDevices(*state.catalog)
		resp.Stub = resolver.StubDeviceID(*state.catalog)
	}
	ForRequest(msg).Respond(ctx, resp)
}

// Starting state

type CardStartingState struct {
	ActorState
	actor *CardActor
}

func (state CardStartingState) Name() string {
	return "starting"
}

func (state CardStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("card@starting started", zap.String("device", state.actor.config.DeviceId))
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.Become(CardWaitingCatalogState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("card@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Waiting catalog state

type CardWaitingCatalogState struct {
	ActorState
	actor *CardActor
}

func (state CardWaitingCatalogState) Name() string {
	return "waitingCatalog"
}

func (state CardWaitingCatalogState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.CatalogSnapshotEvent:
		if msg.Catalog == nil {
			return
		}
		state.actor.logger.Debug("card@waitingCatalog CatalogSnapshotEvent", zap.Int("entities", len(msg.Catalog.Entities)))
		state.actor.catalog = msg.Catalog.Clone()
		state.actor.rebuild()
		state.actor.scheduleRefresh(ctx)
		state.actor.Become(CardDefaultState{
			actor: state.actor,
		})
	case domain.GetSnapshotRequest:
		ForRequest(msg).Respond(ctx, domain.GetSnapshotResponse{
			Ready:    false,
			Expanded: state.actor.expansion.Expanded(),
		})
	case domain.ToggleExpansionRequest:
		expanded := state.actor.expansion.Toggle()
		ForRequest(msg).Respond(ctx, domain.ExpansionResponse{Expanded: expanded})
	case domain.SetExpansionRequest:
		if msg.On != state.actor.expansion.Expanded() {
			state.actor.expansion.Toggle()
		}
		ForRequest(msg).Respond(ctx, domain.ExpansionResponse{Expanded: state.actor.expansion.Expanded()})
	case domain.GetDevicesRequest:
		state.actor.devices(ctx, msg)
	case domain.StateChangedEvent:
		state.actor.logger.Debug("card@waitingCatalog: drop state change", zap.String("entity", msg.EntityId))
	case domain.ActorHealthRequest:
		state.actor.health(ctx)
	default:
		state.actor.logger.Debug("card@waitingCatalog: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Default state

type CardDefaultState struct {
	ActorState
	actor *CardActor
}

func (state CardDefaultState) Name() string {
	return "default"
}

func (state CardDefaultState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.CatalogSnapshotEvent:
		if msg.Catalog == nil {
			return
		}
		state.actor.logger.Debug("card@default CatalogSnapshotEvent", zap.Int("entities", len(msg.Catalog.Entities)))
		state.actor.catalog = msg.Catalog.Clone()
		state.actor.rebuild()
	case domain.StateChangedEvent:
		state.actor.catalog.ApplyState(msg.EntityId, msg.State)
		state.actor.rebuild()
	case cardRefreshTick:
		state.actor.rebuild()
		state.actor.scheduleRefresh(ctx)
	case domain.GetSnapshotRequest:
		ForRequest(msg).Respond(ctx, domain.GetSnapshotResponse{
			Ready:    true,
			Snapshot: state.actor.snapshot,
			Expanded: state.actor.expansion.Expanded(),
		})
	case domain.ToggleExpansionRequest:
		expanded := state.actor.expansion.Toggle()
		state.actor.logger.Debug("card@default toggle", zap.Bool("expanded", expanded))
		state.actor.publish()
		ForRequest(msg).Respond(ctx, domain.ExpansionResponse{Expanded: expanded})
	case domain.SetExpansionRequest:
		if msg.On != state.actor.expansion.Expanded() {
			state.actor.expansion.Toggle()
			state.actor.publish()
		}
		ForRequest(msg).Respond(ctx, domain.ExpansionResponse{Expanded: state.actor.expansion.Expanded()})
	case domain.GetDevicesRequest:
		state.actor.devices(ctx, msg)
	case domain.ActorHealthRequest:
		state.actor.health(ctx)
	default:
		state.actor.logger.Debug("card@default: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

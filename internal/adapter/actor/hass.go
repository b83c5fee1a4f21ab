package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/resolver"
	"github.com/berfenger/meshcard/internal/hass"
	"github.com/berfenger/meshcard/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const DEFAULT_HASS_REQUEST_TIMEOUT = 10 * time.Second

var ErrHassConnectionLost = errors.New("home assistant connection lost")

// HassActor feeds the card actor from Home Assistant: one catalog snapshot
// after connecting, then the state changes of the configured device.
type HassActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *actorutil.Stash
	dialer    hass.Dialer
	cardActor *actor.PID
	session   hass.Session
	entities  map[string]bool
	reloading bool
	logger    *zap.Logger
}

type hassConnected struct {
	session hass.Session
	catalog *domain.Catalog
}

type hassCatalogLoaded struct {
	catalog *domain.Catalog
}

type hassFailed struct {
	Error error
}

type hassEvent struct {
	event hass.Event
}

type hassDisconnected struct {
	session hass.Session
	Error   error
}

func NewHassActor(config *config.Config, dialer hass.Dialer, cardActor *actor.PID, logger *zap.Logger) *HassActor {
	act := &HassActor{
		config:    config,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		dialer:    dialer,
		cardActor: cardActor,
		entities:  map[string]bool{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HASS, logger),
	}
	act.behavior.Become(act.ConnectingReceive)
	return act
}

func (state *HassActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HassActor) requestTimeout() time.Duration {
	if state.config.Hass.RequestTimeoutMillis == 0 {
		return DEFAULT_HASS_REQUEST_TIMEOUT
	}
	return time.Duration(state.config.Hass.RequestTimeoutMillis) * time.Millisecond
}

func (state *HassActor) ConnectingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hass@connecting started", zap.String("url", state.config.Hass.URL))
		state.connect(ctx)
	case hassConnected:
		state.logger.Info("hass@connecting connected", zap.Int("entities", len(msg.catalog.Entities)))
		state.session = msg.session
		state.watch(ctx, msg.session)
		state.updateCatalog(ctx, msg.catalog)
		state.behavior.Become(state.ConnectedReceive)
		state.stash.UnstashAll(ctx)
	case hassFailed:
		state.logger.Error("hass@connecting failed", zap.Error(msg.Error))
		panic(msg.Error)
	case hassDisconnected:
		// session of a previous incarnation
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HASS,
			Healthy: false,
			State:   "connecting",
		})
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("hass@connecting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HassActor) ConnectedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case hassEvent:
		state.onEvent(ctx, msg.event)
	case hassCatalogLoaded:
		state.reloading = false
		state.logger.Debug("hass@connected catalog reloaded", zap.Int("entities", len(msg.catalog.Entities)))
		state.updateCatalog(ctx, msg.catalog)
	case hassDisconnected:
		if msg.session != state.session {
			return
		}
		state.logger.Error("hass@connected connection lost", zap.Error(msg.Error))
		panic(fmt.Errorf("%w: %w", ErrHassConnectionLost, msg.Error))
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HASS,
			Healthy: true,
			State:   "connected",
		})
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("hass@connected unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HassActor) onEvent(ctx actor.Context, ev hass.Event) {
	switch ev.EventType {
	case hass.EVENT_STATE_CHANGED:
		changed, err := hass.DecodeStateChanged(ev)
		if err != nil {
			state.logger.Warn("hass@connected bad event", zap.Error(err))
			return
		}
		if !state.entities[changed.EntityId] {
			return
		}
		ctx.Send(state.cardActor, changed)
	case hass.EVENT_ENTITY_REGISTRY_UPDATED, hass.EVENT_DEVICE_REGISTRY_UPDATED:
		if state.reloading {
			return
		}
		state.reloading = true
		state.logger.Debug("hass@connected registry updated", zap.String("event", ev.EventType))
		session := state.session
		timeout := state.requestTimeout()
		logger := state.logger
		actorutil.NewBackgroundTask(ctx, func() (*hassCatalogLoaded, error) {
			reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			catalog, err := hass.LoadCatalog(reqCtx, session)
			if err != nil {
				return nil, err
			}
			return &hassCatalogLoaded{catalog: catalog}, nil
		}).WithTimeout(timeout).Recover(func(err error) hassCatalogLoaded {
			logger.Warn("hass: catalog reload failed", zap.Error(err))
			return hassCatalogLoaded{}
		}).PipeTo(ctx.Self())
	}
}

// connect dials, subscribes and loads the catalog off the actor goroutine.
// Events received before the catalog are stashed by ConnectingReceive.
func (state *HassActor) connect(ctx actor.Context) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	cfg := state.config.Hass
	timeout := state.requestTimeout()
	dialer := state.dialer
	logger := state.logger

	actorutil.NewBackgroundTask(ctx, func() (*hassConnected, error) {
		reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		session, err := dialer(reqCtx, cfg.URL, cfg.Token, logger)
		if err != nil {
			return nil, err
		}
		forward := func(ev hass.Event) {
			root.Send(self, hassEvent{event: ev})
		}
		for _, eventType := range []string{hass.EVENT_STATE_CHANGED, hass.EVENT_ENTITY_REGISTRY_UPDATED, hass.EVENT_DEVICE_REGISTRY_UPDATED} {
			if err := session.Subscribe(reqCtx, eventType, forward); err != nil {
				session.Close()
				return nil, err
			}
		}
		catalog, err := hass.LoadCatalog(reqCtx, session)
		if err != nil {
			session.Close()
			return nil, err
		}
		return &hassConnected{session: session, catalog: catalog}, nil
	}).WithTimeout(2 * timeout).OnError(func(err error) {
		root.Send(self, hassFailed{Error: err})
	}).PipeTo(self)
}

func (state *HassActor) watch(ctx actor.Context, session hass.Session) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	go func() {
		<-session.Done()
		root.Send(self, hassDisconnected{session: session, Error: session.Err()})
	}()
}

func (state *HassActor) updateCatalog(ctx actor.Context, catalog *domain.Catalog) {
	if catalog == nil {
		return
	}
	state.entities = map[string]bool{}
	for _, e := range resolver.DeviceEntities(state.config.DeviceId, *catalog) {
		state.entities[e.EntityId] = true
	}
	if len(state.entities) == 0 {
		state.logger.Warn("hass: no entities for device", zap.String("device", state.config.DeviceId))
	}
	ctx.Send(state.cardActor, domain.CatalogSnapshotEvent{Catalog: catalog})
}

func (state *HassActor) stop() {
	if state.session != nil {
		state.logger.Debug("hass: close session")
		state.session.Close()
		state.session = nil
	}
}

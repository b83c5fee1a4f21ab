package actor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/hass"
	"github.com/berfenger/meshcard/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	mu       sync.Mutex
	handlers map[string]func(hass.Event)
	results  map[string]any
	done     chan struct{}
	once     sync.Once
}

func newFakeSession(deviceId string) *fakeSession {
	return &fakeSession{
		handlers: map[string]func(hass.Event){},
		done:     make(chan struct{}),
		results: map[string]any{
			hass.CMD_ENTITY_REGISTRY_LIST: []hass.EntityRegistryEntry{
				{EntityId: "sensor.n1_battery_level", DeviceId: deviceId, Platform: domain.PLATFORM_MESHTASTIC},
				{EntityId: "sensor.other_battery_level", DeviceId: "other", Platform: domain.PLATFORM_MESHTASTIC},
			},
			hass.CMD_DEVICE_REGISTRY_LIST: []hass.DeviceRegistryEntry{{Id: deviceId, Name: "n1"}},
			hass.CMD_GET_STATES: []hass.State{
				{EntityId: "sensor.n1_battery_level", State: "50"},
			},
		},
	}
}

func (s *fakeSession) Call(ctx context.Context, cmdType string, extra map[string]any, out any) error {
	result, ok := s.results[cmdType]
	if !ok {
		return &hass.CommandError{Code: "unknown_command", Message: cmdType}
	}
	raw, _ := json.Marshal(result)
	return json.Unmarshal(raw, out)
}

func (s *fakeSession) Subscribe(ctx context.Context, eventType string, handler func(hass.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[eventType] = handler
	return nil
}

func (s *fakeSession) emit(entityId, newState string) {
	data, _ := json.Marshal(hass.StateChangedData{
		EntityId: entityId,
		NewState: &hass.State{EntityId: entityId, State: newState},
	})
	s.mu.Lock()
	handler := s.handlers[hass.EVENT_STATE_CHANGED]
	s.mu.Unlock()
	handler(hass.Event{EventType: hass.EVENT_STATE_CHANGED, Data: data})
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Err() error { return nil }

func (s *fakeSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func observerActor(as *actor.ActorSystem) (*actor.PID, chan any) {
	received := make(chan any, 16)
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.CatalogSnapshotEvent, domain.StateChangedEvent:
			received <- msg
		}
	}))
	return pid, received
}

func expectMessage(t *testing.T, ch chan any) any {
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHassActorForwardsDeviceEntities(t *testing.T) {

	cfg := util.LoadTestConfig()
	as := actor.NewActorSystem()
	defer as.Shutdown()

	card, received := observerActor(as)
	session := newFakeSession(cfg.DeviceId)
	dialer := func(ctx context.Context, baseURL, token string, logger *zap.Logger) (hass.Session, error) {
		return session, nil
	}

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHassActor(&cfg, dialer, card, zap.NewNop())
	}))

	snapshot, ok := expectMessage(t, received).(domain.CatalogSnapshotEvent)
	require.True(t, ok)
	assert.Len(t, snapshot.Catalog.Entities, 2)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ActorHealthResponse).Healthy)

	session.emit("sensor.other_battery_level", "10")
	session.emit("sensor.n1_battery_level", "49")

	changed, ok := expectMessage(t, received).(domain.StateChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "sensor.n1_battery_level", changed.EntityId)
	assert.Equal(t, "49", changed.State.State)

	as.Root.Stop(pid)
}

func TestHassActorDialFailureIsNotHealthy(t *testing.T) {

	cfg := util.LoadTestConfig()
	as := actor.NewActorSystem()
	defer as.Shutdown()

	card, _ := observerActor(as)
	dialer := func(ctx context.Context, baseURL, token string, logger *zap.Logger) (hass.Session, error) {
		<-ctx.Done()
		return nil, errors.New("unreachable")
	}

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHassActor(&cfg, dialer, card, zap.NewNop())
	}))

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.False(t, health.Healthy)
	assert.Equal(t, "connecting", health.State)
}

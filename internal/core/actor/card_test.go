package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type snapshotRecorder struct {
	mu     sync.Mutex
	events []domain.SnapshotUpdatedEvent
}

func (r *snapshotRecorder) record(evt any) {
	if ev, ok := evt.(domain.SnapshotUpdatedEvent); ok {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	}
}

func (r *snapshotRecorder) last() (domain.SnapshotUpdatedEvent, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return domain.SnapshotUpdatedEvent{}, 0
	}
	return r.events[len(r.events)-1], len(r.events)
}

func cardCatalog(deviceId string) *domain.Catalog {
	catalog := domain.NewCatalog()
	add := func(id, st string, attrs map[string]any) {
		catalog.Entities = append(catalog.Entities, domain.EntityMeta{EntityId: id, DeviceId: deviceId, Platform: domain.PLATFORM_MESHTASTIC})
		catalog.States[id] = domain.EntityState{EntityId: id, State: st, Attributes: attrs}
	}
	add("sensor.node_short_name", "ABCD", nil)
	add("sensor.node_battery_level", "80", map[string]any{"unit_of_measurement": "%"})
	add("sensor.node_nodes_online", "2", map[string]any{
		"online_nodes": []any{"N1 (last heard: 2024-01-01 11:55:00 UTC)"},
	})
	catalog.Devices[deviceId] = domain.DeviceInfo{Id: deviceId, Name: "node", Model: "T-Beam", SwVersion: "2.3.0"}
	return catalog
}

func spawnCard(t *testing.T) (*actor.ActorSystem, *actor.PID, *snapshotRecorder) {
	as := actor.NewActorSystem()
	cfg := util.LoadTestConfig()
	es := &eventstream.EventStream{}
	rec := &snapshotRecorder{}
	es.Subscribe(rec.record)

	props := actor.PropsFromProducer(func() actor.Actor {
		card := NewCardActor(&cfg, es, zap.NewNop())
		card.clock = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
		return card
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_CARD)
	require.NoError(t, err)
	return as, pid, rec
}

func requestSnapshot(t *testing.T, as *actor.ActorSystem, pid *actor.PID) domain.GetSnapshotResponse {
	res, err := as.Root.RequestFuture(pid, domain.GetSnapshotRequest{}, time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.GetSnapshotResponse)
	require.True(t, ok)
	return resp
}

func TestCardActorNotReadyBeforeCatalog(t *testing.T) {

	as, pid, rec := spawnCard(t)
	defer as.Shutdown()

	resp := requestSnapshot(t, as, pid)
	assert.False(t, resp.Ready)

	// toggling before the catalog only flips the state
	res, err := as.Root.RequestFuture(pid, domain.ToggleExpansionRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ExpansionResponse).Expanded)

	_, n := rec.last()
	assert.Equal(t, 0, n)
}

func TestCardActorSnapshotAndToggle(t *testing.T) {

	as, pid, rec := spawnCard(t)
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	as.Root.Send(pid, domain.CatalogSnapshotEvent{Catalog: cardCatalog(cfg.DeviceId)})

	resp := requestSnapshot(t, as, pid)
	require.True(t, resp.Ready)
	assert.False(t, resp.Expanded)
	assert.Equal(t, "ABCD", resp.Snapshot.ShortName)
	assert.Equal(t, "80%", resp.Snapshot.Battery.Text)
	assert.Equal(t, int64(2), resp.Snapshot.Peers.Online)
	assert.Equal(t, []domain.PeerEntry{{Name: "N1", LastHeardAgo: "5 min ago"}}, resp.Snapshot.PeerList)
	assert.Equal(t, "T-Beam", resp.Snapshot.Model)

	res, err := as.Root.RequestFuture(pid, domain.ToggleExpansionRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ExpansionResponse).Expanded)

	assert.Eventually(t, func() bool {
		ev, n := rec.last()
		return n == 2 && ev.Expanded
	}, time.Second, 10*time.Millisecond)

	// setting the current value does not publish again
	res, err = as.Root.RequestFuture(pid, domain.SetExpansionRequest{On: true}, time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ExpansionResponse).Expanded)
	_, n := rec.last()
	assert.Equal(t, 2, n)

	res, err = as.Root.RequestFuture(pid, domain.SetExpansionRequest{On: false}, time.Second).Result()
	require.NoError(t, err)
	assert.False(t, res.(domain.ExpansionResponse).Expanded)
}

func TestCardActorStateChanged(t *testing.T) {

	as, pid, _ := spawnCard(t)
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	as.Root.Send(pid, domain.CatalogSnapshotEvent{Catalog: cardCatalog(cfg.DeviceId)})
	as.Root.Send(pid, domain.StateChangedEvent{
		EntityId: "sensor.node_battery_level",
		State:    &domain.EntityState{EntityId: "sensor.node_battery_level", State: "42", Attributes: map[string]any{"unit_of_measurement": "%"}},
	})

	resp := requestSnapshot(t, as, pid)
	assert.Equal(t, "42%", resp.Snapshot.Battery.Text)

	as.Root.Send(pid, domain.StateChangedEvent{EntityId: "sensor.node_battery_level"})
	resp = requestSnapshot(t, as, pid)
	assert.Equal(t, "0", resp.Snapshot.Battery.Text)
}

func TestCardActorDevices(t *testing.T) {

	as, pid, _ := spawnCard(t)
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	as.Root.Send(pid, domain.CatalogSnapshotEvent{Catalog: cardCatalog(cfg.DeviceId)})

	res, err := as.Root.RequestFuture(pid, domain.GetDevicesRequest{}, time.Second).Result()
	require.NoError(t, err)
	devices := res.(domain.GetDevicesResponse)
	assert.Equal(t, cfg.DeviceId, devices.Stub)
	assert.Len(t, devices.Devices, 1)

	res, err = as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Equal(t, "default", health.State)
}

package actor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	adactor "github.com/berfenger/meshcard/internal/adapter/actor"
	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/hass"
	"github.com/berfenger/meshcard/internal/mqtt"
	"github.com/berfenger/meshcard/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// staticSession serves a fixed catalog and never emits events.
type staticSession struct {
	catalog map[string]any
	done    chan struct{}
}

func newStaticSession(deviceId string) *staticSession {
	return &staticSession{
		done: make(chan struct{}),
		catalog: map[string]any{
			hass.CMD_ENTITY_REGISTRY_LIST: []hass.EntityRegistryEntry{
				{EntityId: "sensor.n1_node_short_name", DeviceId: deviceId, Platform: domain.PLATFORM_MESHTASTIC},
				{EntityId: "sensor.n1_nodes_online", DeviceId: deviceId, Platform: domain.PLATFORM_MESHTASTIC},
			},
			hass.CMD_DEVICE_REGISTRY_LIST: []hass.DeviceRegistryEntry{{Id: deviceId, Name: "n1", Model: "RAK4631"}},
			hass.CMD_GET_STATES: []hass.State{
				{EntityId: "sensor.n1_node_short_name", State: "N1"},
				{EntityId: "sensor.n1_nodes_online", State: "4"},
			},
		},
	}
}

func (s *staticSession) Call(ctx context.Context, cmdType string, extra map[string]any, out any) error {
	raw, _ := json.Marshal(s.catalog[cmdType])
	return json.Unmarshal(raw, out)
}

func (s *staticSession) Subscribe(ctx context.Context, eventType string, handler func(hass.Event)) error {
	return nil
}

func (s *staticSession) Done() <-chan struct{} { return s.done }

func (s *staticSession) Err() error { return nil }

func (s *staticSession) Close() error { return nil }

func spawnMaster(t *testing.T, cfg config.Config, observer *actor.PID, as *actor.ActorSystem) *actor.PID {
	logger := zap.NewNop()
	dialer := func(ctx context.Context, baseURL, token string, logger *zap.Logger) (hass.Session, error) {
		return newStaticSession(cfg.DeviceId), nil
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func(card *actor.PID) *adactor.HassActor {
			return adactor.NewHassActor(&cfg, dialer, card, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, observer, logger)
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return pid
}

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	pid := spawnMaster(t, cfg, nil, as)

	assert.Eventually(t, func() bool {
		res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
		return err == nil && res.(domain.ActorHealthResponse).Healthy
	}, 5*time.Second, 100*time.Millisecond)

	var snapshot domain.GetSnapshotResponse
	assert.Eventually(t, func() bool {
		res, err := as.Root.RequestFuture(pid, domain.GetSnapshotRequest{}, time.Second).Result()
		if err != nil {
			return false
		}
		snapshot = res.(domain.GetSnapshotResponse)
		return snapshot.Ready
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "N1", snapshot.Snapshot.ShortName)
	assert.Equal(t, int64(4), snapshot.Snapshot.Peers.Online)
	assert.Equal(t, "RAK4631", snapshot.Snapshot.Model)

	res, err := as.Root.RequestFuture(pid, domain.ToggleExpansionRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ExpansionResponse).Expanded)

	// MQTT switch commands reach the card through the master
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		SwitchId:  domain.SWITCH_ID_NODES_EXPANDED,
		Component: mqtt.COMPONENT_SWITCH,
		Payload:   mqtt.MQTT_PAYLOAD_OFF,
	}})
	assert.Eventually(t, func() bool {
		res, err := as.Root.RequestFuture(pid, domain.GetSnapshotRequest{}, time.Second).Result()
		return err == nil && !res.(domain.GetSnapshotResponse).Expanded
	}, 2*time.Second, 50*time.Millisecond)

	as.Root.Stop(pid)
}

func TestMasterPublishesDiscovery(t *testing.T) {

	as := actor.NewActorSystem()
	defer as.Shutdown()

	discovery := make(chan domain.PublishDiscoveryRequest, 1)
	observer := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if msg, ok := ctx.Message().(domain.PublishDiscoveryRequest); ok {
			discovery <- msg
		}
	}))

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = true
	pid := spawnMaster(t, cfg, observer, as)

	select {
	case msg := <-discovery:
		require.Len(t, msg.Sensors, 2)
		assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, msg.Sensors[0].Id)
		assert.Equal(t, domain.SENSOR_ID_CARD, msg.Sensors[1].Id)
		assert.Equal(t, "RAK4631", msg.Sensors[1].Device.Model)
		assert.Equal(t, msg.Sensors[0].Device.Id, msg.Sensors[1].Device.ViaDevice)
		require.Len(t, msg.Switches, 1)
		assert.Equal(t, domain.SWITCH_ID_NODES_EXPANDED, msg.Switches[0].Id)
	case <-time.After(10 * time.Second):
		t.Fatal("discovery not published")
	}

	as.Root.Stop(pid)
}

func TestDiscoveryComponents(t *testing.T) {

	sensors, switches := DiscoveryComponents("meshcard", domain.ViewSnapshot{DeviceId: "dev1", ShortName: "N1", LongName: "Node one"})
	assert.Len(t, sensors, 2)
	assert.Equal(t, "Meshtastic N1 | Node one", sensors[1].Device.Name)
	assert.Len(t, switches, 1)
	assert.Equal(t, sensors[1].Device.Id, switches[0].Device.Id)
	assert.Empty(t, switches[0].Device.Model)
}

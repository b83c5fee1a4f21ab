package hass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "secret"

// fakeHass speaks enough of the websocket API for the client.
func fakeHass(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{"type": MSG_AUTH_REQUIRED, "ha_version": "2024.6.0"})
		var auth authMessage
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth.AccessToken != testToken {
			conn.WriteJSON(map[string]any{"type": MSG_AUTH_INVALID, "message": "Invalid access token"})
			return
		}
		conn.WriteJSON(map[string]any{"type": MSG_AUTH_OK, "ha_version": "2024.6.0"})

		for {
			var cmd map[string]any
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			id := cmd["id"]
			result := func(v any) {
				conn.WriteJSON(map[string]any{"id": id, "type": MSG_RESULT, "success": true, "result": v})
			}
			switch cmd["type"] {
			case CMD_ENTITY_REGISTRY_LIST:
				result([]map[string]any{
					{"entity_id": "sensor.n1_battery_level", "device_id": "dev1", "platform": "meshtastic"},
					{"entity_id": "sensor.n1_nodes_online", "device_id": "dev1", "platform": "meshtastic"},
					{"entity_id": "light.kitchen", "device_id": nil, "platform": "hue"},
				})
			case CMD_DEVICE_REGISTRY_LIST:
				result([]map[string]any{
					{"id": "dev1", "name": "n1", "name_by_user": "Roof node", "model": "T-Beam", "sw_version": "2.3.0"},
				})
			case CMD_GET_STATES:
				result([]map[string]any{
					{"entity_id": "sensor.n1_battery_level", "state": "87", "attributes": map[string]any{"unit_of_measurement": "%"}},
					{"entity_id": "sensor.n1_nodes_online", "state": "3", "attributes": map[string]any{}},
				})
			case CMD_SUBSCRIBE_EVENTS:
				result(nil)
				conn.WriteJSON(map[string]any{
					"id":   id,
					"type": MSG_EVENT,
					"event": map[string]any{
						"event_type": EVENT_STATE_CHANGED,
						"data": map[string]any{
							"entity_id": "sensor.n1_battery_level",
							"new_state": map[string]any{"entity_id": "sensor.n1_battery_level", "state": "86"},
						},
					},
				})
			case CMD_PING:
				conn.WriteJSON(map[string]any{"id": id, "type": MSG_PONG})
			case "test/drop":
				return
			default:
				conn.WriteJSON(map[string]any{
					"id": id, "type": MSG_RESULT, "success": false,
					"error": map[string]any{"code": "unknown_command", "message": "Unknown command."},
				})
			}
		}
	}))
}

func dialFake(t *testing.T, srv *httptest.Server, token string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return Dial(ctx, srv.URL, token, zap.NewNop())
}

func TestWebsocketURL(t *testing.T) {

	assert := assert.New(t)

	u, err := WebsocketURL("http://homeassistant.local:8123")
	assert.NoError(err)
	assert.Equal("ws://homeassistant.local:8123/api/websocket", u)

	u, err = WebsocketURL("https://ha.example.org/")
	assert.NoError(err)
	assert.Equal("wss://ha.example.org/api/websocket", u)

	_, err = WebsocketURL("ftp://ha")
	assert.Error(err)
}

func TestDialAuthInvalid(t *testing.T) {

	srv := fakeHass(t)
	defer srv.Close()

	_, err := dialFake(t, srv, "wrong")
	assert.ErrorIs(t, err, ErrAuthInvalid)
	assert.True(t, strings.Contains(err.Error(), "Invalid access token"))
}

func TestLoadCatalog(t *testing.T) {

	assert := assert.New(t)

	srv := fakeHass(t)
	defer srv.Close()

	c, err := dialFake(t, srv, testToken)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal("2024.6.0", c.HAVersion)

	catalog, err := LoadCatalog(context.Background(), c)
	require.NoError(t, err)

	assert.Len(catalog.Entities, 3)
	assert.Equal("sensor.n1_battery_level", catalog.Entities[0].EntityId)
	assert.Equal("", catalog.Entities[2].DeviceId)
	assert.Equal("Roof node", catalog.Device("dev1").Name)
	st, ok := catalog.State("sensor.n1_battery_level")
	assert.True(ok)
	assert.Equal("87", st.State)
	assert.Equal("%", st.Attributes["unit_of_measurement"])
}

func TestSubscribeStateChanged(t *testing.T) {

	srv := fakeHass(t)
	defer srv.Close()

	c, err := dialFake(t, srv, testToken)
	require.NoError(t, err)
	defer c.Close()

	received := make(chan Event, 1)
	err = c.Subscribe(context.Background(), EVENT_STATE_CHANGED, func(ev Event) {
		received <- ev
	})
	require.NoError(t, err)

	select {
	case ev := <-received:
		changed, err := DecodeStateChanged(ev)
		require.NoError(t, err)
		assert.Equal(t, "sensor.n1_battery_level", changed.EntityId)
		require.NotNil(t, changed.State)
		assert.Equal(t, "86", changed.State.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestCommandError(t *testing.T) {

	srv := fakeHass(t)
	defer srv.Close()

	c, err := dialFake(t, srv, testToken)
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "does/not/exist", nil, nil)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "unknown_command", cmdErr.Code)

	assert.NoError(t, c.Ping(context.Background()))
}

func TestConnectionLoss(t *testing.T) {

	srv := fakeHass(t)
	defer srv.Close()

	c, err := dialFake(t, srv, testToken)
	require.NoError(t, err)

	assert.Nil(t, c.Err())
	err = c.Call(context.Background(), "test/drop", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-c.Done():
		assert.Error(t, c.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("connection loss not detected")
	}
}

func TestDecodeRemovedState(t *testing.T) {

	data, _ := json.Marshal(map[string]any{"entity_id": "sensor.gone", "new_state": nil})
	changed, err := DecodeStateChanged(Event{EventType: EVENT_STATE_CHANGED, Data: data})
	require.NoError(t, err)
	assert.Equal(t, "sensor.gone", changed.EntityId)
	assert.Nil(t, changed.State)
}

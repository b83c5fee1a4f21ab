package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/expansion"
	"github.com/berfenger/meshcard/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMaster struct {
	ready    bool
	healthy  bool
	expanded bool
}

func (m *stubMaster) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: m.healthy})
	case domain.GetSnapshotRequest:
		ctx.Respond(domain.GetSnapshotResponse{
			Ready:    m.ready,
			Expanded: m.expanded,
			Snapshot: domain.ViewSnapshot{
				DeviceId:  "a1b2c3d4",
				ShortName: "ABCD",
				Uptime:    "1h 0m",
				Peers:     domain.PeerCount{Online: 1, Total: 3},
				PeerList:  []domain.PeerEntry{{Name: "N1", LastHeardAgo: "just now"}},
			},
		})
	case domain.ToggleExpansionRequest:
		m.expanded = !m.expanded
		ctx.Respond(domain.ExpansionResponse{Expanded: m.expanded})
	case domain.GetDevicesRequest:
		ctx.Respond(domain.GetDevicesResponse{
			Devices: []domain.MeshtasticDevice{{Id: "a1b2c3d4", Name: "Roof"}},
			Stub:    "a1b2c3d4",
		})
	}
}

func newTestServer(t *testing.T, master *stubMaster) http.Handler {
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return master }))
	s := newServer(util.LoadTestConfig(), system.Root, pid)
	s.requestTimeout = 2 * time.Second
	return s.RegisterRoutes()
}

func do(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {

	rec := do(newTestServer(t, &stubMaster{healthy: true}), http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	rec = do(newTestServer(t, &stubMaster{}), http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshotNotReady(t *testing.T) {

	handler := newTestServer(t, &stubMaster{})

	for _, target := range []string{"/api/snapshot", "/api/card", "/api/card.txt"} {
		rec := do(handler, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestSnapshot(t *testing.T) {

	rec := do(newTestServer(t, &stubMaster{ready: true}), http.MethodGet, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot domain.ViewSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "ABCD", snapshot.ShortName)
	assert.Equal(t, int64(3), snapshot.Peers.Total)
}

func TestCardToggle(t *testing.T) {

	assert := assert.New(t)
	handler := newTestServer(t, &stubMaster{ready: true})

	var card expansion.Presentation
	rec := do(handler, http.MethodGet, "/api/card")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.False(card.Expanded)
	assert.Empty(card.Rows)

	rec = do(handler, http.MethodPost, "/api/card/toggle")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(`{"expanded":true}`, rec.Body.String())

	rec = do(handler, http.MethodGet, "/api/card")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.True(card.Expanded)
	assert.Equal([]expansion.PeerRow{{Name: "N1", Ago: "just now"}}, card.Rows)

	rec = do(handler, http.MethodGet, "/api/card.txt")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "Online nodes 1/3")
	assert.Contains(rec.Body.String(), "N1")
}

func TestDevices(t *testing.T) {

	rec := do(newTestServer(t, &stubMaster{}), http.MethodGet, "/api/devices")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"devices":[{"id":"a1b2c3d4","name":"Roof","model":"","sw_version":""}],"stub":"a1b2c3d4"}`, rec.Body.String())
}

func TestVersion(t *testing.T) {

	rec := do(newTestServer(t, &stubMaster{}), http.MethodGet, "/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

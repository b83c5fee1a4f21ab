package server

import (
	"net/http"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/expansion"
	"github.com/berfenger/meshcard/internal/render"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type errorBody struct {
	Error string `json:"error"`
}

type expansionBody struct {
	Expanded bool `json:"expanded"`
}

type devicesBody struct {
	Devices []domain.MeshtasticDevice `json:"devices"`
	Stub    string                    `json:"stub"`
}

type versionBody struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
	Dirty    bool   `json:"dirty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)

	api := e.Group("/api")
	api.GET("/snapshot", s.SnapshotHandler)
	api.GET("/card", s.CardHandler)
	api.GET("/card.txt", s.CardTextHandler)
	api.POST("/card/toggle", s.ToggleHandler)
	api.GET("/devices", s.DevicesHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, versionBody{
		Version:  versioninfo.Short(),
		Revision: versioninfo.Revision,
		Dirty:    versioninfo.DirtyBuild,
	})
}

func (s *Server) SnapshotHandler(c echo.Context) error {
	snapshot, ok := s.snapshot(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, snapshot.Snapshot)
}

func (s *Server) CardHandler(c echo.Context) error {
	snapshot, ok := s.snapshot(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, expansion.Present(snapshot.Snapshot, snapshot.Expanded))
}

func (s *Server) CardTextHandler(c echo.Context) error {
	snapshot, ok := s.snapshot(c)
	if !ok {
		return nil
	}
	return c.String(http.StatusOK, render.Card(expansion.Present(snapshot.Snapshot, snapshot.Expanded), s.renderWidth)+"\n")
}

func (s *Server) ToggleHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ToggleExpansionRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	response, ok := res.(domain.ExpansionResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: response.ResponseError.Error()})
	}
	return c.JSON(http.StatusOK, expansionBody{Expanded: response.Expanded})
}

func (s *Server) DevicesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetDevicesRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	response, ok := res.(domain.GetDevicesResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	devices := response.Devices
	if devices == nil {
		devices = []domain.MeshtasticDevice{}
	}
	return c.JSON(http.StatusOK, devicesBody{Devices: devices, Stub: response.Stub})
}

// snapshot writes the error response itself and returns false when the card
// cannot be served.
func (s *Server) snapshot(c echo.Context) (domain.GetSnapshotResponse, bool) {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetSnapshotRequest{}, s.requestTimeout).Result()
	if err != nil {
		_ = c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return domain.GetSnapshotResponse{}, false
	}
	response, ok := res.(domain.GetSnapshotResponse)
	if !ok {
		_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
		return domain.GetSnapshotResponse{}, false
	}
	if !response.Ready {
		_ = c.JSON(http.StatusServiceUnavailable, errorBody{Error: "card not ready"})
		return domain.GetSnapshotResponse{}, false
	}
	return response, true
}

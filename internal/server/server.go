package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/meshcard/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

const DEFAULT_REQUEST_TIMEOUT = 10 * time.Second

type Server struct {
	port           uint
	httpLog        bool
	renderWidth    int
	requestTimeout time.Duration
	rootContext    *actor.RootContext
	masterActor    *actor.PID
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *Server {
	return &Server{
		port:           cfg.Port,
		httpLog:        cfg.HttpLog,
		renderWidth:    cfg.Card.RenderWidth,
		requestTimeout: DEFAULT_REQUEST_TIMEOUT,
		rootContext:    rootContext,
		masterActor:    masterActor,
	}
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

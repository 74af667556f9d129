package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/gorilla/websocket"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

const (
	REQUEST_TIMEOUT = 5 * time.Second
	HEALTH_TIMEOUT  = 10 * time.Second
)

type Server struct {
	port           uint
	httpLog        bool
	requestTimeout time.Duration
	metrics        bool
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	eventStream    *eventstream.EventStream
	upgrader       websocket.Upgrader
	logger         *zap.Logger
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *Server {
	return &Server{
		port:           cfg.Port,
		httpLog:        cfg.HttpLog,
		requestTimeout: REQUEST_TIMEOUT,
		metrics:        cfg.Metrics.Enable,
		rootContext:    rootContext,
		masterActor:    masterActor,
		eventStream:    eventStream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With(zap.String("component", "http")),
	}
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor, eventStream, logger)

	// Declare Server config
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", NewServer.port),
		Handler:     NewServer.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// websocket streams are long lived, writes carry their own deadline
		WriteTimeout: 0,
	}

	return server
}

// Package server exposes the dialogue service over HTTP. Chat replies are
// streamed as NDJSON so the client renders each assistant message as it is
// produced.
package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/velora-commerce/refund-agent/agent/orchestrator"
)

type Config struct {
	Addr  string `envconfig:"ADDR" split_words:"true" default:":8080"`
	Debug bool   `envconfig:"DEBUG" split_words:"true" default:"false"`
}

// ChatService is the orchestrator surface the handlers need.
type ChatService interface {
	HandleTurn(ctx context.Context, threadID string, userID int64, prompt string, emit func(content string)) (*orchestrator.Result, error)
	ClearThread(ctx context.Context, threadID string) error
}

type Server struct {
	engine *gin.Engine
	svc    ChatService
	admin  RefundAdmin
	log    zerolog.Logger
}

func New(svc ChatService, admin RefundAdmin, cfg Config, log zerolog.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, svc: svc, log: log}

	engine.GET("/healthcheck", s.handleHealthcheck)
	engine.POST("/chat", s.handleChat)
	engine.DELETE("/chat/:thread_id", s.handleClearThread)
	s.registerAdminRoutes(admin)

	return s
}

// Run blocks serving HTTP on the given address.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

// Package api exposes the HTTP surface: the tool dispatch endpoint, health,
// and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/recall/pkg/database"
	"github.com/codeready-toolchain/recall/pkg/metrics"
	"github.com/codeready-toolchain/recall/pkg/services"
)

// Services groups the domain services the API dispatches into.
type Services struct {
	Plans     *services.PlanService
	Turns     *services.TurnService
	Memory    *services.MemoryService
	Distill   *services.DistillService
	Retrieval *services.RetrievalService
	Audit     *services.AuditService
	Shared    *services.SharedService
}

// Server is the HTTP server.
type Server struct {
	db         *database.Client
	services   Services
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// NewServer creates the server and wires its routes.
func NewServer(db *database.Client, svcs Services, m *metrics.Metrics, port string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		db:       db,
		services: svcs,
		metrics:  m,
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	router.POST("/mcp/call", s.handleToolCall)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return s
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed on
// graceful shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

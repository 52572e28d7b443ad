// Package httpapi exposes the ops HTTP surface: health, Prometheus
// metrics, and a read-only stats endpoint. It never accepts job
// submissions and never persists anything of its own.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"workhorse/internal/metrics"
	"workhorse/internal/processor"
	"workhorse/internal/store"
)

// StatsSource is the Introspection Store surface this package needs.
// Narrowing it to an interface lets tests substitute a fake without a
// live Redis server.
type StatsSource interface {
	Snapshot(ctx context.Context, queues []string) (store.Stats, error)
}

// Controller is the subset of the Server Controller this package needs
// to report shutdown progress. Narrowed to an interface so tests never
// need a live *server.Server.
type Controller interface {
	Stopping() bool
	Processors() []*processor.Processor
}

// Server wires the ops endpoints together behind a *gin.Engine.
type Server struct {
	engine  *gin.Engine
	store   StatsSource
	ctrl    Controller
	queues  []string
	metrics *metrics.Collector
}

func New(st StatsSource, ctrl Controller, queues []string, collector *metrics.Collector) *Server {
	s := &Server{store: st, ctrl: ctrl, queues: queues, metrics: collector}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/stats", s.handleStats)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Snapshot(c.Request.Context(), s.queues)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stopping":   s.ctrl.Stopping(),
		"processors": len(s.ctrl.Processors()),
		"queues":     stats.QueueLengths,
		"retry":      stats.RetryCount,
		"dead":       stats.DeadCount,
	})
}

// Handler returns the http.Handler ListenAndServe (or httptest) needs.
func (s *Server) Handler() http.Handler {
	return s.engine
}

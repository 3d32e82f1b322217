// Package dashboard serves the task engine as a JSON API: the filtered
// tree, stat tiles, analytics, the Kanban board with drag moves, and a
// server-sent event stream of snapshot changes.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/opsdeck/internal/kanban"
	"github.com/zulandar/opsdeck/internal/query"
	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/store"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// Backend is the store the dashboard writes through.
type Backend interface {
	kanban.Store
	Create(ctx context.Context, opts store.CreateOpts) (tasktree.Task, error)
	Delete(ctx context.Context, id string, policy store.DeletePolicy) ([]string, error)
	Analytics(ctx context.Context) (*rollup.Analytics, error)
	RecordAnalytics(ctx context.Context) (rollup.Analytics, error)
	Directory(ctx context.Context) (query.DirectoryMap, error)
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Backend    Backend
	Controller *kanban.Controller
	Calendar   rollup.Calendar
	Metrics    *Metrics
	Logger     logrus.FieldLogger
	Port       int
	Out        io.Writer

	// Reconcile is a 5-field cron schedule for background refetches.
	Reconcile string
	// AnalyticsMaxAge is how old precomputed analytics may be.
	AnalyticsMaxAge time.Duration
	// Heartbeat is the SSE keep-alive interval. Defaults to 15s.
	Heartbeat time.Duration
	// RemoteTimeout bounds background store calls. Defaults to 30s.
	RemoteTimeout time.Duration
}

// Server holds the handlers' dependencies.
type Server struct {
	backend   Backend
	ctrl      *kanban.Controller
	cal       rollup.Calendar
	metrics   *Metrics
	log       logrus.FieldLogger
	maxAge    time.Duration
	heartbeat time.Duration
	timeout   time.Duration
}

// NewServer validates opts and fills in defaults.
func NewServer(opts StartOpts) (*Server, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("dashboard: backend is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("dashboard: controller is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 30 * time.Second
	}
	return &Server{
		backend:   opts.Backend,
		ctrl:      opts.Controller,
		cal:       opts.Calendar,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		maxAge:    opts.AnalyticsMaxAge,
		heartbeat: opts.Heartbeat,
		timeout:   opts.RemoteTimeout,
	}, nil
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), s.requestLogger(), s.metrics.middleware())
	registerRoutes(router, s)
	return router
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := NewServer(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.Router(),
	}

	if opts.Reconcile != "" {
		stop, err := s.startReconciler(opts.Reconcile)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		defer stop()
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

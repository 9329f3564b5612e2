package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"scalpExecutor/internal/app"
	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// Service is the application surface the HTTP API exposes.
type Service interface {
	ExecuteStrategy(ctx context.Context, strategyID string, holding time.Duration) (*app.ExecutionResult, error)
	CreateStrategy(ctx context.Context, strat *domain.Strategy) (*domain.Strategy, error)
	ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, int, error)
	GetTrade(ctx context.Context, id string) (*domain.Trade, error)
	Overview(ctx context.Context) (*app.Overview, error)
	ActiveMonitors() []app.MonitorInfo
	CheckHealth(ctx context.Context) error
	CheckConnectivity(ctx context.Context) error
}

// Config holds the HTTP server settings.
type Config struct {
	Addr              string
	RequestsPerSecond float64 // Per client IP, 0 disables limiting
	Burst             int
	RequestTimeout    time.Duration
}

// Server wires HTTP endpoints around the trading service.
type Server struct {
	Router *gin.Engine

	svc        Service
	logger     ports.Logger
	limiter    *ipLimiter
	httpServer *http.Server
}

// NewServer builds the router with its middleware chain.
func NewServer(cfg Config, svc Service, logger ports.Logger) *Server {
	r := gin.New()

	s := &Server{
		Router: r,
		svc:    svc,
		logger: logger,
	}

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(logger))
	if cfg.RequestsPerSecond > 0 {
		s.limiter = newIPLimiter(cfg.RequestsPerSecond, cfg.Burst)
		r.Use(rateLimitMiddleware(s.limiter, logger))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
	}

	s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/test", s.connectivity)
	s.Router.POST("/execute-strategy", s.executeStrategy)
	s.Router.POST("/strategies", s.createStrategy)

	api := s.Router.Group("/api")
	{
		api.GET("/trades", s.listTrades)
		api.GET("/trades/:id", s.getTrade)
		api.GET("/overview", s.overview)
		api.GET("/monitors", s.monitors)
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

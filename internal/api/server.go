// Package api is the bot's HTTP surface: the Frontier login callback, the
// Discord interactions webhook, health and metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/config"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/session"
	"github.com/pokedi/edfc/internal/store"
)

const maxBodyBytes = 1 << 20

// SessionCompleter finishes a login from the callback.
type SessionCompleter interface {
	CompleteSession(ctx context.Context, sessionID, code, state string) (*session.Result, error)
}

// InteractionHandler verifies and answers interaction webhooks.
type InteractionHandler interface {
	Verify(r *http.Request) bool
	Handle(ctx context.Context, body []byte) (*discordgo.InteractionResponse, error)
	Wait()
}

// Deps are the components the server routes to. Interactions may be nil
// when no Discord public key is configured.
type Deps struct {
	Sessions     SessionCompleter
	Interactions InteractionHandler
	Store        store.Store
	Cache        cache.Cache
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
}

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	config      config.ServerConfig
	deps        Deps
	metrics     *metrics.Metrics
	logger      *logging.Logger
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	m := deps.Metrics
	if m == nil {
		m = metrics.NewMetrics("edfc")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}

	requestsPerMinute := cfg.RateLimit.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 60
	}

	server := &Server{
		router:      gin.New(),
		config:      cfg,
		deps:        deps,
		metrics:     m,
		logger:      logger,
		rateLimiter: newIPRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst),
	}
	server.router.HandleMethodNotAllowed = true
	server.router.SetHTMLTemplate(pages)

	server.router.Use(gin.Recovery())
	server.router.Use(bodyLimitMiddleware(maxBodyBytes))
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx, correlationID := logging.EnsureCorrelationID(c.Request.Context(), c.GetHeader("X-Correlation-ID"))
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", correlationID)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	limit := rateLimitMiddleware(s.rateLimiter)

	s.router.GET("/metrics", limit, gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", limit, s.handleHealth)

	base := s.router.Group(s.config.BasePath)
	{
		base.GET("/:sessionId/callback", limit, s.handleCallback)
		// Discord posts from a few shared addresses; the signature gates this route instead.
		base.POST("/interactions", interactionAuth(s.deps.Interactions, s.logger), s.handleInteraction)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Addr()
	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}
	s.logger.Info("starting HTTP server", "addr", addr, "base_path", s.config.BasePath)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	srv.Handler = s.router
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown stops accepting requests, lets deferred interactions deliver
// their follow-ups, then closes the cache and store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err.Error())
			return &errors.ErrServerShutdown{Err: err}
		}
	}

	if s.deps.Interactions != nil {
		done := make(chan struct{})
		go func() {
			s.deps.Interactions.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if s.deps.Cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.deps.Cache.Close(); err != nil {
				errs <- fmt.Errorf("cache close: %w", err)
			}
		}()
	}

	if s.deps.Store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.deps.Store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	wg.Wait()
	close(errs)
	var errList []error
	for err := range errs {
		errList = append(errList, err)
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth reports store and cache reachability. The cache is optional,
// so an unreachable cache degrades the status without failing the check.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status := "healthy"
	code := http.StatusOK
	body := gin.H{"timestamp": time.Now().UTC()}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(ctx); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			body["store"] = err.Error()
		} else if stats, err := s.deps.Store.Stats(ctx); err == nil {
			body["store"] = stats
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			if code == http.StatusOK {
				status = "degraded"
			}
			body["cache"] = err.Error()
		} else {
			body["cache"] = "ok"
		}
	}

	body["status"] = status
	c.JSON(code, body)
}

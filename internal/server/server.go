// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/admin"
	"github.com/mbd888/bridgegate/internal/auth"
	"github.com/mbd888/bridgegate/internal/config"
	"github.com/mbd888/bridgegate/internal/health"
	"github.com/mbd888/bridgegate/internal/incident"
	"github.com/mbd888/bridgegate/internal/logging"
	"github.com/mbd888/bridgegate/internal/metrics"
	"github.com/mbd888/bridgegate/internal/quota"
	"github.com/mbd888/bridgegate/internal/ratelimit"
	"github.com/mbd888/bridgegate/internal/realtime"
	"github.com/mbd888/bridgegate/internal/registry"
	"github.com/mbd888/bridgegate/internal/security"
	"github.com/mbd888/bridgegate/internal/signals"
	"github.com/mbd888/bridgegate/internal/traces"
	"github.com/mbd888/bridgegate/internal/transfer"
	"github.com/mbd888/bridgegate/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	acl         *access.Controller
	registry    registry.Store
	ledger      *quota.Ledger
	transfers   *transfer.Service
	incidents   *incident.Engine
	authMgr     *auth.Manager
	dispatcher  *signals.Dispatcher
	emitter     *signals.Emitter
	signalStore signals.Store
	realtimeHub *realtime.Hub
	rateLimiter *ratelimit.Limiter
	healthReg   *health.Registry
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	var (
		transferStore transfer.Store
		authStore     auth.Store
	)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		regStore := registry.NewPostgresStore(db)
		if err := regStore.Migrate(ctx); err != nil {
			s.logger.Warn("registry migration failed", "error", err)
		}
		s.registry = regStore

		tStore := transfer.NewPostgresStore(db)
		if err := tStore.Migrate(ctx); err != nil {
			s.logger.Warn("transfer migration failed", "error", err)
		}
		transferStore = tStore

		aStore := auth.NewPostgresStore(db)
		if err := aStore.Migrate(ctx); err != nil {
			s.logger.Warn("auth migration failed", "error", err)
		}
		authStore = aStore

		sigStore := signals.NewPostgresStore(db)
		if err := sigStore.Migrate(ctx); err != nil {
			s.logger.Warn("signals migration failed", "error", err)
		}
		s.signalStore = sigStore
	} else {
		s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
		s.registry = registry.NewMemoryStore()
		transferStore = transfer.NewMemoryStore()
		authStore = auth.NewMemoryStore()
		s.signalStore = signals.NewMemoryStore()
	}

	// Tracing is optional; without an endpoint StartSpan calls are no-ops.
	if cfg.OTLPEndpoint != "" {
		shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
		if err != nil {
			s.logger.Warn("tracing init failed", "error", err)
		} else {
			s.shutdownTraces = shutdown
		}
	}

	// Governance roles come from config; the owner can change the assessor
	// and guardian set at runtime.
	s.acl = access.NewController(cfg.OwnerAddress, cfg.AssessorAddress, cfg.GuardianAddresses)
	s.logger.Info("access control configured",
		"owner", cfg.OwnerAddress,
		"assessor", cfg.AssessorAddress,
		"guardians", len(cfg.GuardianAddresses),
	)

	s.authMgr = auth.NewManager(authStore)
	s.logger.Info("API authentication enabled")

	s.ledger = quota.NewLedger(s.registry, cfg.MaxTransferLimit)

	// Signal fan-out: HTTP observers plus the WebSocket hub
	s.realtimeHub = realtime.NewHub(s.logger)
	s.dispatcher = signals.NewDispatcher(s.signalStore).
		WithTimeout(time.Duration(cfg.SignalTimeout) * time.Second)
	s.emitter = signals.NewEmitter(s.dispatcher, s.logger).
		WithBroadcaster(s.realtimeHub)

	s.incidents = incident.NewEngine(s.acl, s.ledger).WithEmitter(s.emitter)

	transferSvc, err := transfer.NewService(ctx, transferStore, s.registry, s.ledger, s.acl, s.incidents)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer service: %w", err)
	}
	s.transfers = transferSvc.WithEmitter(s.emitter)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.healthReg = health.NewRegistry()
	s.registerHealthChecks()

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
		rlCfg.BurstSize = s.cfg.RateLimitRPS * 2
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)
	s.router.GET("/api", s.infoHandler)

	// WebSocket for real-time signal streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :address URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.AddressParamMiddleware())

	transferHandler := transfer.NewHandler(s.transfers)
	incidentHandler := incident.NewHandler(s.incidents)
	registryHandler := registry.NewHandler(s.registry)
	authHandler := auth.NewHandler(s.authMgr)
	signalHandler := signals.NewHandler(s.signalStore)
	adminHandler := admin.NewHandler(s.acl, s.registry, s.ledger, s.authMgr)

	// PUBLIC ROUTES (no auth required)
	// Read endpoints: transfer lookups, destination config, engine state
	transferHandler.RegisterRoutes(v1)
	incidentHandler.RegisterRoutes(v1)
	registryHandler.RegisterRoutes(v1)
	v1.GET("/auth/info", authHandler.Info)

	// PROTECTED ROUTES (require API key)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr), auth.RequireAuth(s.authMgr))
	{
		// Transfer initiation and risk assessment
		transferHandler.RegisterProtectedRoutes(protected)

		// Incident reports from the trusted assessor
		incidentHandler.RegisterProtectedRoutes(protected)

		// Signal observer management
		signalHandler.RegisterRoutes(protected)

		// Key self-service
		protected.GET("/auth/keys", authHandler.ListKeys)
		protected.POST("/auth/keys", authHandler.CreateKey)
		protected.DELETE("/auth/keys/:keyId", authHandler.RevokeKey)
		protected.GET("/auth/whoami", authHandler.WhoAmI)

		// Governance (role checks inside the handlers)
		adminHandler.RegisterRoutes(protected.Group("/admin"))
	}
}

// -----------------------------------------------------------------------------
// Info & health handlers
// -----------------------------------------------------------------------------

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Bridgegate",
		"description": "Risk-adaptive admission control for cross-chain transfers",
		"version":     "0.1.0",
		"endpoints": gin.H{
			"transfers":    "/v1/transfers",
			"destinations": "/v1/destinations",
			"state":        "/v1/state",
			"auth":         "/v1/auth/info",
			"websocket":    "/ws",
		},
	})
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) registerHealthChecks() {
	if s.db != nil {
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.healthReg.Register("storage", func(ctx context.Context) health.Status {
			return health.Status{Name: "storage", Healthy: true, Detail: "in-memory"}
		})
	}

	// Paused admission is still a healthy process; report it as detail only.
	s.healthReg.Register("admission", func(ctx context.Context) health.Status {
		if s.incidents.Paused() {
			return health.Status{Name: "admission", Healthy: true, Detail: "paused"}
		}
		return health.Status{Name: "admission", Healthy: true, Detail: "open"}
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		v := "healthy"
		if !st.Healthy {
			v = "unhealthy"
		}
		if st.Detail != "" {
			v = st.Detail
		}
		checks[st.Name] = v
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"owner", s.acl.Owner(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	if s.realtimeHub != nil {
		go s.realtimeHub.Run(runCtx)
	}

	// Export connection pool stats
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, stats collector)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending trace spans
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bedrocknet/bedrocknet/internal/config"
	"github.com/bedrocknet/bedrocknet/internal/events"
	"github.com/bedrocknet/bedrocknet/internal/store"
	"github.com/bedrocknet/bedrocknet/internal/util"
	"github.com/bedrocknet/bedrocknet/protocol"
)

// Server is the REST status API server for bedrockd.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	store    *store.SessionStore
	registry *protocol.Registry

	startedAt time.Time

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, sessions *store.SessionStore, registry *protocol.Registry) *Server {
	// Set Gin mode based on log level
	if cfg.Application.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:       cfg,
		eventBus:  eventBus,
		store:     sessions,
		registry:  registry,
		startedAt: time.Now(),
	}
}

// Start initializes and starts the API server.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.Application.API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// TLS configuration
	if s.cfg.Application.Security.TLSEnabled {
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			},
		}
	}

	// Create listener with SO_REUSEADDR for immediate rebinding after restart
	lc := util.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if s.cfg.Application.Security.TLSEnabled {
		tlsListener := tls.NewListener(ln, s.httpServer.TLSConfig)
		err = s.httpServer.Serve(tlsListener)
	} else {
		err = s.httpServer.Serve(ln)
	}

	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}

	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	// CORS
	allowedOrigins := s.cfg.Application.Security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiting
	rateLimiter := NewRateLimiter(s.cfg.Application.Security.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	// ---- Public endpoints ----
	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/get_server_info", s.handleGetServerInfo)
		public.GET("/get_protocol_info", s.handleGetProtocolInfo)
	}

	// ---- Admin endpoints (IP whitelisted) ----
	admin := router.Group("/api")
	admin.Use(IPWhitelist(s.cfg))
	{
		admin.GET("/sessions", s.handleGetSessions)
		admin.GET("/sessions/active", s.handleGetActiveSessions)
		admin.GET("/bans", s.handleGetBans)
		admin.POST("/bans", s.handleAddBan)
		admin.DELETE("/bans/:id", s.handleRemoveBan)
		admin.GET("/system", s.handleGetSystem)
		admin.GET("/config", s.handleGetConfig)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

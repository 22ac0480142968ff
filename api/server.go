package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/OldStager01/imagizer-autoscaler/api/docs"
	"github.com/OldStager01/imagizer-autoscaler/api/handlers"
	"github.com/OldStager01/imagizer-autoscaler/api/middleware"
	"github.com/OldStager01/imagizer-autoscaler/api/websocket"
	"github.com/OldStager01/imagizer-autoscaler/internal/auth"
	"github.com/OldStager01/imagizer-autoscaler/internal/metrics"
	"github.com/OldStager01/imagizer-autoscaler/pkg/config"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// Dependencies are the collaborators the API serves. Events may be nil, in
// which case websocket clients only get state snapshots.
type Dependencies struct {
	Users   handlers.UserStore
	Checks  map[string]handlers.Checker
	Manager handlers.ClusterManager
	Events  websocket.EventSource
	History handlers.HistoryStores
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.APIConfig
	authConfig  config.AuthConfig
	production  bool
	deps        Dependencies
	authService *auth.Service
	rateLimiter *middleware.RateLimiter
	wsHub       *websocket.Hub
	wsBridge    *websocket.EventBridge
	done        chan struct{}
	stopOnce    sync.Once
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	production := cfg.App.Mode == "production"
	if production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTDuration)
	wsHub := websocket.NewHub(&cfg.WebSocket, stateFunc(deps.Manager))

	s := &Server{
		router:      router,
		config:      cfg.API,
		authConfig:  cfg.Auth,
		production:  production,
		deps:        deps,
		authService: authService,
		wsHub:       wsHub,
		done:        make(chan struct{}),
	}

	s.setupMiddleware()
	s.setupRoutes()

	go wsHub.Run()

	// Forward orchestrator events to websocket clients
	if deps.Events != nil {
		s.wsBridge = websocket.NewEventBridge(wsHub, deps.Events)
		s.wsBridge.Start()
	}

	return s
}

func stateFunc(manager handlers.ClusterManager) websocket.StateFunc {
	if manager == nil {
		return nil
	}
	return func(clusterID string) (models.ClusterState, bool) {
		state, err := manager.State(clusterID)
		if err != nil {
			return models.ClusterState{}, false
		}
		return state, true
	}
}

func corsConfig(cfg config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		out.AllowOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		out.AllowMethods = cfg.AllowedMethods
	}
	if len(cfg.AllowedHeaders) > 0 {
		out.AllowHeaders = cfg.AllowedHeaders
	}
	if len(cfg.ExposedHeaders) > 0 {
		out.ExposeHeaders = cfg.ExposedHeaders
	}
	out.AllowCredentials = cfg.AllowCredentials
	return out
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(corsConfig(s.config.CORS)))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger())

	s.rateLimiter = middleware.NewRateLimiter(s.config.RateLimit, time.Minute)
	s.router.Use(middleware.RateLimit(s.rateLimiter))

	endpoints := middleware.NewEndpointRateLimiter()
	endpoints.AddEndpoint("/clusters/:id/samples", s.config.RateLimit, time.Minute)
	s.router.Use(endpoints.Middleware())
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Checks, s.running)
	authHandler := handlers.NewAuthHandler(s.deps.Users, s.authService, s.authConfig.CookieName, s.production)
	clusterHandler := handlers.NewClusterHandler(s.deps.Manager, s.config.DefaultLimit, s.config.MaxLimit)
	metricsHandler := handlers.NewMetricsHandler(s.deps.History, s.config.DefaultLimit, s.config.MaxLimit)

	// Public routes
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)
	s.router.GET("/metrics", gin.WrapH(metrics.Get().Handler()))

	if s.config.Swagger {
		docs.SwaggerInfo.BasePath = "/"
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Auth routes
	s.router.POST("/auth/login", middleware.AuthRateLimiter(s.config.LoginLimit), authHandler.Login)

	// WebSocket route
	s.router.GET("/ws", middleware.JWTAuth(s.authService, s.authConfig.CookieName), websocket.ServeWebSocket(s.wsHub))

	// Protected routes
	protected := s.router.Group("/")
	protected.Use(middleware.JWTAuth(s.authService, s.authConfig.CookieName))
	{
		// Clusters
		protected.GET("/clusters", clusterHandler.List)
		protected.GET("/clusters/:id/state", clusterHandler.GetState)
		protected.GET("/clusters/:id/decisions", clusterHandler.GetDecisions)
		protected.GET("/clusters/:id/rules", clusterHandler.GetRules)
		protected.POST("/clusters/:id/samples", clusterHandler.PushSamples)
		protected.GET("/rules", clusterHandler.ListRules)

		// History
		protected.GET("/clusters/:id/history", metricsHandler.GetMetrics)
		protected.GET("/clusters/:id/decisions/history", metricsHandler.GetDecisionHistory)
		protected.GET("/clusters/:id/events", metricsHandler.GetScalingEvents)
		protected.GET("/clusters/:id/events/stats", metricsHandler.GetScalingStats)
		protected.GET("/events/recent", metricsHandler.GetRecentEvents)
	}
}

func (s *Server) running() []string {
	if s.deps.Manager == nil {
		return nil
	}
	return s.deps.Manager.ListRunningClusters()
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	idle := s.config.IdleTimeout
	if idle <= 0 {
		idle = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  idle,
	}

	go s.cleanupLoop()

	return s.httpServer.ListenAndServe()
}

func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.rateLimiter.Cleanup()
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	// Stop the event bridge before the hub
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}
	s.wsHub.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}

package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/bridge"
	"github.com/inspectkit/bridge/internal/config"
	"github.com/inspectkit/bridge/internal/loader"
	"github.com/inspectkit/bridge/internal/logging"
	"github.com/inspectkit/bridge/internal/middleware"
	"github.com/inspectkit/bridge/internal/monitoring"
	"github.com/inspectkit/bridge/internal/prefs"
	"github.com/inspectkit/bridge/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // frontends connect from file:// and devtools:// origins
	},
}

// Server hosts inspector sessions: each websocket connection on
// /inspect gets its own bridge wired to the target named in the query
// string.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	router  *gin.Engine
	fetcher loader.Fetcher

	mu       sync.Mutex
	sessions map[string]*bridge.Bridge
}

// New assembles the server from configuration. Each server owns its
// metrics registry, so several can coexist in one process.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsWithRegistry(registry)

	s := &Server{
		cfg:     cfg,
		logger:  logger.Named("server"),
		metrics: metrics,
		fetcher: loader.NewHTTPFetcher(loader.FetcherConfig{
			Timeout:           cfg.Loader.RequestTimeout,
			FragmentSize:      cfg.Loader.FragmentSize,
			RequestsPerSecond: cfg.Loader.RequestsPerSecond,
			Burst:             cfg.Loader.Burst,
			Logger:            logger,
		}),
		sessions: make(map[string]*bridge.Bridge),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	router.Use(monitoring.Middleware(metrics))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/sessions", s.handleListSessions)
	router.GET("/inspect", s.handleInspect)

	s.router = router
	return s
}

// Run starts serving on the configured port. Blocks until the listener
// fails.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.logger.Info("listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears down every live session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := make([]*bridge.Bridge, 0, len(s.sessions))
	for _, b := range s.sessions {
		sessions = append(sessions, b)
	}
	s.sessions = make(map[string]*bridge.Bridge)
	s.mu.Unlock()

	for _, b := range sessions {
		b.Close()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": active,
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	s.mu.Lock()
	infos := make([]bridge.SessionInfo, 0, len(s.sessions))
	for _, b := range s.sessions {
		if info, ok := b.SessionInfo(); ok {
			infos = append(infos, info)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"sessions": infos})
}

// handleInspect upgrades the frontend connection, dials the requested
// target, and runs the bridge until either side goes away.
func (s *Server) handleInspect(c *gin.Context) {
	targetURL := c.Query("target")
	if targetURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target query parameter is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	s.metrics.WSConnections.Inc()
	defer s.metrics.WSConnections.Dec()

	frontend := ws.NewFrontendConn(conn, s.logger)

	target, err := ws.DialTarget(c.Request.Context(), targetURL, s.logger)
	if err != nil {
		s.logger.Warn("target dial failed",
			zap.String("target", targetURL),
			zap.Error(err),
		)
		return
	}
	defer target.Close()

	b, err := bridge.New(bridge.Config{
		Frontend:       frontend,
		Prefs:          prefs.NewMemStore(),
		Fetcher:        s.fetcher,
		Logger:         s.logger,
		Metrics:        s.metrics,
		MaxMessageSize: s.cfg.Transport.MaxMessageSize,
	})
	if err != nil {
		s.logger.Error("bridge setup failed", zap.Error(err))
		return
	}
	b.Show(target)

	info, _ := b.SessionInfo()
	s.mu.Lock()
	s.sessions[info.ID] = b
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, info.ID)
		s.mu.Unlock()
		b.Close()
	}()

	s.logger.Info("session started",
		zap.String("session_id", info.ID),
		zap.String("target", targetURL),
	)

	frontend.ReadLoop(b.HandleFrontendMessage)
}

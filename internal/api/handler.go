package api

import (
	"net/http"
	"time"

	"stake-guard/internal/bankroll"
	"stake-guard/internal/behavior"
	"stake-guard/internal/events"
	"stake-guard/internal/guard"
	"stake-guard/internal/ledger"
	"stake-guard/internal/monitor"
	"stake-guard/pkg/cache"
	"stake-guard/pkg/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server wires HTTP endpoints around the guard core.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Rules     *guard.Manager
	Ledger    *ledger.Store
	Behavior  *behavior.Tracker
	Bankroll  *bankroll.Manager
	Snapshots *cache.ShardedSnapshotCache
	Metrics   *monitor.GuardMetrics
	Presets   []guard.Preset
	Meta      SystemMeta

	// Clock and id generation are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Version  string
	Language string
}

func NewServer(bus *events.Bus, database *db.Database, rules *guard.Manager, store *ledger.Store, tracker *behavior.Tracker, bank *bankroll.Manager, metrics *monitor.GuardMetrics, presets []guard.Preset, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())        // Panic recovery (first)
	r.Use(RequestIDMiddleware()) // Request ID tracking
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Rules:     rules,
		Ledger:    store,
		Behavior:  tracker,
		Bankroll:  bank,
		Snapshots: cache.NewShardedSnapshotCache(),
		Metrics:   metrics,
		Presets:   presets,
		Meta:      meta,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/evaluate", s.evaluateBet)
		api.POST("/bets", s.recordBet)
		api.GET("/bets", s.getBets)

		api.GET("/rules", s.getRules)
		api.PUT("/rules", s.updateRules)
		api.POST("/rules/preset/:name", s.applyPreset)

		api.GET("/bankroll", s.getBankroll)
		api.PUT("/bankroll", s.updateBankroll)

		api.POST("/cooldown/clear", s.clearCooldown)

		api.GET("/status", s.getStatus)
		api.GET("/metrics", s.getMetrics)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

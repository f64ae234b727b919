package app

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/cache"
	"github.com/hypercore-one/bridge-monitor/internal/clients"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/db"
	"github.com/hypercore-one/bridge-monitor/internal/handlers"
	"github.com/hypercore-one/bridge-monitor/internal/middleware"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
	"github.com/hypercore-one/bridge-monitor/internal/router"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// NewLogger builds the process logger; LOG_LEVEL and LOG_FORMAT
// override the defaults (info, text).
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewRedisClient connects the Redis client.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Server holds the fully wired API server process.
type Server struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Cache     *cache.Service
	Hub       *services.StatusHub
	Scheduler *services.SchedulerService
	Router    *gin.Engine
}

// NewServer wires the API server: database, cache, services, poller
// and HTTP surface. Everything is constructed here and passed down;
// no package-level singletons.
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	gormDB, err := db.Connect(cfg.Database.DSN, db.APIPool(&cfg.Database))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}

	rdb := NewRedisClient(&cfg.Redis)
	cacheService := cache.NewService(rdb, logger)

	bridgeRepo := repository.NewBridgeRepository(gormDB)
	orchRepo := repository.NewOrchestratorRepository(gormDB)
	userRepo := repository.NewUserRepository(gormDB)

	statusTTL := time.Duration(cfg.Cache.StatusTTL) * time.Second
	statsTTL := time.Duration(cfg.Cache.StatsTTL) * time.Second
	userTTL := time.Duration(cfg.Cache.UserTTL) * time.Second

	hub := services.NewStatusHub(logger)

	orchClient := clients.NewOrchestratorRPCClient(
		time.Duration(cfg.Orchestrator.RPCTimeout)*time.Second, logger)
	poller := services.NewOrchestratorPollService(
		orchClient, orchRepo, cacheService, hub, &cfg.Orchestrator, statusTTL, logger)

	retention := time.Duration(cfg.Orchestrator.RetentionDays) * 24 * time.Hour
	scheduler := services.NewSchedulerService(poller, hub, orchRepo, retention, logger)

	authService := services.NewAuthService(userRepo, cacheService, &cfg.Auth, userTTL, logger)
	bridgeService := services.NewBridgeService(bridgeRepo, cacheService, logger)
	orchService := services.NewOrchestratorService(orchRepo, cacheService, &cfg.Orchestrator, statusTTL, logger)
	statsService := services.NewStatisticsService(bridgeRepo, orchRepo, cacheService, statsTTL, logger)

	limiter := middleware.NewRateLimiter(rdb, &cfg.RateLimit, logger)

	routes := router.Handlers{
		Auth:         handlers.NewAuthHandler(authService, logger),
		User:         handlers.NewUserHandler(authService, logger),
		Bridge:       handlers.NewBridgeHandler(bridgeService, logger),
		Orchestrator: handlers.NewOrchestratorHandler(orchService, logger),
		Statistics:   handlers.NewStatisticsHandler(statsService, logger),
		WebSocket:    handlers.NewWebSocketHandler(hub, authService, logger),
		Health:       handlers.NewHealthHandler(gormDB, rdb, cacheService),
	}

	engine := router.Setup(cfg, routes, authService, limiter, cacheService, logger)

	return &Server{
		Config:    cfg,
		Logger:    logger,
		DB:        gormDB,
		Redis:     rdb,
		Cache:     cacheService,
		Hub:       hub,
		Scheduler: scheduler,
		Router:    engine,
	}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
}

// Close releases the server's connections.
func (s *Server) Close() {
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = s.Redis.Close()
}

// Worker holds the wired bridge worker process.
type Worker struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	Sync   *services.BridgeSyncService
}

// NewWorker wires the bridge worker: a small database pool, the ledger
// client and the sync engine.
func NewWorker(cfg *config.Config, logger *logrus.Logger) (*Worker, error) {
	gormDB, err := db.Connect(cfg.Database.DSN, db.WorkerPool(&cfg.Database))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}

	rdb := NewRedisClient(&cfg.Redis)
	cacheService := cache.NewService(rdb, logger)

	ledger := clients.NewBridgeRPCClient(
		cfg.Bridge.RPCURL, time.Duration(cfg.Bridge.RPCTimeout)*time.Second, logger)
	bridgeRepo := repository.NewBridgeRepository(gormDB)
	syncService := services.NewBridgeSyncService(ledger, bridgeRepo, cacheService, &cfg.Bridge, logger)

	return &Worker{
		Config: cfg,
		Logger: logger,
		DB:     gormDB,
		Redis:  rdb,
		Sync:   syncService,
	}, nil
}

// Close releases the worker's connections.
func (w *Worker) Close() {
	if sqlDB, err := w.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = w.Redis.Close()
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/whisprlabs/whisprgate/internal/cluster"
	"github.com/whisprlabs/whisprgate/internal/config"
	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/handler"
	"github.com/whisprlabs/whisprgate/internal/middleware"
	"github.com/whisprlabs/whisprgate/internal/pkg/logger"
	"github.com/whisprlabs/whisprgate/internal/repository"
	"github.com/whisprlabs/whisprgate/internal/service"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	// 2. Initialize Persistence
	// Offset reservations (Redis > Memory)
	var registry cluster.OffsetRegistry
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			ttl := time.Duration(cfg.Redis.OffsetTTLSeconds) * time.Second
			registry = repository.NewRedisOffsetRegistry(redisClient, ttl)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if registry == nil {
		registry = cluster.NewMemoryRegistry()
	}

	// State persistence (Postgres > Memory)
	var (
		limitRepo service.LimitRepo
		swapRepo  service.SwapRepo
		eventRepo service.EventRepo
	)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			limitRepo = repository.NewPostgresLimitRepo(db)
			swapRepo = repository.NewPostgresSwapRepo(db)
			eventRepo = repository.NewPostgresEventRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, state will not survive restarts", "error", err)
		}
	}
	if limitRepo == nil {
		limitRepo = repository.NewMemoryLimitRepo()
		swapRepo = repository.NewMemorySwapRepo()
		eventRepo = nil // journal serves reads from its in-memory buffer
	}

	// 3. Initialize Core Services
	keys, err := clusterKeys(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cluster keypair: %v", err)
	}

	journal, err := service.NewEventJournal(cfg.Events.Dir, cfg.Events.BufferSize, eventRepo)
	if err != nil {
		log.Fatalf("Failed to initialize event journal: %v", err)
	}

	exec := cluster.NewExecutor(keys, registry, cfg.Cluster.QueueDepth)
	orch := service.NewOrchestrator(limitRepo, swapRepo, exec, registry, journal)
	if err := orch.Register(exec); err != nil {
		log.Fatalf("Failed to register swap circuit: %v", err)
	}
	exec.Start(cfg.Cluster.Workers)

	userManager := service.NewUserManager(cfg)

	// 4. Initialize Handlers
	limitHandler := handler.NewLimitHandler(orch)
	swapHandler := handler.NewSwapHandler(orch)
	eventHandler := handler.NewEventHandler(journal)
	clusterHandler := handler.NewClusterHandler(exec, orch)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "whisprgate"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Cluster key is public by definition
	r.GET("/v1/cluster/key", clusterHandler.PublicKey)

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, userManager))
	v1.Use(middleware.RateLimitMiddleware(userManager))
	{
		v1.POST("/limit", limitHandler.Store)
		v1.GET("/limit", limitHandler.Get)
		v1.POST("/swaps", swapHandler.Compute)
		v1.GET("/swaps", swapHandler.List)
		v1.GET("/swaps/:offset", swapHandler.Get)
		v1.GET("/events", eventHandler.List)
		v1.GET("/events/stream", eventHandler.Stream)
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.POST("/comp-defs/compute-swap", clusterHandler.InitCompDef)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 WhisprGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exec.Stop()
	journal.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// clusterKeys loads the cluster x25519 keypair from config, or generates an
// ephemeral one. Ephemeral keys mean ciphertexts do not survive restarts;
// fine for development, set cluster.private_key in production.
func clusterKeys(cfg *config.Config) (*crypto.KeyPair, error) {
	if cfg.Cluster.PrivateKey == "" {
		logger.Warn("cluster.private_key not set, generating ephemeral keypair")
		return crypto.GenerateKeyPair()
	}

	raw, err := hexutil.Decode(cfg.Cluster.PrivateKey)
	if err != nil {
		return nil, err
	}
	var priv [32]byte
	copy(priv[:], raw)
	return crypto.NewKeyPair(priv)
}

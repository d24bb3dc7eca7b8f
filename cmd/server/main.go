package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leasehub/internal/database"
	"leasehub/internal/router"
	"leasehub/internal/services"
	"leasehub/pkg/config"
	"leasehub/pkg/events"
	"leasehub/pkg/jwt"
	"leasehub/pkg/logger"
	"leasehub/pkg/queue"
	"leasehub/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting lease service...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseRedisQueue(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	if err := database.Migrate(database.GetDB()); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()

	// 产物存储
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		appLogger.Fatalf("Failed to initialize artifact storage: %v", err)
	}

	// 事件发布
	publisher, eventQueue, err := newPublisher(ctx, cfg)
	if err != nil {
		appLogger.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer publisher.Close()

	registry := services.NewRegistry(services.Options{
		DB:        database.GetDB(),
		Lease:     cfg.Lease,
		Store:     store,
		Publisher: publisher,
	})

	if cfg.Server.Mode == gin.DebugMode {
		if err := seedData(ctx, registry); err != nil {
			appLogger.Errorf("Failed to initialize seed data: %v", err)
		}
	}

	// 到期不续约调度器
	if cfg.Lease.ExpiryJobEnabled {
		if err := registry.Expiry.Start(); err != nil {
			appLogger.Errorf("Failed to start lease expiry scheduler: %v", err)
			// 不影响主服务启动
		}
		defer registry.Expiry.Stop()
	}

	gin.SetMode(cfg.Server.Mode)
	r := router.SetupRouter(router.Deps{
		Services:   registry,
		JWTManager: jwt.GetJWTManager(),
		CORS:       cfg.CORS,
		Queue:      eventQueue,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}

// newPublisher 按配置选择事件发布方式；只有 redis 模式提供 WebSocket 推送
func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, *queue.RedisQueue, error) {
	switch strings.ToLower(cfg.Events.Provider) {
	case "redis":
		q := database.GetRedisQueue()
		if err := q.Ping(ctx); err != nil {
			logger.GetLogger().Warnf("Redis不可用，事件将无法投递: %v", err)
		}
		return events.NewRedisPublisher(q), q, nil
	case "pubsub":
		p, err := events.NewPubSubPublisher(ctx, cfg.Events.PubSubProjectID, cfg.Events.PubSubTopic)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	default:
		return events.NopPublisher{}, nil, nil
	}
}

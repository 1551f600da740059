package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "capmail/backend/internal/auth/jwt"
	"capmail/backend/internal/cache"
	"capmail/backend/internal/config"
	"capmail/backend/internal/domain"
	"capmail/backend/internal/health"
	"capmail/backend/internal/logger"
	"capmail/backend/internal/monitoring"
	"capmail/backend/internal/service"
	"capmail/backend/internal/storage"
	"capmail/backend/internal/storage/memory"
	"capmail/backend/internal/storage/redis"
	sqlstore "capmail/backend/internal/storage/sql"
	httptransport "capmail/backend/internal/transport/http"
)

// main 启动临时邮箱 HTTP API 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting capmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("prefix", cfg.Mailbox.Prefix),
		zap.Strings("domains", cfg.Mailbox.Domains),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层
	store, err := initializeStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0)) // 512MB
	alertManager.AddRule(monitoring.DependencyDownRule("database", store, 5*time.Second))

	// 缓存：优先 Redis，否则在需要时使用进程内缓存
	var sharedCache storage.Cache
	if cfg.Redis.Address != "" {
		client, err := redis.New(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()

		sharedCache = redis.NewCache(client)
		healthChecker.AddReadinessCheck("redis", client)
		alertManager.AddRule(monitoring.DependencyDownRule("redis", client, 5*time.Second))
	} else if cfg.RateLimit.PerIP > 0 || cfg.Stats.CacheTTL > 0 {
		local := cache.NewLocalCache(cfg.Stats.CacheTTL)
		defer local.Close()

		sharedCache = local
		log.Info("using in-process cache")
	}

	// 初始化服务层
	tokens := jwtpkg.NewManager(cfg.Token.Secret, cfg.Token.Expiry)
	policy := domain.NewPrefixPolicy(cfg.Mailbox.Prefix)

	directory := service.NewDirectory(store, policy, cfg.Mailbox.Domains, tokens, log, metrics)
	mailboxService := service.NewMailboxService(store, log, metrics)
	autoReplyService := service.NewAutoReplyService(store, directory)

	var adminOpts []service.AdminOption
	if sharedCache != nil && cfg.Stats.CacheTTL > 0 {
		adminOpts = append(adminOpts, service.WithStatisticsCache(sharedCache, cfg.Stats.CacheTTL))
	}
	adminService := service.NewAdminService(store, directory, mailboxService, log, metrics, adminOpts...)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		Directory:        directory,
		MailboxService:   mailboxService,
		AutoReplyService: autoReplyService,
		AdminService:     adminService,
		Tokens:           tokens,
		Cache:            sharedCache,
		Health:           healthChecker,
		Metrics:          metrics,
		Logger:           log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting alert monitoring", zap.Duration("interval", time.Minute))
		alertManager.StartMonitoring(groupCtx, time.Minute)
		return nil
	})

	// 优雅关闭
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
		return
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储，未配置数据库时使用内存存储
func initializeStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" {
		log.Warn("using memory storage, data is lost on restart")
		return memory.NewStore(), nil
	}

	log.Info("initializing database storage", zap.String("database_type", cfg.Database.Type))

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := sqlstore.NewStore(initCtx, sqlstore.Options{
		Driver:          cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Database.Type, err)
	}

	log.Info("database storage initialized successfully", zap.String("database_type", store.Driver()))
	return store, nil
}

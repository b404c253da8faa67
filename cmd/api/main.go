package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"catalog/internal/captcha"
	"catalog/internal/config"
	"catalog/internal/httpapi"
	"catalog/internal/httpapi/handlers"
	"catalog/internal/orchestrator"
	"catalog/internal/pkg/logger"
	"catalog/internal/pkg/shutdown"
	"catalog/internal/repositories"
	"catalog/internal/storage"
	"catalog/internal/validate"
	"catalog/internal/worker/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "catalog-api",
		AddSource:   cfg.Log.AddSource,
	})

	if err := cfg.ValidateAPI(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	log.Info("starting catalog API", "port", cfg.HTTP.Port)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Connect to PostgreSQL
	pool, err := repositories.Open(ctx, repositories.PoolConfig{
		DSN:         cfg.Database.URL,
		AppName:     "catalog-api",
		MaxConns:    int32(cfg.Database.MaxConns),
		DialTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

	if err := repositories.Migrate(ctx, pool); err != nil {
		log.LogFatal("failed to apply schema", err)
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	// Initialize storage provider
	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	q := queue.NewRedisQueue(rdb, cfg.Queue.Name, queue.Options{
		MaxRetries:    cfg.Queue.MaxRetries,
		Backoff:       cfg.Queue.Backoff,
		DeadLetterMax: cfg.Queue.DeadLetterMax,
	})

	verifier := captcha.NewHTTPClient(captcha.Config{
		VerifyURL: cfg.Captcha.VerifyURL,
		Secret:    cfg.Captcha.Secret,
		Timeout:   cfg.Captcha.Timeout,
	})

	svc := orchestrator.NewService(orchestrator.Deps{
		Validator: validate.New(verifier, cfg.Captcha.MinScore, cfg.Captcha.Action, log),
		Products:  repositories.NewProductRepository(pool),
		Images:    repositories.NewImageRepository(pool, sp),
		Queue:     queue.NewRenderQueue(q),
		History:   repositories.NewHistoryRepository(pool),
		Log:       log,
		Location:  cfg.Location(),
	})

	h := handlers.New(handlers.Deps{
		Downloads: svc,
		DB:        pool,
		RDB:       rdb,
		SP:        sp,
		Log:       log,
		Location:  cfg.Location(),
	})
	router := httpapi.NewRouter(h, httpapi.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		DownloadRPS:    cfg.RateLimit.RPS,
		DownloadBurst:  cfg.RateLimit.Burst,
		AdminToken:     cfg.HTTP.AdminToken,
		TrustProxy:     cfg.HTTP.TrustProxy,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

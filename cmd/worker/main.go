package main

import (
	"context"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"catalog/internal/assets"
	"catalog/internal/config"
	"catalog/internal/delivery"
	"catalog/internal/layout"
	"catalog/internal/pkg/logger"
	"catalog/internal/pkg/shutdown"
	"catalog/internal/render"
	"catalog/internal/repositories"
	"catalog/internal/worker"
	"catalog/internal/worker/processor"
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
		ServiceName: "catalog-worker",
		AddSource:   cfg.Log.AddSource,
	})

	if err := cfg.ValidateWorker(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()
	// Leaves room for the longest job to finish after a stop signal.
	shutdownMgr := shutdown.NewManager(log, cfg.Queue.JobTimeout+30*time.Second)

	pool, err := repositories.Open(ctx, repositories.PoolConfig{
		DSN:         cfg.Database.URL,
		AppName:     "catalog-worker",
		MaxConns:    int32(cfg.Database.MaxConns),
		DialTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

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

	transport, err := delivery.NewSMTPTransport(delivery.SMTPConfig{
		Host:      cfg.Mail.Host,
		Port:      cfg.Mail.Port,
		Username:  cfg.Mail.Username,
		Password:  cfg.Mail.Password,
		PoolSize:  cfg.Mail.PoolSize,
		Timeout:   cfg.Mail.Timeout,
		PlainText: cfg.Mail.PlainText,
	})
	if err != nil {
		log.LogFatal("failed to create SMTP transport", err)
	}
	shutdownMgr.Register("smtp", transport.Close)

	lib := assets.NewLibrary(cfg.Render.AssetDir)
	if err := lib.Check(layout.LogoAsset); err != nil {
		log.LogFatal("asset directory unusable", err)
	}

	renderer := render.New(render.Config{
		ArtifactRoot: cfg.Render.ArtifactRoot,
		FontDir:      cfg.Render.FontDir,
		Scale:        cfg.Render.Scale,
		Pdftoppm:     cfg.Render.Pdftoppm,
	}, nil, log)
	if err := renderer.Prepare(); err != nil {
		log.LogFatal("failed to prepare artifact directories", err)
	}

	params := layout.DefaultParams()
	params.WideTableColumns = cfg.Render.WideTableColumns

	proc := processor.New(processor.Deps{
		Layout:   layout.NewBuilder(lib, params),
		Renderer: renderer,
		Mailer: delivery.NewService(transport, delivery.Config{
			From:     cfg.Mail.From,
			AlertTo:  cfg.Mail.AlertTo,
			LogoPath: lib.Path(layout.LogoAsset),
		}, log),
		History: repositories.NewHistoryRepository(pool),
		Log:     log,
	})

	q := queue.NewRedisQueue(rdb, cfg.Queue.Name, queue.Options{
		MaxRetries:    cfg.Queue.MaxRetries,
		Backoff:       cfg.Queue.Backoff,
		DeadLetterMax: cfg.Queue.DeadLetterMax,
	})

	name := cfg.Queue.WorkerName
	if name == "" {
		name, _ = os.Hostname()
		log.Warn("WORKER_NAME not set, using hostname; jobs abandoned under another hostname are not recovered", "name", name)
	}

	done := make(chan struct{})
	// Registered last so it stops first. Stopping ends Reserve only; the
	// job in flight runs to completion before the mail pool, Redis and
	// Postgres are closed.
	shutdownMgr.Register("worker", func(ctx context.Context) error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		defer close(done)
		err := worker.Run(shutdownMgr.Context(), worker.Deps{
			Queue:           q,
			Processor:       proc,
			Log:             log,
			Name:            name,
			Concurrency:     cfg.Queue.Concurrency,
			PopTimeout:      cfg.Queue.PopTimeout,
			PromoteInterval: cfg.Queue.PromoteInterval,
			JobTimeout:      cfg.Queue.JobTimeout,
		})
		if err != nil {
			log.Error("worker stopped with error", "error", err.Error())
		}
	}()

	shutdownMgr.Wait()
}

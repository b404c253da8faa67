package handlers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog/internal/models"
	"catalog/internal/orchestrator"
	"catalog/internal/pkg/logger"
	"catalog/internal/ports"
)

// Downloads is the request side of the datasheet pipeline.
type Downloads interface {
	RequestDownload(ctx context.Context, req orchestrator.DownloadRequest) (orchestrator.DownloadResponse, error)
	ListHistory(ctx context.Context, f models.HistoryFilter) ([]models.DownloadHistoryRecord, error)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type Deps struct {
	Downloads Downloads
	DB        Pinger
	RDB       RedisPinger
	SP        ports.StorageProvider
	Log       *logger.Logger
	// Location is used for times in exported files. Nil means UTC.
	Location *time.Location
}

type Handler struct {
	downloads Downloads
	db        Pinger
	rdb       RedisPinger
	sp        ports.StorageProvider
	log       *logger.Logger
	loc       *time.Location
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		downloads: d.Downloads,
		db:        d.DB,
		rdb:       d.RDB,
		sp:        d.SP,
		log:       log.WithComponent("http"),
		loc:       d.Location,
	}
}

// Log returns the handler logger, used by WrapHandler.
func (h *Handler) Log() *logger.Logger { return h.log }

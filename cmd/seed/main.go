// Command seed loads products from a JSON file into the catalog database.
//
// Usage:
//
//	seed -file products.json
//
// Each entry may name an "image" path, relative to the JSON file, that is
// uploaded to the configured storage provider as the primary image.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"catalog/internal/config"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
	"catalog/internal/repositories"
	"catalog/internal/storage"
)

type seedProduct struct {
	models.Product
	Image string `json:"image"`
}

func main() {
	file := flag.String("file", "products.json", "path to the products JSON file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "catalog-seed",
	})
	if err := cfg.ValidateSeed(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	entries, err := loadSeed(*file)
	if err != nil {
		log.LogFatal("failed to read seed file", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := repositories.Open(ctx, repositories.PoolConfig{
		DSN:         cfg.Database.URL,
		AppName:     "catalog-seed",
		MaxConns:    2,
		DialTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	if err := repositories.Migrate(ctx, pool); err != nil {
		log.LogFatal("failed to apply schema", err)
	}

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	products := repositories.NewProductRepository(pool)
	images := repositories.NewImageRepository(pool, sp)
	base := filepath.Dir(*file)

	var failed int
	for _, e := range entries {
		p := e.Product
		if err := products.Create(ctx, &p); err != nil {
			failed++
			log.LogError(ctx, "product not created", err, "name", p.ComercialName)
			continue
		}
		plog := log.WithProductID(p.ID)
		plog.Info("product created", "name", p.ComercialName)

		if e.Image == "" {
			continue
		}
		if err := uploadImage(ctx, images, p.ID, filepath.Join(base, e.Image)); err != nil {
			failed++
			plog.LogError(ctx, "image not uploaded", err, "image", e.Image)
			continue
		}
		plog.Info("primary image uploaded", "image", e.Image)
	}

	if failed > 0 {
		log.Error("seed finished with failures", "total", len(entries), "failed", failed)
		os.Exit(1)
	}
	log.Info("seed finished", "total", len(entries))
}

func loadSeed(path string) ([]seedProduct, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "seed.load", "read file")
	}
	var entries []seedProduct
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "seed.load", "invalid JSON")
	}
	for i, e := range entries {
		if e.ComercialName == "" {
			return nil, errors.Newf(errors.CodeValidation, "entry %d: comercial_name is required", i)
		}
	}
	return entries, nil
}

func uploadImage(ctx context.Context, images *repositories.ImageRepository, productID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "seed.image", fmt.Sprintf("open %s", path))
	}
	defer f.Close()

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	_, err = images.PutPrimary(ctx, productID, ct, f)
	return err
}

package repositories

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog/internal/httpkit"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/ports"
)

// maxImageBytes bounds what GetPrimary reads into memory.
const maxImageBytes = 10 << 20

// ImageRepository keeps image metadata in PostgreSQL and bytes in the
// configured storage provider.
type ImageRepository struct {
	db *pgxpool.Pool
	sp ports.StorageProvider
}

func NewImageRepository(db *pgxpool.Pool, sp ports.StorageProvider) *ImageRepository {
	return &ImageRepository{db: db, sp: sp}
}

// GetPrimary returns the primary image with its bytes. A product without
// one yields NOT_FOUND.
func (r *ImageRepository) GetPrimary(ctx context.Context, productID int64) (*models.ProductImage, error) {
	img := models.ProductImage{ProductID: productID}
	err := r.db.QueryRow(ctx, `
		SELECT object_key, content_type
		FROM product_images
		WHERE product_id = $1 AND is_primary
	`, productID).Scan(&img.ObjectKey, &img.ContentType)
	if httpkit.IsNoRows(err) {
		return nil, errors.NotFound("product_image", strconv.FormatInt(productID, 10))
	}
	if err != nil {
		return nil, errors.Wrap(err, "images.GetPrimary", "load image metadata")
	}

	rc, ct, _, err := r.sp.GetObject(ctx, img.ObjectKey)
	if err != nil {
		return nil, errors.Wrap(err, "images.GetPrimary", "open image")
	}
	defer rc.Close()

	img.Data, err = io.ReadAll(io.LimitReader(rc, maxImageBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "images.GetPrimary", "read image")
	}
	if len(img.Data) > maxImageBytes {
		return nil, errors.Newf(errors.CodeValidation, "image of product %d exceeds %d bytes", productID, maxImageBytes)
	}
	if img.ContentType == "" {
		img.ContentType = ct
	}
	return &img, nil
}

// PutPrimary uploads data and makes it the primary image of the product,
// replacing any previous primary row.
func (r *ImageRepository) PutPrimary(ctx context.Context, productID int64, contentType string, data io.Reader) (*models.ProductImage, error) {
	ext := ".bin"
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[0]
	}
	key := fmt.Sprintf("products/%d/%s%s", productID, uuid.NewString(), ext)

	out, err := r.sp.PutObject(ctx, ports.PutObjectInput{ObjectKey: key, ContentType: contentType, Reader: data})
	if err != nil {
		return nil, errors.Wrap(err, "images.PutPrimary", "upload image")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "images.PutPrimary", "begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE product_images SET is_primary = false WHERE product_id = $1 AND is_primary`, productID); err != nil {
		return nil, errors.Wrap(err, "images.PutPrimary", "demote previous image")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO product_images (product_id, object_key, content_type, is_primary)
		VALUES ($1, $2, $3, true)
	`, productID, out.ObjectKey, contentType)
	if err != nil {
		return nil, errors.Wrap(err, "images.PutPrimary", "insert image")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "images.PutPrimary", "commit")
	}

	return &models.ProductImage{ProductID: productID, ObjectKey: out.ObjectKey, ContentType: contentType}, nil
}

package repositories

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// HistoryRepository is the append-only download log.
type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Insert(ctx context.Context, rec *models.DownloadHistoryRecord) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO download_history
			(name, email, company, phone_number, product_name, product_id, status, job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		rec.Name, rec.Email, rec.Company, rec.PhoneNumber,
		rec.ProductName, rec.ProductID, rec.Status, rec.JobID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "history.Insert", "insert download history")
	}
	return nil
}

// List returns history newest first. Search matches name, email, company
// and product name ignoring case and accents.
func (r *HistoryRepository) List(ctx context.Context, f models.HistoryFilter) ([]models.DownloadHistoryRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, company, phone_number, product_name, product_id,
		       status, job_id, created_at
		FROM download_history
		WHERE $1 = ''
		   OR unaccent(name) ILIKE unaccent($2)
		   OR email ILIKE $2
		   OR unaccent(company) ILIKE unaccent($2)
		   OR unaccent(product_name) ILIKE unaccent($2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, strings.TrimSpace(f.Search), likePattern(f.Search), limit)
	if err != nil {
		return nil, errors.Wrap(err, "history.List", "query download history")
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.DownloadHistoryRecord])
	if err != nil {
		return nil, errors.Wrap(err, "history.List", "scan download history")
	}
	return out, nil
}

func likePattern(search string) string {
	s := strings.TrimSpace(search)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

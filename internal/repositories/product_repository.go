package repositories

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog/internal/httpkit"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

type ProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID loads a product with its segments and topics in stored order.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRow(ctx, `
		SELECT id, comercial_name, chemical_name, function, application,
		       specification_table, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.ComercialName,
		&p.ChemicalName,
		&p.Function,
		&p.Application,
		&p.SpecificationTable,
		&p.CreatedAt,
	)
	if httpkit.IsNoRows(err) {
		return nil, errors.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, errors.Wrap(err, "products.GetByID", "load product")
	}

	rows, err := r.db.Query(ctx, `
		SELECT k.key
		FROM product_segments ps
		JOIN catalog_keys k ON k.id = ps.key_id
		WHERE ps.product_id = $1
		ORDER BY ps.position
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "products.GetByID", "load segments")
	}
	p.Segments, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "products.GetByID", "scan segments")
	}

	rows, err = r.db.Query(ctx, `
		SELECT k.name, pt.value
		FROM product_topics pt
		JOIN catalog_keys k ON k.id = pt.key_id
		WHERE pt.product_id = $1
		ORDER BY pt.position
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "products.GetByID", "load topics")
	}
	p.Topics, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Topic, error) {
		var t models.Topic
		err := row.Scan(&t.Key, &t.Value)
		return t, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "products.GetByID", "scan topics")
	}
	return &p, nil
}

// Create inserts p with its relations in one transaction. Segment and topic
// names go through the key registry so equal names share one key.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "products.Create", "begin transaction")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO products (comercial_name, chemical_name, function, application, specification_table)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.ComercialName, p.ChemicalName, p.Function, p.Application, p.SpecificationTable).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "products.Create", "insert product")
	}

	keys := NewKeyRegistry(tx)
	segments := make([]string, 0, len(p.Segments))
	for i, name := range p.Segments {
		k, err := keys.Upsert(ctx, models.KeyKindSegment, name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO product_segments (product_id, key_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, p.ID, k.ID, i)
		if err != nil {
			return errors.Wrap(err, "products.Create", "insert segment")
		}
		segments = append(segments, k.Key)
	}

	for i, t := range p.Topics {
		k, err := keys.Upsert(ctx, models.KeyKindTopic, t.Key)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO product_topics (product_id, key_id, value, position)
			VALUES ($1, $2, $3, $4)
		`, p.ID, k.ID, t.Value, i)
		if err != nil {
			if httpkit.IsUniqueViolation(err) {
				return errors.Newf(errors.CodeConflict, "duplicate topic %q", t.Key).WithField("topic", t.Key)
			}
			return errors.Wrap(err, "products.Create", "insert topic")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "products.Create", "commit")
	}
	p.Segments = segments
	return nil
}

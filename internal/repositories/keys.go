package repositories

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

// NormalizeKey turns a display name into its dictionary key: accents are
// stripped, letters lowercased and every run of other characters becomes
// one underscore. "Tintas e Resinas" -> "tintas_e_resinas".
func NormalizeKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}

	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(plain) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			sep = false
			continue
		}
		sep = true
	}
	return b.String()
}

// KeyRegistry is the shared dictionary of segment and topic keys.
type KeyRegistry struct {
	db Querier
}

func NewKeyRegistry(db Querier) *KeyRegistry {
	return &KeyRegistry{db: db}
}

// Upsert returns the entry for (kind, NormalizeKey(displayName)), creating
// it when missing. The first display name stored for a key wins.
func (r *KeyRegistry) Upsert(ctx context.Context, kind, displayName string) (models.CatalogKey, error) {
	key := NormalizeKey(displayName)
	if key == "" {
		return models.CatalogKey{}, errors.ValidationField("name", "key name is empty")
	}

	k := models.CatalogKey{Kind: kind, Key: key}
	err := r.db.QueryRow(ctx, `
		INSERT INTO catalog_keys (kind, key, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, key) DO UPDATE SET kind = EXCLUDED.kind
		RETURNING id, name
	`, kind, key, strings.TrimSpace(displayName)).Scan(&k.ID, &k.Name)
	if err != nil {
		return models.CatalogKey{}, errors.Wrap(err, "keys.Upsert", "upsert catalog key")
	}
	return k, nil
}

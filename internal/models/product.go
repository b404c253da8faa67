package models

import "time"

// Product is the persisted catalog entry with the relations the datasheet needs.
type Product struct {
	ID            int64    `json:"id"`
	ComercialName string   `json:"comercial_name"`
	ChemicalName  string   `json:"chemical_name"`
	Function      string   `json:"function"`
	Application   string   `json:"application"`
	Segments      []string `json:"segments"`
	Topics        []Topic  `json:"topics"`
	// SpecificationTable is tab separated, one row per line, header first.
	SpecificationTable string    `json:"specification_table"`
	CreatedAt          time.Time `json:"created_at"`
}

// ProductImage is the binary primary image of a product.
type ProductImage struct {
	ProductID   int64
	ObjectKey   string
	ContentType string
	Data        []byte
}

// CatalogKey is an entry of the shared key dictionary (segments, topic labels).
type CatalogKey struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

const (
	KeyKindSegment = "segment"
	KeyKindTopic   = "topic"
)

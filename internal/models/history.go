package models

import "time"

const (
	HistoryDelivered      = "delivered"
	HistoryDeliveryFailed = "delivery_failed"
)

// DownloadHistoryRecord is one append-only row per rendered datasheet.
type DownloadHistoryRecord struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Company     string    `json:"company"`
	PhoneNumber string    `json:"phone_number"`
	ProductName string    `json:"product_name"`
	ProductID   int64     `json:"product_id"`
	Status      string    `json:"status"`
	JobID       string    `json:"job_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	Search string
	Limit  int
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Expense represents a persisted expense record.
type Expense struct {
	ID           uuid.UUID  `json:"id"`
	ReceiptJobID *uuid.UUID `json:"receipt_job_id,omitempty"`
	CategoryID   uuid.UUID  `json:"category_id"`
	Amount       float64    `json:"amount"`
	Vendor       string     `json:"vendor"`
	Description  string     `json:"description"`
	Date         string     `json:"date"` // YYYY-MM-DD
	Tags         []string   `json:"tags"`
	CreatedAt    time.Time  `json:"created_at"`
}

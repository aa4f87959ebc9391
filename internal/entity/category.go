package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/constants"
)

// Category represents a category for data transfer between layers.
type Category struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Color     string                 `json:"color"`
	Icon      string                 `json:"icon"`
	Type      constants.CategoryType `json:"type"`
	CreatedAt time.Time              `json:"created_at"`
}

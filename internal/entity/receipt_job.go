package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/constants"
)

// ReceiptJob represents one ingestion attempt for data transfer between layers.
type ReceiptJob struct {
	ID                 uuid.UUID           `json:"id"`
	SourcePath         string              `json:"source_path"`
	OriginalName       string              `json:"original_name"`
	ContentHash        string              `json:"content_hash"`
	Status             constants.JobStatus `json:"status"`
	RawText            *string             `json:"raw_text,omitempty"`
	ExtractedData      *ExtractedFields    `json:"extracted_data,omitempty"`
	ProcessedImagePath *string             `json:"processed_image_path,omitempty"`
	Strategy           *string             `json:"strategy,omitempty"`
	Confidence         *float64            `json:"confidence,omitempty"`
	ErrorMessage       *string             `json:"error_message,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
}

package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/expense-tracker/internal/core"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one file to be run through the pipeline.
type Job struct {
	Path        string    `json:"path"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// PipelineProcessor is the part of core.Processor the workers need.
type PipelineProcessor interface {
	ProcessReceipt(ctx context.Context, filePath string) (*core.Result, error)
}

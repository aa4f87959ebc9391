package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core/extract"
	"github.com/joseph-ayodele/expense-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/expense-tracker/internal/core/validate"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
	"github.com/joseph-ayodele/expense-tracker/internal/ingest"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
	"github.com/joseph-ayodele/expense-tracker/internal/services/expense"
)

// TextExtractor turns a stored receipt into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

// FieldExtractor picks a strategy once per job and runs it.
type FieldExtractor interface {
	SelectStrategy(ctx context.Context) extract.Strategy
	Extract(ctx context.Context, text string, strategy extract.Strategy) (entity.ExtractedFields, extract.Outcome)
}

// ExpenseMaterializer creates the expense row for a completed job and undoes
// it when the job cannot be completed.
type ExpenseMaterializer interface {
	Materialize(ctx context.Context, jobID uuid.UUID, fields entity.ExtractedFields) (expense.Outcome, error)
	Revert(ctx context.Context, e *entity.Expense) error
}

// Result is what ProcessReceipt hands back to its caller.
type Result struct {
	Job        *entity.ReceiptJob
	Fields     entity.ExtractedFields
	OCR        ocr.Result
	Strategy   string
	Expense    *entity.Expense
	Skipped    bool
	SkipReason string
}

// Processor runs one receipt through the whole pipeline.
type Processor struct {
	logger         *slog.Logger
	text           TextExtractor
	fields         FieldExtractor
	expenses       ExpenseMaterializer
	jobs           repository.ReceiptJobRepository
	store          *ingest.Store
	maxUploadBytes int64
}

func NewProcessor(
	logger *slog.Logger,
	text TextExtractor,
	fields FieldExtractor,
	expenses ExpenseMaterializer,
	jobs repository.ReceiptJobRepository,
	store *ingest.Store,
	maxUploadBytes int64,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:         logger,
		text:           text,
		fields:         fields,
		expenses:       expenses,
		jobs:           jobs,
		store:          store,
		maxUploadBytes: maxUploadBytes,
	}
}

// ProcessReceipt validates and stores the file, then runs OCR, extraction,
// normalization and expense creation. Input errors are returned before a job
// exists. Once a job exists it always ends completed or failed; on failure
// the returned Result carries the failed job alongside the error.
func (p *Processor) ProcessReceipt(ctx context.Context, filePath string) (*Result, error) {
	info, err := ingest.Validate(filePath, p.maxUploadBytes)
	if err != nil {
		p.logger.Warn("processor.input.rejected", "path", filePath, "error", err)
		return nil, err
	}

	jobID := uuid.New()
	logger := p.logger.With("job_id", jobID.String())
	ctx = common.WithLogger(common.WithJobID(ctx, jobID.String()), logger)
	start := time.Now()

	stored, err := p.store.Save(ctx, jobID, info)
	if err != nil {
		logger.Error("processor.store.failed", "path", info.Path, "error", err)
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	job, err := p.jobs.Create(ctx, repository.CreateReceiptJobRequest{
		ID:           jobID,
		SourcePath:   stored.Path,
		OriginalName: info.Name,
		ContentHash:  stored.HashHex,
	})
	if err != nil {
		logger.Error("processor.job.create_failed", "error", err)
		return nil, fmt.Errorf("create receipt job: %w", err)
	}
	logger.Info("processor.job.accepted",
		"original_name", info.Name,
		"format", info.Format,
		"bytes", info.Size,
		"content_hash", stored.HashHex,
	)

	if err := p.jobs.MarkProcessing(ctx, jobID); err != nil {
		return p.fail(ctx, jobID, "start", err)
	}

	res, err := p.run(ctx, job, stored.Path)
	if err != nil {
		return p.fail(ctx, jobID, res.stage, err)
	}

	final, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("reload receipt job: %w", err)
	}
	res.out.Job = final
	logger.Info("processor.job.completed",
		"strategy", res.out.Strategy,
		"confidence", res.out.Fields.Confidence,
		"expense_created", res.out.Expense != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &res.out, nil
}

type runResult struct {
	out   Result
	stage string
}

// run executes the fixed stage order. It checks for cancellation before each
// blocking stage.
func (p *Processor) run(ctx context.Context, job *entity.ReceiptJob, path string) (runResult, error) {
	logger := common.LoggerFromContext(ctx, p.logger)
	var r runResult

	r.stage = "ocr"
	if err := ctx.Err(); err != nil {
		return r, err
	}
	ocrStart := time.Now()
	text, err := p.text.Extract(ctx, path)
	if err != nil {
		logger.Error("processor.ocr.failed", "error", err)
		return r, err
	}
	r.out.OCR = text
	logger.Info("processor.ocr.ok",
		"method", text.Method,
		"pages", text.Pages,
		"ocr_confidence", text.Confidence,
		"quality", text.Quality.Score,
		"chars", len(text.Text),
		"elapsed_ms", time.Since(ocrStart).Milliseconds(),
	)

	r.stage = "extract"
	if err := ctx.Err(); err != nil {
		return r, err
	}
	strategy := p.fields.SelectStrategy(ctx)
	raw, outcome := p.fields.Extract(ctx, text.Text, strategy)
	r.out.Strategy = outcome.Label()

	r.stage = "validate"
	fields := validate.Normalize(raw)
	r.out.Fields = fields
	logger.Info("processor.fields.normalized", "strategy", r.out.Strategy, "summary", validate.Describe(fields))

	r.stage = "materialize"
	if err := ctx.Err(); err != nil {
		return r, err
	}
	mat, err := p.expenses.Materialize(ctx, job.ID, fields)
	if err != nil {
		logger.Error("processor.expense.failed", "error", err)
		return r, err
	}
	r.out.Expense, r.out.Skipped, r.out.SkipReason = mat.Expense, mat.Skipped, mat.SkipReason

	r.stage = "complete"
	processed := text.ProcessedImagePath
	if processed == "" {
		processed = path
	}
	if err := p.jobs.Complete(ctx, job.ID, repository.CompleteReceiptJobRequest{
		RawText:            text.Text,
		ExtractedData:      fields,
		ProcessedImagePath: processed,
		Strategy:           r.out.Strategy,
	}); err != nil {
		logger.Error("processor.job.complete_failed", "error", err)
		if r.out.Expense != nil {
			// the job ends failed, so its expense must not outlive it
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if rerr := p.expenses.Revert(wctx, r.out.Expense); rerr != nil {
				return r, errors.Join(err, rerr)
			}
			r.out.Expense = nil
		}
		return r, err
	}
	return r, nil
}

// fail records the error on the job. The write ignores cancellation of ctx so
// a cancelled job still reaches its terminal state.
func (p *Processor) fail(ctx context.Context, jobID uuid.UUID, stage string, cause error) (*Result, error) {
	logger := common.LoggerFromContext(ctx, p.logger)
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	msg := stage + ": " + cause.Error()
	if err := p.jobs.Fail(wctx, jobID, msg); err != nil {
		logger.Error("processor.job.fail_write_failed", "stage", stage, "error", err)
		return nil, errors.Join(cause, err)
	}
	logger.Warn("processor.job.failed", "stage", stage, "error", cause)

	job, err := p.jobs.GetByID(wctx, jobID)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return &Result{Job: job}, fmt.Errorf("process receipt %s: %s: %w", jobID, stage, cause)
}

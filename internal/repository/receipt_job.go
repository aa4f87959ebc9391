package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

// CreateReceiptJobRequest wraps parameters for accepting a file into the pipeline.
type CreateReceiptJobRequest struct {
	ID           uuid.UUID
	SourcePath   string
	OriginalName string
	ContentHash  string
}

// CompleteReceiptJobRequest carries the results written once at completion.
type CompleteReceiptJobRequest struct {
	RawText            string
	ExtractedData      entity.ExtractedFields
	ProcessedImagePath string
	Strategy           string
}

// ListReceiptJobsFilter narrows List. Zero values mean no filter.
type ListReceiptJobsFilter struct {
	Status constants.JobStatus
	Limit  int
}

type ReceiptJobRepository interface {
	Create(ctx context.Context, req CreateReceiptJobRequest) (*entity.ReceiptJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, req CompleteReceiptJobRequest) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptJob, error)
	List(ctx context.Context, filter ListReceiptJobsFilter) ([]*entity.ReceiptJob, error)
}

type receiptJobRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptJobRepository(db *DB, logger *slog.Logger) ReceiptJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptJobRepository{db: db, logger: logger}
}

type receiptJobRow struct {
	ID                 string          `sql:"id"`
	SourcePath         string          `sql:"source_path"`
	OriginalName       string          `sql:"original_name"`
	ContentHash        string          `sql:"content_hash"`
	Status             string          `sql:"status"`
	RawText            sql.NullString  `sql:"raw_text"`
	ExtractedData      sql.NullString  `sql:"extracted_data"`
	ProcessedImagePath sql.NullString  `sql:"processed_image_path"`
	Strategy           sql.NullString  `sql:"strategy"`
	Confidence         sql.NullFloat64 `sql:"confidence"`
	ErrorMessage       sql.NullString  `sql:"error_message"`
	CreatedAt          sql.NullTime    `sql:"created_at"`
	UpdatedAt          sql.NullTime    `sql:"updated_at"`
	CompletedAt        sql.NullTime    `sql:"completed_at"`
}

var receiptJobColumns = []string{
	"id", "source_path", "original_name", "content_hash", "status",
	"raw_text", "extracted_data", "processed_image_path", "strategy", "confidence",
	"error_message", "created_at", "updated_at", "completed_at",
}

func (r *receiptJobRepository) Create(ctx context.Context, req CreateReceiptJobRequest) (*entity.ReceiptJob, error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	q, args := r.db.builder().Insert(tableReceiptJobs).
		Columns("id", "source_path", "original_name", "content_hash", "status", "created_at", "updated_at").
		Values(id.String(), req.SourcePath, req.OriginalName, req.ContentHash, string(constants.JobStatusPending), now, now).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("receipt_job create failed", "job_id", id, "error", err)
		return nil, fmt.Errorf("%w: create receipt job: %v", common.ErrDatabase, err)
	}
	r.logger.Info("receipt_job created", "job_id", id, "source_path", req.SourcePath)
	return &entity.ReceiptJob{
		ID:           id,
		SourcePath:   req.SourcePath,
		OriginalName: req.OriginalName,
		ContentHash:  req.ContentHash,
		Status:       constants.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *receiptJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	upd := r.db.builder().Update(tableReceiptJobs).
		Set("status", string(constants.JobStatusProcessing)).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.JobStatusPending)),
		))
	return r.transition(ctx, id, upd, constants.JobStatusProcessing)
}

func (r *receiptJobRepository) Complete(ctx context.Context, id uuid.UUID, req CompleteReceiptJobRequest) error {
	data, err := json.Marshal(req.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	now := time.Now().UTC()
	upd := r.db.builder().Update(tableReceiptJobs).
		Set("status", string(constants.JobStatusCompleted)).
		Set("raw_text", req.RawText).
		Set("extracted_data", string(data)).
		Set("processed_image_path", req.ProcessedImagePath).
		Set("strategy", req.Strategy).
		Set("confidence", req.ExtractedData.Confidence).
		Set("updated_at", now).
		Set("completed_at", now).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.JobStatusProcessing)),
		))
	return r.transition(ctx, id, upd, constants.JobStatusCompleted)
}

func (r *receiptJobRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	now := time.Now().UTC()
	upd := r.db.builder().Update(tableReceiptJobs).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("updated_at", now).
		Set("completed_at", now).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.In("status", string(constants.JobStatusPending), string(constants.JobStatusProcessing)),
		))
	if err := r.transition(ctx, id, upd, constants.JobStatusFailed); err != nil {
		return err
	}
	r.logger.Warn("receipt_job failed", "job_id", id, "error", message)
	return nil
}

// transition runs a status update guarded on the predecessor status. Zero rows
// affected means either the job does not exist or it is in the wrong state.
func (r *receiptJobRepository) transition(ctx context.Context, id uuid.UUID, upd *entsql.UpdateBuilder, to constants.JobStatus) error {
	q, args := upd.Query()
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("receipt_job update failed", "job_id", id, "to", to, "error", err)
		return fmt.Errorf("%w: update receipt job: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", common.ErrDatabase, err)
	}
	if n == 1 {
		r.logger.Debug("receipt_job transitioned", "job_id", id, "to", to)
		return nil
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.logger.Warn("receipt_job transition rejected", "job_id", id, "from", current.Status, "to", to)
	return common.NewAppError("INVALID_TRANSITION",
		fmt.Sprintf("job %s cannot move from %s to %s", id, current.Status, to), common.ErrInvalidTransition)
}

func (r *receiptJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptJob, error) {
	b := r.db.builder()
	q, args := b.Select(receiptJobColumns...).
		From(b.Table(tableReceiptJobs)).
		Where(entsql.EQ("id", id.String())).
		Query()
	var rows []receiptJobRow
	if err := r.db.query(ctx, q, args, &rows); err != nil {
		r.logger.Error("receipt_job get failed", "job_id", id, "error", err)
		return nil, fmt.Errorf("%w: get receipt job: %v", common.ErrDatabase, err)
	}
	if len(rows) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "receipt job "+id.String(), common.ErrNotFound)
	}
	return rows[0].toEntity()
}

func (r *receiptJobRepository) List(ctx context.Context, filter ListReceiptJobsFilter) ([]*entity.ReceiptJob, error) {
	b := r.db.builder()
	sel := b.Select(receiptJobColumns...).
		From(b.Table(tableReceiptJobs)).
		OrderBy(entsql.Desc("created_at"))
	if filter.Status != "" {
		sel = sel.Where(entsql.EQ("status", string(filter.Status)))
	}
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}
	q, args := sel.Query()
	var rows []receiptJobRow
	if err := r.db.query(ctx, q, args, &rows); err != nil {
		r.logger.Error("receipt_job list failed", "error", err)
		return nil, fmt.Errorf("%w: list receipt jobs: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.ReceiptJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (row receiptJobRow) toEntity() (*entity.ReceiptJob, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", row.ID, err)
	}
	job := &entity.ReceiptJob{
		ID:                 id,
		SourcePath:         row.SourcePath,
		OriginalName:       row.OriginalName,
		ContentHash:        row.ContentHash,
		Status:             constants.JobStatus(row.Status),
		RawText:            nullString(row.RawText),
		ProcessedImagePath: nullString(row.ProcessedImagePath),
		Strategy:           nullString(row.Strategy),
		ErrorMessage:       nullString(row.ErrorMessage),
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
	}
	if row.Confidence.Valid {
		c := row.Confidence.Float64
		job.Confidence = &c
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		job.CompletedAt = &t
	}
	if row.ExtractedData.Valid && row.ExtractedData.String != "" {
		var fields entity.ExtractedFields
		if err := json.Unmarshal([]byte(row.ExtractedData.String), &fields); err != nil {
			return nil, errors.Join(common.ErrDatabase, fmt.Errorf("decode extracted data for job %s: %w", id, err))
		}
		job.ExtractedData = &fields
	}
	return job, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

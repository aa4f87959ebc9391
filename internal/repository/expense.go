package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

type ExpenseRepository interface {
	Create(ctx context.Context, e *entity.Expense) (*entity.Expense, error)
	// ListByDateRange lists expenses with from <= date <= to (YYYY-MM-DD).
	// An empty bound is open.
	ListByDateRange(ctx context.Context, from, to string) ([]*entity.Expense, error)
	GetByReceiptJob(ctx context.Context, jobID uuid.UUID) ([]*entity.Expense, error)
	// Delete removes one expense. A missing row is ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
}

type expenseRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewExpenseRepository(db *DB, logger *slog.Logger) ExpenseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &expenseRepository{db: db, logger: logger}
}

type expenseRow struct {
	ID           string         `sql:"id"`
	ReceiptJobID sql.NullString `sql:"receipt_job_id"`
	CategoryID   string         `sql:"category_id"`
	Amount       float64        `sql:"amount"`
	Vendor       string         `sql:"vendor"`
	Description  string         `sql:"description"`
	Date         string         `sql:"date"`
	Tags         string         `sql:"tags"`
	CreatedAt    sql.NullTime   `sql:"created_at"`
}

var expenseColumns = []string{
	"id", "receipt_job_id", "category_id", "amount", "vendor", "description", "date", "tags", "created_at",
}

func (r *expenseRepository) Create(ctx context.Context, e *entity.Expense) (*entity.Expense, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	var jobID any
	if e.ReceiptJobID != nil {
		jobID = e.ReceiptJobID.String()
	}
	q, args := r.db.builder().Insert(tableExpenses).
		Columns(expenseColumns...).
		Values(e.ID.String(), jobID, e.CategoryID.String(), e.Amount, e.Vendor, e.Description, e.Date, string(tags), e.CreatedAt).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("expense create failed", "receipt_job_id", e.ReceiptJobID, "error", err)
		return nil, fmt.Errorf("%w: create expense: %v", common.ErrDatabase, err)
	}
	r.logger.Info("expense created", "expense_id", e.ID, "receipt_job_id", e.ReceiptJobID, "amount", e.Amount)
	return e, nil
}

func (r *expenseRepository) ListByDateRange(ctx context.Context, from, to string) ([]*entity.Expense, error) {
	b := r.db.builder()
	sel := b.Select(expenseColumns...).
		From(b.Table(tableExpenses)).
		OrderBy("date", "created_at")
	var preds []*entsql.Predicate
	if from != "" {
		preds = append(preds, entsql.GTE("date", from))
	}
	if to != "" {
		preds = append(preds, entsql.LTE("date", to))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	q, args := sel.Query()
	return r.list(ctx, q, args)
}

func (r *expenseRepository) GetByReceiptJob(ctx context.Context, jobID uuid.UUID) ([]*entity.Expense, error) {
	b := r.db.builder()
	q, args := b.Select(expenseColumns...).
		From(b.Table(tableExpenses)).
		Where(entsql.EQ("receipt_job_id", jobID.String())).
		OrderBy("created_at").
		Query()
	return r.list(ctx, q, args)
}

func (r *expenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.db.builder().Delete(tableExpenses).
		Where(entsql.EQ("id", id.String())).
		Query()
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("expense delete failed", "expense_id", id, "error", err)
		return fmt.Errorf("%w: delete expense: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: expense %s", common.ErrNotFound, id)
	}
	r.logger.Info("expense deleted", "expense_id", id)
	return nil
}

func (r *expenseRepository) list(ctx context.Context, q string, args []any) ([]*entity.Expense, error) {
	var rows []expenseRow
	if err := r.db.query(ctx, q, args, &rows); err != nil {
		r.logger.Error("expense query failed", "error", err)
		return nil, fmt.Errorf("%w: list expenses: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (row expenseRow) toEntity() (*entity.Expense, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse expense id %q: %w", row.ID, err)
	}
	catID, err := uuid.Parse(row.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("parse category id %q: %w", row.CategoryID, err)
	}
	e := &entity.Expense{
		ID:          id,
		CategoryID:  catID,
		Amount:      row.Amount,
		Vendor:      row.Vendor,
		Description: row.Description,
		Date:        row.Date,
		CreatedAt:   row.CreatedAt.Time,
	}
	if row.ReceiptJobID.Valid {
		jid, err := uuid.Parse(row.ReceiptJobID.String)
		if err != nil {
			return nil, fmt.Errorf("parse receipt job id %q: %w", row.ReceiptJobID.String, err)
		}
		e.ReceiptJobID = &jid
	}
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for expense %s: %w", id, err)
		}
	}
	return e, nil
}

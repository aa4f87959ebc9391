// Package expense turns validated receipt fields into expense rows.
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

const (
	DefaultDescription = "Receipt purchase"
	UnknownVendor      = "Unknown"
	maxDescItems       = 3
)

// CategoryResolver maps a vendor onto a category id.
type CategoryResolver interface {
	Resolve(ctx context.Context, vendor string) (uuid.UUID, error)
}

// Outcome is either a created expense or a skip with its reason.
type Outcome struct {
	Expense    *entity.Expense
	Skipped    bool
	SkipReason string
}

type Materializer struct {
	expenses   repository.ExpenseRepository
	categories CategoryResolver
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Materializer)

// WithClock overrides the date used when the receipt has none.
func WithClock(now func() time.Time) Option { return func(m *Materializer) { m.now = now } }

func NewMaterializer(expenses repository.ExpenseRepository, categories CategoryResolver, logger *slog.Logger, opts ...Option) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Materializer{expenses: expenses, categories: categories, now: time.Now, logger: logger}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Materialize creates one expense linked to jobID when fields carry an amount.
// Missing vendor, date or items never block creation. Reprocessing the same
// job creates another row; deduplication is the caller's concern.
func (m *Materializer) Materialize(ctx context.Context, jobID uuid.UUID, fields entity.ExtractedFields) (Outcome, error) {
	logger := common.LoggerFromContext(ctx, m.logger)
	if fields.Amount == nil {
		logger.Info("expense.skipped", "reason", "no amount")
		return Outcome{Skipped: true, SkipReason: "no amount"}, nil
	}

	vendor := UnknownVendor
	if fields.Vendor != nil && strings.TrimSpace(*fields.Vendor) != "" {
		vendor = strings.TrimSpace(*fields.Vendor)
	}
	date := m.now().Format(time.DateOnly)
	if fields.Date != nil {
		date = *fields.Date
	}

	// unknown vendors land in "Other", not a category named "Unknown"
	categoryVendor := ""
	if vendor != UnknownVendor {
		categoryVendor = vendor
	}
	categoryID, err := m.categories.Resolve(ctx, categoryVendor)
	if err != nil {
		logger.Error("expense.category.failed", "vendor", vendor, "error", err)
		return Outcome{}, fmt.Errorf("resolve category: %w", err)
	}

	job := jobID
	e := &entity.Expense{
		ReceiptJobID: &job,
		CategoryID:   categoryID,
		Amount:       *fields.Amount,
		Vendor:       vendor,
		Description:  describe(fields.Items),
		Date:         date,
		Tags:         constants.AutoExpenseTags(),
	}
	created, err := m.expenses.Create(ctx, e)
	if err != nil {
		logger.Error("expense.create.failed", "error", err)
		return Outcome{}, fmt.Errorf("create expense: %w", err)
	}
	logger.Info("expense.created",
		"expense_id", created.ID,
		"amount", created.Amount,
		"vendor", created.Vendor,
		"date", created.Date,
		"category_id", created.CategoryID,
	)
	return Outcome{Expense: created}, nil
}

// Revert deletes an expense created by Materialize whose job could not be
// completed, so a failed job never leaves an expense behind.
func (m *Materializer) Revert(ctx context.Context, e *entity.Expense) error {
	if e == nil {
		return nil
	}
	logger := common.LoggerFromContext(ctx, m.logger)
	if err := m.expenses.Delete(ctx, e.ID); err != nil {
		logger.Error("expense.revert.failed", "expense_id", e.ID, "error", err)
		return fmt.Errorf("revert expense %s: %w", e.ID, err)
	}
	logger.Info("expense.reverted", "expense_id", e.ID)
	return nil
}

// describe lists the first few item names, or the generic label.
func describe(items []entity.LineItem) string {
	if len(items) == 0 {
		return DefaultDescription
	}
	names := make([]string, 0, maxDescItems)
	for _, it := range items {
		if len(names) == maxDescItems {
			break
		}
		names = append(names, it.Description)
	}
	desc := strings.Join(names, ", ")
	if extra := len(items) - len(names); extra > 0 {
		desc += fmt.Sprintf(" +%d more", extra)
	}
	return desc
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

// SheetName is the worksheet holding exported expenses.
const SheetName = "Expenses"

// Headers are the exported columns, in order.
var Headers = []string{"Date", "Vendor", "Category", "Description", "Amount", "Tags", "Receipt Job"}

// Service produces XLSX bytes for materialized expenses.
type Service struct {
	expenses   repository.ExpenseRepository
	categories repository.CategoryRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(expenses repository.ExpenseRepository, categories repository.CategoryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{expenses: expenses, categories: categories, logger: logger, now: time.Now}
}

// ExportExpensesXLSX returns a workbook for expenses dated within [from, to]
// (YYYY-MM-DD, inclusive).
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
// If neither is provided   -> everything.
func (s *Service) ExportExpensesXLSX(ctx context.Context, from, to string) ([]byte, error) {
	start := time.Now()
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, common.NewAppError("INVALID_INPUT", fmt.Sprintf("date %q is not YYYY-MM-DD", d), common.ErrInvalidInput)
		}
	}
	if from != "" && to == "" {
		to = s.now().UTC().Format(time.DateOnly)
	}
	if from != "" && to != "" && from > to {
		return nil, common.NewAppError("INVALID_INPUT", "from is after to", common.ErrInvalidInput)
	}

	rows, err := s.expenses.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	names := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(SheetName, "A1", "G1", style)
	}
	amountStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00

	for i, e := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, e.Date)
		write(2, e.Vendor)
		write(3, names[e.CategoryID])
		write(4, e.Description)
		write(5, e.Amount)
		write(6, strings.Join(e.Tags, ", "))
		if e.ReceiptJobID != nil {
			write(7, e.ReceiptJobID.String())
		}
		if amountStyle != 0 {
			cell, _ := excelize.CoordinatesToCellName(5, row)
			_ = f.SetCellStyle(SheetName, cell, cell, amountStyle)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12) // date
	_ = f.SetColWidth(SheetName, "B", "C", 22) // vendor, category
	_ = f.SetColWidth(SheetName, "D", "D", 48)
	_ = f.SetColWidth(SheetName, "E", "E", 12)
	_ = f.SetColWidth(SheetName, "F", "F", 28)
	_ = f.SetColWidth(SheetName, "G", "G", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"from", from,
		"to", to,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

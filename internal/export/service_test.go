package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

func newService(t *testing.T) (*Service, repository.ExpenseRepository, repository.CategoryRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{
		Driver:     repository.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "export.db"),
	}, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, logger) })
	if err := repository.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	expenses := repository.NewExpenseRepository(db, logger)
	categories := repository.NewCategoryRepository(db, logger)
	svc := NewService(expenses, categories, logger)
	svc.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) }
	return svc, expenses, categories
}

func seed(t *testing.T, expenses repository.ExpenseRepository, categories repository.CategoryRepository) {
	t.Helper()
	ctx := context.Background()
	groceries, err := categories.Create(ctx, &entity.Category{
		ID: uuid.New(), Name: "Groceries", Color: "#4CAF50", Icon: "cart", Type: constants.CategoryTypeTraditional,
	})
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	for _, e := range []*entity.Expense{
		{CategoryID: groceries.ID, Amount: 6.21, Vendor: "Walmart", Description: "MILK, BREAD", Date: "2024-01-15", Tags: constants.AutoExpenseTags()},
		{CategoryID: groceries.ID, Amount: 12.5, Vendor: "Kroger", Description: "Receipt purchase", Date: "2024-02-10", Tags: constants.AutoExpenseTags()},
		{CategoryID: groceries.ID, Amount: 30, Vendor: "Aldi", Description: "Receipt purchase", Date: "2024-04-02", Tags: []string{}},
	} {
		if _, err := expenses.Create(ctx, e); err != nil {
			t.Fatalf("expense: %v", err)
		}
	}
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

func TestExportExpensesXLSX(t *testing.T) {
	svc, expenses, categories := newService(t)
	seed(t, expenses, categories)

	data, err := svc.ExportExpensesXLSX(context.Background(), "2024-01-01", "2024-02-28")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := readRows(t, data)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	for i, h := range Headers {
		if rows[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], h)
		}
	}
	first := rows[1]
	if first[0] != "2024-01-15" || first[1] != "Walmart" || first[2] != "Groceries" || first[3] != "MILK, BREAD" {
		t.Fatalf("first row = %v", first)
	}
	if first[4] != "6.21" {
		t.Fatalf("amount cell = %q", first[4])
	}
	if first[5] != "receipt-import, auto-created" {
		t.Fatalf("tags cell = %q", first[5])
	}
}

func TestExportExpensesXLSX_Bounds(t *testing.T) {
	svc, expenses, categories := newService(t)
	seed(t, expenses, categories)

	tests := []struct {
		name     string
		from, to string
		wantRows int
	}{
		{"all", "", "", 3},
		{"only to", "", "2024-01-31", 1},
		{"only from runs to today", "2024-02-01", "", 1},
		{"empty window", "2025-01-01", "2025-12-31", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := svc.ExportExpensesXLSX(context.Background(), tt.from, tt.to)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if got := len(readRows(t, data)) - 1; got != tt.wantRows {
				t.Fatalf("data rows = %d, want %d", got, tt.wantRows)
			}
		})
	}
}

func TestExportExpensesXLSX_InvalidDates(t *testing.T) {
	svc, _, _ := newService(t)
	for _, r := range [][2]string{{"2024/01/01", ""}, {"", "yesterday"}, {"2024-03-01", "2024-02-01"}} {
		if _, err := svc.ExportExpensesXLSX(context.Background(), r[0], r[1]); !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("%v: err = %v, want ErrInvalidInput", r, err)
		}
	}
}

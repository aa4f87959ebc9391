package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableReceiptJobs = "receipt_jobs"
	tableCategories  = "categories"
	tableExpenses    = "expenses"
)

var (
	// ReceiptJobsColumns holds the columns for the "receipt_jobs" table.
	ReceiptJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "source_path", Type: field.TypeString},
		{Name: "original_name", Type: field.TypeString},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "raw_text", Type: field.TypeString, Nullable: true},
		{Name: "extracted_data", Type: field.TypeString, Nullable: true},
		{Name: "processed_image_path", Type: field.TypeString, Nullable: true},
		{Name: "strategy", Type: field.TypeString, Size: 32, Nullable: true},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
	}
	// ReceiptJobsTable holds the schema information for the "receipt_jobs" table.
	ReceiptJobsTable = &schema.Table{
		Name:       tableReceiptJobs,
		Columns:    ReceiptJobsColumns,
		PrimaryKey: []*schema.Column{ReceiptJobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "receiptjob_status", Columns: []*schema.Column{ReceiptJobsColumns[4]}},
			{Name: "receiptjob_content_hash", Columns: []*schema.Column{ReceiptJobsColumns[3]}},
		},
	}

	// CategoriesColumns holds the columns for the "categories" table.
	CategoriesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "name", Type: field.TypeString, Size: 128, Unique: true},
		{Name: "color", Type: field.TypeString, Size: 16},
		{Name: "icon", Type: field.TypeString, Size: 64},
		{Name: "type", Type: field.TypeString, Size: 16},
		{Name: "created_at", Type: field.TypeTime},
	}
	// CategoriesTable holds the schema information for the "categories" table.
	CategoriesTable = &schema.Table{
		Name:       tableCategories,
		Columns:    CategoriesColumns,
		PrimaryKey: []*schema.Column{CategoriesColumns[0]},
	}

	// ExpensesColumns holds the columns for the "expenses" table.
	ExpensesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "amount", Type: field.TypeFloat64},
		{Name: "vendor", Type: field.TypeString},
		{Name: "description", Type: field.TypeString},
		{Name: "date", Type: field.TypeString, Size: 10},
		{Name: "tags", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "receipt_job_id", Type: field.TypeString, Size: 36, Nullable: true},
		{Name: "category_id", Type: field.TypeString, Size: 36},
	}
	// ExpensesTable holds the schema information for the "expenses" table.
	ExpensesTable = &schema.Table{
		Name:       tableExpenses,
		Columns:    ExpensesColumns,
		PrimaryKey: []*schema.Column{ExpensesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "expenses_receipt_jobs_expenses",
				Columns:    []*schema.Column{ExpensesColumns[7]},
				RefColumns: []*schema.Column{ReceiptJobsColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "expenses_categories_expenses",
				Columns:    []*schema.Column{ExpensesColumns[8]},
				RefColumns: []*schema.Column{CategoriesColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "expense_receipt_job_id", Columns: []*schema.Column{ExpensesColumns[7]}},
			{Name: "expense_date", Columns: []*schema.Column{ExpensesColumns[4]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ReceiptJobsTable,
		CategoriesTable,
		ExpensesTable,
	}
)

func init() {
	ExpensesTable.ForeignKeys[0].RefTable = ReceiptJobsTable
	ExpensesTable.ForeignKeys[1].RefTable = CategoriesTable
}

// Migrate creates or updates the tables above.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema migration failed", "dialect", db.dialect, "error", err)
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.Info("schema migrated", "dialect", db.dialect, "tables", len(Tables))
	return nil
}

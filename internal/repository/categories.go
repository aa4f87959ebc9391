package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

type CategoryRepository interface {
	// FindByName returns ErrNotFound when no category has exactly this name.
	FindByName(ctx context.Context, name string) (*entity.Category, error)
	// Create inserts the category unless one with the same name exists, and
	// returns the stored row either way.
	Create(ctx context.Context, cat *entity.Category) (*entity.Category, error)
	List(ctx context.Context) ([]*entity.Category, error)
}

type categoryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCategoryRepository(db *DB, logger *slog.Logger) CategoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &categoryRepository{db: db, logger: logger}
}

type categoryRow struct {
	ID        string       `sql:"id"`
	Name      string       `sql:"name"`
	Color     string       `sql:"color"`
	Icon      string       `sql:"icon"`
	Type      string       `sql:"type"`
	CreatedAt sql.NullTime `sql:"created_at"`
}

var categoryColumns = []string{"id", "name", "color", "icon", "type", "created_at"}

func (r *categoryRepository) FindByName(ctx context.Context, name string) (*entity.Category, error) {
	b := r.db.builder()
	q, args := b.Select(categoryColumns...).
		From(b.Table(tableCategories)).
		Where(entsql.EQ("name", name)).
		Query()
	var rows []categoryRow
	if err := r.db.query(ctx, q, args, &rows); err != nil {
		r.logger.Error("category lookup failed", "name", name, "error", err)
		return nil, fmt.Errorf("%w: find category: %v", common.ErrDatabase, err)
	}
	if len(rows) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "category "+name, common.ErrNotFound)
	}
	return rows[0].toEntity()
}

func (r *categoryRepository) Create(ctx context.Context, cat *entity.Category) (*entity.Category, error) {
	if cat.ID == uuid.Nil {
		cat.ID = uuid.New()
	}
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now().UTC()
	}
	q, args := r.db.builder().Insert(tableCategories).
		Columns("id", "name", "color", "icon", "type", "created_at").
		Values(cat.ID.String(), cat.Name, cat.Color, cat.Icon, string(cat.Type), cat.CreatedAt).
		OnConflict(entsql.ConflictColumns("name"), entsql.DoNothing()).
		Query()
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("category create failed", "name", cat.Name, "error", err)
		return nil, fmt.Errorf("%w: create category: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		r.logger.Info("category created", "category_id", cat.ID, "name", cat.Name, "type", cat.Type)
		return cat, nil
	}
	// lost a race with another writer; hand back the winner
	return r.FindByName(ctx, cat.Name)
}

func (r *categoryRepository) List(ctx context.Context) ([]*entity.Category, error) {
	b := r.db.builder()
	q, args := b.Select(categoryColumns...).
		From(b.Table(tableCategories)).
		OrderBy("name").
		Query()
	var rows []categoryRow
	if err := r.db.query(ctx, q, args, &rows); err != nil {
		r.logger.Error("category list failed", "error", err)
		return nil, fmt.Errorf("%w: list categories: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.Category, 0, len(rows))
	for _, row := range rows {
		c, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (row categoryRow) toEntity() (*entity.Category, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse category id %q: %w", row.ID, err)
	}
	return &entity.Category{
		ID:        id,
		Name:      row.Name,
		Color:     row.Color,
		Icon:      row.Icon,
		Type:      constants.CategoryType(row.Type),
		CreatedAt: row.CreatedAt.Time,
	}, nil
}

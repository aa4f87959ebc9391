// Package category maps vendor names onto category rows, creating
// vendor-derived categories on demand.
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

// categoryNamespace seeds deterministic category ids.
var categoryNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8e-9a51-2f6d0c4e8b17")

// CategoryID is the id a category with this name always gets.
func CategoryID(name string) uuid.UUID {
	return uuid.NewSHA1(categoryNamespace, []byte(strings.ToLower(strings.TrimSpace(name))))
}

type Resolver struct {
	repo    repository.CategoryRepository
	mapping *Mapping
	logger  *slog.Logger
}

// NewResolver builds a resolver over repo. A nil mapping uses the embedded
// default table.
func NewResolver(repo repository.CategoryRepository, mapping *Mapping, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if mapping == nil {
		m, err := DefaultMapping()
		if err != nil {
			return nil, err
		}
		mapping = m
	}
	return &Resolver{
		repo:    repo,
		mapping: mapping,
		logger:  logger,
	}, nil
}

// Resolve returns the category id for vendor, creating the category when it
// does not exist yet. An empty vendor resolves to "Other". Repeated calls with
// the same vendor return the same id and never add a second row.
func (r *Resolver) Resolve(ctx context.Context, vendor string) (uuid.UUID, error) {
	logger := common.LoggerFromContext(ctx, r.logger)
	want := r.categoryFor(vendor)

	existing, err := r.repo.FindByName(ctx, want.Name)
	switch {
	case err == nil:
		logger.Debug("category.resolve.existing", "vendor", vendor, "category", existing.Name, "id", existing.ID)
		return existing.ID, nil
	case !errors.Is(err, common.ErrNotFound):
		return uuid.Nil, fmt.Errorf("resolve category %q: %w", want.Name, err)
	}

	want.ID = CategoryID(want.Name)
	created, err := r.repo.Create(ctx, &want)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create category %q: %w", want.Name, err)
	}
	logger.Info("category.resolve.created",
		"vendor", vendor,
		"category", created.Name,
		"type", created.Type,
		"id", created.ID,
	)
	return created.ID, nil
}

// categoryFor picks the curated category for vendor or synthesizes a
// vendor-type one from its capitalized name.
func (r *Resolver) categoryFor(vendor string) entity.Category {
	v := strings.Join(strings.Fields(vendor), " ")
	if v == "" {
		return entity.Category{
			Name:  constants.OtherCategory,
			Color: constants.DefaultCategoryColor,
			Icon:  constants.DefaultCategoryIcon,
			Type:  constants.CategoryTypeTraditional,
		}
	}
	if c, ok := r.mapping.lookup(strings.ToLower(v)); ok {
		return entity.Category{
			Name:  c.Name,
			Color: orDefault(c.Color, constants.DefaultCategoryColor),
			Icon:  orDefault(c.Icon, constants.DefaultCategoryIcon),
			Type:  constants.CategoryTypeTraditional,
		}
	}
	return entity.Category{
		Name:  cases.Title(language.English).String(strings.ToLower(v)),
		Color: constants.DefaultCategoryColor,
		Icon:  constants.DefaultCategoryIcon,
		Type:  constants.CategoryTypeVendor,
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

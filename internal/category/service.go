package category

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/search"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrHasProducts = errors.New("category still has products")
	ErrInvalidName = errors.New("category name must contain letters or digits")
)

const topCategories = 5

// ProductCatalog is the part of the catalog the registry depends on.
// Association is by category name.
type ProductCatalog interface {
	CountByCategory(ctx context.Context, category string) (int64, error)
	RenameCategory(ctx context.Context, from, to string) (int64, error)
	Search(ctx context.Context, q search.Query) (product.ListResult, error)
}

// Service provides business logic for categories.
type Service struct {
	repo    Repository
	catalog ProductCatalog
}

func NewService(r Repository, catalog ProductCatalog) *Service {
	return &Service{repo: r, catalog: catalog}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Category, error) {
	name := strings.TrimSpace(req.Name)
	slug := Slugify(name)
	if slug == "" {
		return Category{}, ErrInvalidName
	}
	taken, err := s.repo.NameTaken(ctx, name, primitive.NilObjectID)
	if err != nil {
		return Category{}, err
	}
	if taken {
		return Category{}, ErrDuplicate
	}
	return s.repo.Create(ctx, Category{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		Icon:        req.Icon,
		Color:       req.Color,
		Active:      true,
	})
}

// UpdateResult reports the updated category and how many products were
// relabelled when the rename was migrated.
type UpdateResult struct {
	Category   Category `json:"category"`
	Relabelled int64    `json:"relabelledProducts"`
}

// Update applies the present fields. A rename detaches existing products
// unless req.MigrateProducts is set. Deactivating follows the SoftDelete rule.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (UpdateResult, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	oldName := c.Name

	if req.Active != nil && !*req.Active && c.Active {
		if err := s.ensureEmpty(ctx, oldName); err != nil {
			return UpdateResult{}, err
		}
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		slug := Slugify(name)
		if slug == "" {
			return UpdateResult{}, ErrInvalidName
		}
		taken, err := s.repo.NameTaken(ctx, name, c.ID)
		if err != nil {
			return UpdateResult{}, err
		}
		if taken {
			return UpdateResult{}, ErrDuplicate
		}
		c.Name, c.Slug = name, slug
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	if req.Icon != nil {
		c.Icon = *req.Icon
	}
	if req.Color != nil {
		c.Color = *req.Color
	}
	if req.Active != nil {
		c.Active = *req.Active
	}

	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return UpdateResult{}, err
	}
	res := UpdateResult{Category: updated}
	if req.MigrateProducts && oldName != updated.Name {
		n, err := s.catalog.RenameCategory(ctx, oldName, updated.Name)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("relabel products of %q: %w", oldName, err)
		}
		res.Relabelled = n
	} else if oldName != updated.Name {
		log.Warnf("category %q renamed to %q without migrating its products", oldName, updated.Name)
	}
	res.Category = s.refreshCount(ctx, res.Category)
	return res, nil
}

// SoftDelete deactivates a category that no product references.
func (s *Service) SoftDelete(ctx context.Context, id string) (Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if err := s.ensureEmpty(ctx, c.Name); err != nil {
		return Category{}, err
	}
	c.Active = false
	c.ProductCount = 0
	return s.repo.Update(ctx, c)
}

func (s *Service) ensureEmpty(ctx context.Context, name string) error {
	n, err := s.catalog.CountByCategory(ctx, name)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d associated", ErrHasProducts, n)
	}
	return nil
}

// ListActive returns active categories sorted by name, each with a freshly
// recomputed product count.
func (s *Service) ListActive(ctx context.Context) ([]Category, error) {
	items, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = s.refreshCount(ctx, items[i])
	}
	return items, nil
}

// Get accepts either an id or a slug.
func (s *Service) Get(ctx context.Context, idOrSlug string) (Category, error) {
	var (
		c   Category
		err error
	)
	if primitive.IsValidObjectID(idOrSlug) {
		c, err = s.repo.GetByID(ctx, idOrSlug)
	} else {
		c, err = s.repo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return Category{}, err
	}
	return s.refreshCount(ctx, c), nil
}

// ProductsBySlug lists the products of an active category. The category
// filter in q is replaced by the category's name.
func (s *Service) ProductsBySlug(ctx context.Context, slug string, q search.Query) (Category, product.ListResult, error) {
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Category{}, product.ListResult{}, err
	}
	if !c.Active {
		return Category{}, product.ListResult{}, ErrNotFound
	}
	q.Category = c.Name
	res, err := s.catalog.Search(ctx, q)
	if err != nil {
		return Category{}, product.ListResult{}, err
	}
	return s.refreshCount(ctx, c), res, nil
}

func (s *Service) Stats(ctx context.Context) (Overview, error) {
	all, err := s.repo.List(ctx, false)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{TotalCategories: len(all), Top: make([]Category, 0, topCategories)}
	active := make([]Category, 0, len(all))
	for _, c := range all {
		if !c.Active {
			continue
		}
		c = s.refreshCount(ctx, c)
		out.ActiveCategories++
		out.TotalProducts += c.ProductCount
		active = append(active, c)
	}
	slices.SortStableFunc(active, func(a, b Category) int { return cmp.Compare(b.ProductCount, a.ProductCount) })
	out.Top = append(out.Top, active[:min(topCategories, len(active))]...)
	return out, nil
}

// refreshCount recounts c's products and caches the result. A failed recount
// keeps the cached value; counts are allowed to be stale.
func (s *Service) refreshCount(ctx context.Context, c Category) Category {
	n, err := s.catalog.CountByCategory(ctx, c.Name)
	if err != nil {
		log.Warnf("count products of category %q: %v", c.Name, err)
		return c
	}
	if n != c.ProductCount {
		if err := s.repo.SetProductCount(ctx, c.ID, n); err != nil {
			log.Warnf("cache product count of category %q: %v", c.Name, err)
		}
	}
	c.ProductCount = n
	return c
}

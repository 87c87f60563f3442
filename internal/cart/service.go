package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wichananm65/secondhand-market/internal/product"
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 99

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrProductNotFound = errors.New("product not found")
)

// Catalog resolves the product snapshotted into a new line.
type Catalog interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
}

// Service orchestrates cart operations.
type Service struct {
	repo    Repository
	catalog Catalog
	now     func() time.Time
}

func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID string) (Cart, error) {
	lines, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	return View(lines), nil
}

// AddItem snapshots the product and adds qty of it.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (Cart, error) {
	if qty < 1 || qty > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	p, err := s.lookup(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	lines, err := s.repo.Add(ctx, userID, Line{
		ProductID: productID,
		Product:   SnapshotOf(p),
		Quantity:  qty,
		AddedAt:   s.now().UTC(),
	})
	if err != nil {
		return Cart{}, err
	}
	return View(lines), nil
}

// UpdateItem sets a line's quantity; below 1 removes it.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, qty int) (Cart, error) {
	if qty > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	lines, err := s.repo.SetQuantity(ctx, userID, productID, qty)
	if err != nil {
		return Cart{}, err
	}
	return View(lines), nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (Cart, error) {
	lines, err := s.repo.Remove(ctx, userID, productID)
	if err != nil {
		return Cart{}, err
	}
	return View(lines), nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}

// Merge reconciles a guest cart into the user's server cart with the named
// policy. Guest lines are snapshotted again from the catalog; products that
// no longer exist are dropped and quantities are capped at MaxQuantity.
func (s *Service) Merge(ctx context.Context, userID string, local []Line, policyName string) (Cart, error) {
	policy, err := PolicyByName(policyName)
	if err != nil {
		return Cart{}, err
	}
	now := s.now().UTC()
	clean := make([]Line, 0, len(local))
	for _, l := range local {
		id := strings.TrimSpace(l.ProductID)
		if id == "" || l.Quantity < 1 {
			continue
		}
		p, err := s.lookup(ctx, id)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return Cart{}, err
		}
		addedAt := l.AddedAt
		if addedAt.IsZero() || addedAt.After(now) {
			addedAt = now
		}
		clean = append(clean, Line{
			ProductID: id,
			Product:   SnapshotOf(p),
			Quantity:  min(l.Quantity, MaxQuantity),
			AddedAt:   addedAt,
		})
	}
	lines, err := s.repo.Merge(ctx, userID, clean, policy)
	if err != nil {
		return Cart{}, err
	}
	return View(lines), nil
}

func (s *Service) lookup(ctx context.Context, productID string) (product.Product, error) {
	p, err := s.catalog.GetByID(ctx, productID)
	if errors.Is(err, product.ErrNotFound) || errors.Is(err, product.ErrInvalidID) {
		return product.Product{}, ErrProductNotFound
	}
	return p, err
}

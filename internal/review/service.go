package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wichananm65/secondhand-market/internal/product"
)

var (
	ErrForbidden       = errors.New("only the author can modify this review")
	ErrCommentTooShort = fmt.Errorf("comment must be at least %d characters", MinCommentLength)
	ErrProductNotFound = errors.New("product not found")
)

// Products resolves the product a review is written for.
type Products interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
}

type Service struct {
	repo     Repository
	products Products
}

func NewService(repo Repository, products Products) *Service {
	return &Service{repo: repo, products: products}
}

// ListResult is the reviews of one product with their aggregate.
type ListResult struct {
	Reviews []Review `json:"reviews"`
	Stats   Stats    `json:"stats"`
}

func (s *Service) List(ctx context.Context, productID string) (ListResult, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return ListResult{}, err
	}
	reviews, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return ListResult{}, err
	}
	st, err := s.repo.Stats(ctx, productID)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Reviews: reviews, Stats: st}, nil
}

// Create rejects a second review by the same author with ErrDuplicate. The
// lookup gives the common case a clear answer; the repository's atomic insert
// rejection covers concurrent submissions.
func (s *Service) Create(ctx context.Context, productID string, author Author, req CreateRequest) (Review, error) {
	comment, err := checkComment(req.Comment)
	if err != nil {
		return Review{}, err
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return Review{}, err
	}

	_, err = s.repo.FindByProductAndUser(ctx, productID, author.ID)
	switch {
	case err == nil:
		return Review{}, ErrDuplicate
	case !errors.Is(err, ErrNotFound):
		return Review{}, err
	}

	return s.repo.Create(ctx, Review{
		ProductID: productID,
		UserID:    author.ID,
		UserName:  author.Name,
		Rating:    req.Rating,
		Title:     strings.TrimSpace(req.Title),
		Comment:   comment,
	})
}

func (s *Service) Update(ctx context.Context, productID, reviewID, userID string, req UpdateRequest) (Review, error) {
	rv, err := s.owned(ctx, productID, reviewID, userID)
	if err != nil {
		return Review{}, err
	}
	if req.Rating != nil {
		rv.Rating = *req.Rating
	}
	if req.Title != nil {
		rv.Title = strings.TrimSpace(*req.Title)
	}
	if req.Comment != nil {
		comment, err := checkComment(*req.Comment)
		if err != nil {
			return Review{}, err
		}
		rv.Comment = comment
	}
	return s.repo.Update(ctx, rv)
}

func (s *Service) Delete(ctx context.Context, productID, reviewID, userID string) error {
	if _, err := s.owned(ctx, productID, reviewID, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, reviewID)
}

func (s *Service) owned(ctx context.Context, productID, reviewID, userID string) (Review, error) {
	rv, err := s.repo.GetByID(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	if rv.ProductID != productID {
		return Review{}, ErrNotFound
	}
	if rv.UserID != userID {
		return Review{}, ErrForbidden
	}
	return rv, nil
}

func (s *Service) ensureProduct(ctx context.Context, productID string) error {
	_, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, product.ErrNotFound) || errors.Is(err, product.ErrInvalidID) {
		return ErrProductNotFound
	}
	return err
}

func checkComment(raw string) (string, error) {
	comment := strings.TrimSpace(raw)
	if utf8.RuneCountInString(comment) < MinCommentLength {
		return "", ErrCommentTooShort
	}
	return comment, nil
}

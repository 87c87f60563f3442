package product

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/wichananm65/secondhand-market/internal/search"
)

var ErrForbidden = errors.New("only the seller can modify this product")

// MaxSuggestLimit caps the limit a client may ask for on suggestions.
const MaxSuggestLimit = 20

// ListResult is a page of products. Analytics is only present for text searches.
type ListResult struct {
	Items []Product `json:"items"`
	search.PageInfo
	*search.Analytics
}

type Service struct {
	repo         Repository
	uploader     ImageUploader
	suggestLimit int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, suggestLimit: search.DefaultSuggestLimit}
}

// WithUploader enables image uploads.
func (s *Service) WithUploader(u ImageUploader) *Service {
	s.uploader = u
	return s
}

// WithSuggestLimit sets the default number of product suggestions.
func (s *Service) WithSuggestLimit(n int) *Service {
	if n > 0 {
		s.suggestLimit = min(n, MaxSuggestLimit)
	}
	return s
}

func (s *Service) Search(ctx context.Context, q search.Query) (ListResult, error) {
	page, err := s.repo.Search(ctx, q)
	if err != nil {
		return ListResult{}, err
	}
	res := ListResult{
		Items:    page.Items,
		PageInfo: search.Paginate(page.Total, q.Page, q.PageSize),
	}
	if q.HasText() {
		a, err := s.repo.Analytics(ctx, q)
		if err != nil {
			return ListResult{}, err
		}
		res.Analytics = &a
	}
	return res, nil
}

// Suggest answers type-ahead lookups. Text shorter than two characters yields
// empty lists rather than an error.
func (s *Service) Suggest(ctx context.Context, text string, limit int) (search.Suggestions, error) {
	if !search.Suggestible(text) {
		return search.EmptySuggestions(), nil
	}
	if limit <= 0 {
		limit = s.suggestLimit
	}
	return s.repo.Suggest(ctx, strings.TrimSpace(text), min(limit, MaxSuggestLimit))
}

func (s *Service) GetByID(ctx context.Context, id string) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create lists a product. Sellers without a session get a generated
// `anon-` identifier.
func (s *Service) Create(ctx context.Context, req CreateRequest, seller Seller) (Product, error) {
	if seller.ID == "" {
		seller.ID = "anon-" + uuid.NewString()
		seller.Name = ""
	}
	name := strings.TrimSpace(seller.Name)
	if name == "" {
		name = strings.TrimSpace(req.SellerName)
	}
	if name == "" {
		name = AnonymousSeller
	}
	p := Product{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		SellerID:    seller.ID,
		SellerName:  name,
		Images:      req.Images,
		Image:       req.Image,
	}
	p.Normalize()
	return s.repo.Create(ctx, p)
}

// Delete removes a listing owned by userID.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.SellerID != userID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) UploadImage(ctx context.Context, file io.Reader, filename string, size int64) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadsDisabled
	}
	if err := ValidateImage(filename, size); err != nil {
		return "", err
	}
	return s.uploader.Upload(ctx, file, filename)
}

func (s *Service) CountByCategory(ctx context.Context, category string) (int64, error) {
	return s.repo.CountByCategory(ctx, category)
}

func (s *Service) RenameCategory(ctx context.Context, from, to string) (int64, error) {
	return s.repo.RenameCategory(ctx, from, to)
}

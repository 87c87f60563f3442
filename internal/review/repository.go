package review

import (
	"context"
	"errors"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("review not found")
	ErrInvalidID = errors.New("invalid review id")
	// ErrDuplicate is the storage-level rejection of a second review for the
	// same product and user.
	ErrDuplicate = errors.New("review already exists for this product")
)

type Repository interface {
	// ListByProduct returns a product's reviews, newest first.
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
	GetByID(ctx context.Context, id string) (Review, error)
	FindByProductAndUser(ctx context.Context, productID, userID string) (Review, error)
	// Create must reject a duplicate (product, user) pair atomically.
	Create(ctx context.Context, r Review) (Review, error)
	Update(ctx context.Context, r Review) (Review, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, productID string) (Stats, error)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// roundRating keeps one decimal place.
func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Review
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{storage: make([]Review, 0)}
}

func (r *InMemoryRepository) ListByProduct(_ context.Context, productID string) ([]Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Review, 0)
	for _, rv := range r.storage {
		if rv.ProductID == productID {
			out = append(out, rv)
		}
	}
	slices.SortStableFunc(out, func(a, b Review) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Review, error) {
	oid, err := parseID(id)
	if err != nil {
		return Review{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rv := range r.storage {
		if rv.ID == oid {
			return rv, nil
		}
	}
	return Review{}, ErrNotFound
}

func (r *InMemoryRepository) FindByProductAndUser(_ context.Context, productID, userID string) (Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rv := range r.storage {
		if rv.ProductID == productID && rv.UserID == userID {
			return rv, nil
		}
	}
	return Review{}, ErrNotFound
}

// Create checks the (product, user) pair under the write lock, mirroring the
// unique index of the Mongo collection.
func (r *InMemoryRepository) Create(_ context.Context, rv Review) (Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.ProductID == rv.ProductID && existing.UserID == rv.UserID {
			return Review{}, ErrDuplicate
		}
	}
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	rv.CreatedAt, rv.UpdatedAt = now, now
	r.storage = append(r.storage, rv)
	return rv, nil
}

func (r *InMemoryRepository) Update(_ context.Context, rv Review) (Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == rv.ID {
			rv.CreatedAt = r.storage[i].CreatedAt
			rv.UpdatedAt = time.Now().UTC()
			r.storage[i] = rv
			return rv, nil
		}
	}
	return Review{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == oid {
			r.storage = append(r.storage[:i], r.storage[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) Stats(_ context.Context, productID string) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{RatingDistribution: emptyDistribution()}
	sum := 0
	for _, rv := range r.storage {
		if rv.ProductID != productID {
			continue
		}
		st.TotalReviews++
		sum += rv.Rating
		st.RatingDistribution[strconv.Itoa(rv.Rating)]++
	}
	if st.TotalReviews > 0 {
		st.AverageRating = roundRating(float64(sum) / float64(st.TotalReviews))
	}
	return st, nil
}

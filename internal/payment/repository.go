package payment

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound  = errors.New("payment not found")
	ErrDuplicate = errors.New("transaction id already exists")
	// ErrStaleStatus means the payment left the expected status before the
	// update could apply.
	ErrStaleStatus = errors.New("payment status changed concurrently")
)

// Repository is the payment ledger.
type Repository interface {
	Create(ctx context.Context, p Payment) (Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (Payment, error)
	GetByProcessorRef(ctx context.Context, ref string) (Payment, error)
	ListByEmail(ctx context.Context, email string) ([]Payment, error)
	// UpdateStatus moves the payment to status `to` only while it is still in
	// `from`.
	UpdateStatus(ctx context.Context, transactionID string, from, to Status, at time.Time) (Payment, error)
	// EventSeen reports whether a webhook event id was already applied.
	EventSeen(ctx context.Context, eventID string) (bool, error)
	RecordEvent(ctx context.Context, eventID string) error
}

type InMemoryRepository struct {
	mu       sync.Mutex
	payments []Payment
	events   map[string]struct{}
	nextID   int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{events: make(map[string]struct{}), nextID: 1}
}

func (r *InMemoryRepository) Create(_ context.Context, p Payment) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.TransactionID == p.TransactionID {
			return Payment{}, ErrDuplicate
		}
	}
	p.ID = r.nextID
	r.nextID++
	r.payments = append(r.payments, p)
	return p, nil
}

func (r *InMemoryRepository) find(match func(Payment) bool) (int, bool) {
	for i, p := range r.payments {
		if match(p) {
			return i, true
		}
	}
	return -1, false
}

func (r *InMemoryRepository) GetByTransactionID(_ context.Context, transactionID string) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(func(p Payment) bool { return p.TransactionID == transactionID })
	if !ok {
		return Payment{}, ErrNotFound
	}
	return r.payments[i], nil
}

func (r *InMemoryRepository) GetByProcessorRef(_ context.Context, ref string) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(func(p Payment) bool { return ref != "" && p.ProcessorRef == ref })
	if !ok {
		return Payment{}, ErrNotFound
	}
	return r.payments[i], nil
}

// ListByEmail returns newest first.
func (r *InMemoryRepository) ListByEmail(_ context.Context, email string) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Payment, 0)
	for _, p := range r.payments {
		if strings.EqualFold(p.Email, email) {
			out = append(out, p)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, transactionID string, from, to Status, at time.Time) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(func(p Payment) bool { return p.TransactionID == transactionID })
	if !ok {
		return Payment{}, ErrNotFound
	}
	if r.payments[i].Status != from {
		return Payment{}, ErrStaleStatus
	}
	r.payments[i].Status = to
	r.payments[i].UpdatedAt = at
	return r.payments[i], nil
}

func (r *InMemoryRepository) EventSeen(_ context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.events[eventID]
	return ok, nil
}

func (r *InMemoryRepository) RecordEvent(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[eventID] = struct{}{}
	return nil
}

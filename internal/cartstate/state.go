// Package cartstate is the client-resident cart: quantities and selection
// kept locally, mirrored to the server cart once the session is
// authenticated, with per-item feedback state for optimistic updates.
package cartstate

import (
	"context"
	"errors"
	"time"

	"github.com/wichananm65/secondhand-market/internal/cart"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNotInCart       = errors.New("product is not in the cart")
)

// DefaultResetAfter is how long a finished item state stays visible.
const DefaultResetAfter = 2 * time.Second

// Phase is the transient feedback state of one cart item. It is view state
// only: it never changes quantities and is never persisted.
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Succeeded:
		return "success"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// ItemState is the feedback state of a cart item and, when Failed, the cause.
type ItemState struct {
	Phase Phase
	Err   error
}

// Store persists cart lines between sessions.
type Store interface {
	Load() ([]cart.Line, error)
	Save(lines []cart.Line) error
}

// Remote is the server-resident cart reachable through an authenticated session.
type Remote interface {
	Get(ctx context.Context) ([]cart.Line, error)
	Add(ctx context.Context, line cart.Line) ([]cart.Line, error)
	SetQuantity(ctx context.Context, productID string, qty int) ([]cart.Line, error)
	Remove(ctx context.Context, productID string) ([]cart.Line, error)
	Clear(ctx context.Context) error
	Merge(ctx context.Context, local []cart.Line, policy string) ([]cart.Line, error)
}

type memoryStore struct{ lines []cart.Line }

func (s *memoryStore) Load() ([]cart.Line, error) { return append([]cart.Line(nil), s.lines...), nil }

func (s *memoryStore) Save(lines []cart.Line) error {
	s.lines = append([]cart.Line(nil), lines...)
	return nil
}

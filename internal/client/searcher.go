package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/search"
)

// ErrSuperseded is returned by a search that a newer one replaced. It
// matches context.Canceled.
var ErrSuperseded = fmt.Errorf("search superseded: %w", context.Canceled)

// slot tracks the single request of one kind that may be in flight.
type slot struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func (s *slot) begin(ctx context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.seq++
	s.cancel = cancel
	return ctx, s.seq
}

// end releases seq and reports whether it was still the latest request.
func (s *slot) end(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

func latest[T any](s *slot, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	ctx, seq := s.begin(ctx)
	res, err := fn(ctx)
	if !s.end(seq) {
		var zero T
		return zero, ErrSuperseded
	}
	return res, err
}

// Searcher issues catalog searches and suggestion lookups where only the most
// recent call of each kind matters: starting one cancels the previous.
type Searcher struct {
	c       *Client
	search  slot
	suggest slot
}

func (c *Client) Searcher() *Searcher {
	return &Searcher{c: c}
}

func (s *Searcher) Search(ctx context.Context, q search.Query) (product.ListResult, error) {
	return latest(&s.search, ctx, func(ctx context.Context) (product.ListResult, error) {
		return s.c.SearchProducts(ctx, q)
	})
}

// Suggest skips the request for text shorter than search.MinSuggestLength.
func (s *Searcher) Suggest(ctx context.Context, text string, limit int) (search.Suggestions, error) {
	return latest(&s.suggest, ctx, func(ctx context.Context) (search.Suggestions, error) {
		if !search.Suggestible(text) {
			return search.EmptySuggestions(), nil
		}
		return s.c.Suggestions(ctx, text, limit)
	})
}

package cartstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/secondhand-market/internal/cart"
	"github.com/wichananm65/secondhand-market/internal/product"
)

type itemState struct {
	ItemState
	gen uint64
}

// Manager owns the cart of one client session. Mutations apply locally
// first; when a Remote is attached they are mirrored to it and undone if the
// remote call fails.
type Manager struct {
	mu       sync.Mutex
	lines    map[string]cart.Line
	selected map[string]bool
	states   map[string]itemState
	gen      uint64

	store      Store
	remote     Remote
	policy     cart.MergePolicy
	resetAfter time.Duration
	afterFunc  func(time.Duration, func())
	now        func() time.Time
}

type Option func(*Manager)

func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

func WithPolicy(p cart.MergePolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithResetAfter(d time.Duration) Option {
	return func(m *Manager) { m.resetAfter = d }
}

// WithClock replaces the time source and the timer used to reset item
// states back to Idle. afterFunc must not run f before returning.
func WithClock(now func() time.Time, afterFunc func(time.Duration, func())) Option {
	return func(m *Manager) {
		m.now = now
		m.afterFunc = afterFunc
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{
		lines:      make(map[string]cart.Line),
		selected:   make(map[string]bool),
		states:     make(map[string]itemState),
		store:      &memoryStore{},
		policy:     cart.DefaultPolicy,
		resetAfter: DefaultResetAfter,
		afterFunc:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hydrate replaces the in-memory cart with the stored one.
func (m *Manager) Hydrate() error {
	lines, err := m.store.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(lines)
	return nil
}

// AddToCart adds qty of p, incrementing the line if it already exists. The
// line keeps the snapshot taken when it was first added.
func (m *Manager) AddToCart(ctx context.Context, p product.Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	id := p.ID.Hex()

	m.mu.Lock()
	added := cart.Line{ProductID: id, Product: cart.SnapshotOf(p), Quantity: qty, AddedAt: m.now()}
	if existing, ok := m.lines[id]; ok {
		existing.Quantity += qty
		m.lines[id] = existing
	} else {
		m.lines[id] = added
	}
	remote := m.beginLocked(id)
	m.mu.Unlock()

	var err error
	if remote != nil {
		_, err = remote.Add(ctx, added)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if l, ok := m.lines[id]; ok {
			l.Quantity -= qty
			if l.Quantity < 1 {
				m.dropLocked(id)
			} else {
				m.lines[id] = l
			}
		}
	}
	m.finishLocked(id, err)
	return err
}

// UpdateQuantity sets the quantity of a line; below 1 removes it.
func (m *Manager) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return m.RemoveFromCart(ctx, productID)
	}

	m.mu.Lock()
	prev, ok := m.lines[productID]
	if !ok {
		m.mu.Unlock()
		return ErrNotInCart
	}
	next := prev
	next.Quantity = qty
	m.lines[productID] = next
	remote := m.beginLocked(productID)
	m.mu.Unlock()

	var err error
	if remote != nil {
		_, err = remote.SetQuantity(ctx, productID, qty)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lines[productID] = prev
	}
	m.finishLocked(productID, err)
	return err
}

func (m *Manager) RemoveFromCart(ctx context.Context, productID string) error {
	m.mu.Lock()
	prev, ok := m.lines[productID]
	if !ok {
		m.mu.Unlock()
		return ErrNotInCart
	}
	wasSelected := m.selected[productID]
	m.dropLocked(productID)
	remote := m.beginLocked(productID)
	m.mu.Unlock()

	var err error
	if remote != nil {
		_, err = remote.Remove(ctx, productID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lines[productID] = prev
		if wasSelected {
			m.selected[productID] = true
		}
	}
	m.finishLocked(productID, err)
	return err
}

// ClearCart empties the cart. On a remote failure every line is restored.
func (m *Manager) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	prevLines, prevSelected := m.lines, m.selected
	m.lines = make(map[string]cart.Line)
	m.selected = make(map[string]bool)
	m.persistLocked()
	remote := m.remote
	m.mu.Unlock()

	if remote == nil {
		return nil
	}
	err := remote.Clear(ctx)
	if err == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range prevLines {
		if _, ok := m.lines[id]; !ok {
			m.lines[id] = l
			if prevSelected[id] {
				m.selected[id] = true
			}
		}
		m.gen++
		m.states[id] = itemState{ItemState: ItemState{Phase: Failed, Err: err}, gen: m.gen}
		m.scheduleResetLocked(id, m.gen)
	}
	m.persistLocked()
	return err
}

// CompleteCheckout removes the purchased lines: the selection when there is
// one, otherwise the whole cart.
func (m *Manager) CompleteCheckout(ctx context.Context) error {
	m.mu.Lock()
	var ids []string
	for id := range m.selected {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return m.ClearCart(ctx)
	}
	for _, id := range ids {
		if err := m.RemoveFromCart(ctx, id); err != nil && !errors.Is(err, ErrNotInCart) {
			return err
		}
	}
	return nil
}

func (m *Manager) GetItemQuantity(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[productID].Quantity
}

func (m *Manager) Lines() []cart.Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.linesLocked()
}

func (m *Manager) TotalItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice is the exact sum of quantity times snapshot price.
func (m *Manager) TotalPrice() decimal.Decimal {
	return cart.Total(m.Lines())
}

// ToggleSelect flips whether a line is part of the next checkout and
// reports the new value.
func (m *Manager) ToggleSelect(productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[productID]; !ok {
		return false, ErrNotInCart
	}
	if m.selected[productID] {
		delete(m.selected, productID)
		return false, nil
	}
	m.selected[productID] = true
	return true, nil
}

func (m *Manager) Selected() []cart.Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cart.Line, 0, len(m.selected))
	for id := range m.selected {
		out = append(out, m.lines[id])
	}
	cart.SortLines(out)
	return out
}

func (m *Manager) SelectedTotal() decimal.Decimal {
	return cart.Total(m.Selected())
}

// ItemState reports the feedback state of a line; Idle when none is pending.
func (m *Manager) ItemState(productID string) ItemState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[productID].ItemState
}

// Authenticated reports whether mutations are mirrored to a server cart.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remote != nil
}

// Login reconciles the local cart into the server cart with the configured
// merge policy and mirrors every later mutation to it. On failure the
// manager stays a guest cart and keeps its lines.
func (m *Manager) Login(ctx context.Context, remote Remote) error {
	local := m.Lines()
	merged, err := remote.Merge(ctx, local, m.policy.Name())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote = remote
	m.replaceLocked(merged)
	m.persistLocked()
	return nil
}

// Refresh reloads the lines from the server cart.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	remote := m.remote
	m.mu.Unlock()
	if remote == nil {
		return nil
	}
	lines, err := remote.Get(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(lines)
	m.persistLocked()
	return nil
}

// Logout detaches the server cart and clears the local one.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote = nil
	m.replaceLocked(nil)
	m.states = make(map[string]itemState)
	m.persistLocked()
}

func (m *Manager) replaceLocked(lines []cart.Line) {
	m.lines = make(map[string]cart.Line, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		m.lines[l.ProductID] = l
	}
	for id := range m.selected {
		if _, ok := m.lines[id]; !ok {
			delete(m.selected, id)
		}
	}
}

func (m *Manager) dropLocked(id string) {
	delete(m.lines, id)
	delete(m.selected, id)
}

func (m *Manager) linesLocked() []cart.Line {
	out := make([]cart.Line, 0, len(m.lines))
	for _, l := range m.lines {
		out = append(out, l)
	}
	cart.SortLines(out)
	return out
}

// beginLocked marks id as Loading, persists the optimistic change and
// returns the remote to mirror it to.
func (m *Manager) beginLocked(id string) Remote {
	m.gen++
	m.states[id] = itemState{ItemState: ItemState{Phase: Loading}, gen: m.gen}
	m.persistLocked()
	return m.remote
}

func (m *Manager) finishLocked(id string, err error) {
	st := ItemState{Phase: Succeeded}
	if err != nil {
		st = ItemState{Phase: Failed, Err: err}
		m.persistLocked()
	}
	m.gen++
	m.states[id] = itemState{ItemState: st, gen: m.gen}
	m.scheduleResetLocked(id, m.gen)
}

// scheduleResetLocked returns id to Idle after resetAfter unless a newer
// state has replaced it meanwhile.
func (m *Manager) scheduleResetLocked(id string, gen uint64) {
	m.afterFunc(m.resetAfter, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if st, ok := m.states[id]; ok && st.gen == gen {
			delete(m.states, id)
		}
	})
}

func (m *Manager) persistLocked() {
	if err := m.store.Save(m.linesLocked()); err != nil {
		log.Warnf("cart: persist failed: %v", err)
	}
}

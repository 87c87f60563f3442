package cartstate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/secondhand-market/internal/cart"
	"github.com/wichananm65/secondhand-market/internal/product"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errOffline = errors.New("offline")

// fakeRemote is a server cart for one user that can be made to fail.
type fakeRemote struct {
	repo   *cart.InMemoryRepository
	fail   bool
	policy string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{repo: cart.NewInMemoryRepository()}
}

func (f *fakeRemote) Get(ctx context.Context) ([]cart.Line, error) {
	return f.repo.Get(ctx, "u1")
}

func (f *fakeRemote) Add(ctx context.Context, line cart.Line) ([]cart.Line, error) {
	if f.fail {
		return nil, errOffline
	}
	return f.repo.Add(ctx, "u1", line)
}

func (f *fakeRemote) SetQuantity(ctx context.Context, productID string, qty int) ([]cart.Line, error) {
	if f.fail {
		return nil, errOffline
	}
	return f.repo.SetQuantity(ctx, "u1", productID, qty)
}

func (f *fakeRemote) Remove(ctx context.Context, productID string) ([]cart.Line, error) {
	if f.fail {
		return nil, errOffline
	}
	return f.repo.Remove(ctx, "u1", productID)
}

func (f *fakeRemote) Clear(ctx context.Context) error {
	if f.fail {
		return errOffline
	}
	return f.repo.Clear(ctx, "u1")
}

func (f *fakeRemote) Merge(ctx context.Context, local []cart.Line, policy string) ([]cart.Line, error) {
	if f.fail {
		return nil, errOffline
	}
	f.policy = policy
	p, err := cart.PolicyByName(policy)
	if err != nil {
		return nil, err
	}
	return f.repo.Merge(ctx, "u1", local, p)
}

// manualTimers collects reset callbacks so tests decide when they fire.
type manualTimers struct {
	mu    sync.Mutex
	fns   []func()
	delay time.Duration
}

func (m *manualTimers) after(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	m.fns = append(m.fns, f)
}

func (m *manualTimers) fire() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func newManager(opts ...Option) (*Manager, *manualTimers) {
	timers := &manualTimers{}
	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return New(append([]Option{WithClock(now, timers.after)}, opts...)...), timers
}

func listing(title string, price float64) product.Product {
	p := product.Product{ID: primitive.NewObjectID(), Title: title, Price: price, SellerName: "Ann"}
	p.Normalize()
	return p
}

func TestAddToCart_IncrementsAndTotals(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()
	p := listing("Desk lamp", 10)

	require.NoError(t, m.AddToCart(ctx, p, 2))
	require.NoError(t, m.AddToCart(ctx, p, 1))

	lines := m.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, m.GetItemQuantity(p.ID.Hex()))
	assert.Equal(t, "30", m.TotalPrice().String())
	assert.Equal(t, 3, m.TotalItems())

	require.NoError(t, m.UpdateQuantity(ctx, p.ID.Hex(), 0))
	assert.Empty(t, m.Lines())
	assert.Zero(t, m.GetItemQuantity(p.ID.Hex()))

	assert.ErrorIs(t, m.AddToCart(ctx, p, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, m.UpdateQuantity(ctx, "missing", 2), ErrNotInCart)
	assert.ErrorIs(t, m.RemoveFromCart(ctx, "missing"), ErrNotInCart)
}

func TestTotalPrice_IsExact(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()
	require.NoError(t, m.AddToCart(ctx, listing("a", 0.1), 1))
	require.NoError(t, m.AddToCart(ctx, listing("b", 0.2), 1))
	assert.Equal(t, "0.3", m.TotalPrice().String())
}

func TestSelection(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()
	a, b := listing("a", 5), listing("b", 7.5)
	require.NoError(t, m.AddToCart(ctx, a, 2))
	require.NoError(t, m.AddToCart(ctx, b, 1))

	on, err := m.ToggleSelect(b.ID.Hex())
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, "7.5", m.SelectedTotal().String())

	on, _ = m.ToggleSelect(b.ID.Hex())
	assert.False(t, on)
	assert.Empty(t, m.Selected())

	_, err = m.ToggleSelect("missing")
	assert.ErrorIs(t, err, ErrNotInCart)

	// removing a line drops it from the selection
	_, _ = m.ToggleSelect(a.ID.Hex())
	require.NoError(t, m.RemoveFromCart(ctx, a.ID.Hex()))
	assert.Empty(t, m.Selected())
}

func TestCompleteCheckout_RemovesSelectionOnly(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()
	a, b := listing("a", 5), listing("b", 7)
	require.NoError(t, m.AddToCart(ctx, a, 1))
	require.NoError(t, m.AddToCart(ctx, b, 1))
	_, _ = m.ToggleSelect(a.ID.Hex())

	require.NoError(t, m.CompleteCheckout(ctx))
	lines := m.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, b.ID.Hex(), lines[0].ProductID)

	require.NoError(t, m.CompleteCheckout(ctx))
	assert.Empty(t, m.Lines())
}

func TestItemState_ResetsToIdle(t *testing.T) {
	m, timers := newManager()
	ctx := context.Background()
	p := listing("a", 1)

	require.NoError(t, m.AddToCart(ctx, p, 1))
	assert.Equal(t, Succeeded, m.ItemState(p.ID.Hex()).Phase)
	assert.Equal(t, DefaultResetAfter, timers.delay)

	timers.fire()
	assert.Equal(t, Idle, m.ItemState(p.ID.Hex()).Phase)
}

func TestItemState_StaleTimerIgnored(t *testing.T) {
	remote := newFakeRemote()
	m, timers := newManager()
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, remote))
	p := listing("a", 1)

	require.NoError(t, m.AddToCart(ctx, p, 1))
	first := timers.fns
	timers.fns = nil

	remote.fail = true
	require.Error(t, m.UpdateQuantity(ctx, p.ID.Hex(), 4))

	// the reset scheduled by the first add must not clear the newer error
	for _, f := range first {
		f()
	}
	st := m.ItemState(p.ID.Hex())
	assert.Equal(t, Failed, st.Phase)
	assert.ErrorIs(t, st.Err, errOffline)

	timers.fire()
	assert.Equal(t, Idle, m.ItemState(p.ID.Hex()).Phase)
}

func TestRemoteFailure_RollsBack(t *testing.T) {
	remote := newFakeRemote()
	m, _ := newManager()
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, remote))
	p, q := listing("a", 10), listing("b", 3)
	require.NoError(t, m.AddToCart(ctx, p, 2))
	require.NoError(t, m.AddToCart(ctx, q, 1))

	remote.fail = true

	assert.ErrorIs(t, m.AddToCart(ctx, p, 1), errOffline)
	assert.Equal(t, 2, m.GetItemQuantity(p.ID.Hex()))

	assert.ErrorIs(t, m.AddToCart(ctx, listing("c", 1), 1), errOffline)
	assert.Len(t, m.Lines(), 2)

	assert.ErrorIs(t, m.UpdateQuantity(ctx, p.ID.Hex(), 9), errOffline)
	assert.Equal(t, 2, m.GetItemQuantity(p.ID.Hex()))

	_, _ = m.ToggleSelect(q.ID.Hex())
	assert.ErrorIs(t, m.RemoveFromCart(ctx, q.ID.Hex()), errOffline)
	assert.Equal(t, 1, m.GetItemQuantity(q.ID.Hex()))
	assert.Len(t, m.Selected(), 1, "selection is restored with the line")

	assert.ErrorIs(t, m.ClearCart(ctx), errOffline)
	assert.Len(t, m.Lines(), 2)
	assert.Equal(t, Failed, m.ItemState(p.ID.Hex()).Phase)

	// the server never saw the failed mutations
	server, err := remote.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "23", cart.Total(server).String())
}

func TestLogin_MergesGuestCart(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	p, q := listing("a", 10), listing("b", 4)
	_, err := remote.repo.Add(ctx, "u1", cart.Line{ProductID: p.ID.Hex(), Product: cart.SnapshotOf(p), Quantity: 2})
	require.NoError(t, err)

	m, _ := newManager()
	require.NoError(t, m.AddToCart(ctx, p, 3))
	require.NoError(t, m.AddToCart(ctx, q, 1))
	assert.False(t, m.Authenticated())

	require.NoError(t, m.Login(ctx, remote))
	assert.True(t, m.Authenticated())
	assert.Equal(t, "sum", remote.policy)
	assert.Equal(t, 5, m.GetItemQuantity(p.ID.Hex()))
	assert.Equal(t, 1, m.GetItemQuantity(q.ID.Hex()))

	// later mutations are mirrored
	require.NoError(t, m.UpdateQuantity(ctx, q.ID.Hex(), 4))
	server, _ := remote.Get(ctx)
	assert.Equal(t, "66", cart.Total(server).String())

	m.Logout()
	assert.False(t, m.Authenticated())
	assert.Empty(t, m.Lines())
}

func TestLogin_MaxPolicy(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	p := listing("a", 10)
	_, err := remote.repo.Add(ctx, "u1", cart.Line{ProductID: p.ID.Hex(), Product: cart.SnapshotOf(p), Quantity: 2})
	require.NoError(t, err)

	m, _ := newManager(WithPolicy(cart.MaxPolicy))
	require.NoError(t, m.AddToCart(ctx, p, 3))
	require.NoError(t, m.Login(ctx, remote))
	assert.Equal(t, "max", remote.policy)
	assert.Equal(t, 3, m.GetItemQuantity(p.ID.Hex()))
}

func TestLogin_FailureKeepsGuestCart(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	m, _ := newManager()
	ctx := context.Background()
	require.NoError(t, m.AddToCart(ctx, listing("a", 1), 2))

	assert.ErrorIs(t, m.Login(ctx, remote), errOffline)
	assert.False(t, m.Authenticated())
	assert.Len(t, m.Lines(), 1)
}

func TestFileStore_PersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cart.json")
	ctx := context.Background()
	p := listing("Desk lamp", 12.5)

	m, _ := newManager(WithStore(NewFileStore(path)))
	require.NoError(t, m.Hydrate(), "a missing file is an empty cart")
	require.NoError(t, m.AddToCart(ctx, p, 2))
	_, _ = m.ToggleSelect(p.ID.Hex())

	restored, _ := newManager(WithStore(NewFileStore(path)))
	require.NoError(t, restored.Hydrate())
	lines := restored.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Desk lamp", lines[0].Product.Title)
	assert.Equal(t, "25", restored.TotalPrice().String())
	assert.Empty(t, restored.Selected(), "selection is not persisted")
	assert.Equal(t, Idle, restored.ItemState(p.ID.Hex()).Phase, "item states are not persisted")

	restored.Logout()
	again, _ := newManager(WithStore(NewFileStore(path)))
	require.NoError(t, again.Hydrate())
	assert.Empty(t, again.Lines())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "success", Succeeded.String())
	assert.Equal(t, "error", Failed.String())
}

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/cart"
	"github.com/wichananm65/secondhand-market/internal/cartstate"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/router"
	"github.com/wichananm65/secondhand-market/internal/search"
	"github.com/wichananm65/secondhand-market/internal/user"
)

type backend struct {
	url      string
	products []product.Product
}

// newBackend serves the product, auth and cart routes over a real listener.
func newBackend(t *testing.T) backend {
	t.Helper()
	ctx := context.Background()

	catalog := product.NewInMemoryRepository(nil)
	var seeded []product.Product
	for _, p := range []product.Product{
		{Title: "Vintage leather jacket", Category: "Clothing", Price: 40, SellerName: "Ann"},
		{Title: "Leather boots", Category: "Clothing", Price: 25, SellerName: "Bo"},
		{Title: "Desk lamp", Category: "Home", Price: 10, SellerName: "Cy"},
	} {
		created, err := catalog.Create(ctx, p)
		require.NoError(t, err)
		seeded = append(seeded, created)
	}

	users := user.NewService(user.NewInMemoryRepository(nil))
	_, err := users.Register(ctx, "Dee", "dee@example.com", "secret123")
	require.NoError(t, err)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler})
	router.Mount(app, issuer, product.NewHandler(product.NewService(catalog)).Routes()...)
	router.Mount(app, issuer, user.NewHandler(users, issuer).Routes()...)
	router.Mount(app, issuer, cart.NewHandler(cart.NewService(cart.NewInMemoryRepository(), catalog)).Routes()...)

	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return backend{url: srv.URL, products: seeded}
}

func TestSearchProducts(t *testing.T) {
	b := newBackend(t)
	c := New(b.url)

	res, err := c.SearchProducts(context.Background(), search.Query{Text: "leather", PageSize: 1, SortField: search.FieldPrice, SortDirection: search.Ascending})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Leather boots", res.Items[0].Title)
	assert.EqualValues(t, 2, res.TotalCount)
	assert.True(t, res.HasNext)
	require.NotNil(t, res.Analytics)
	assert.EqualValues(t, 2, res.ResultCountsByCategory["Clothing"])

	sug, err := c.Suggestions(context.Background(), "lea", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, sug.Products)
	assert.Contains(t, sug.Keywords, "leather")

	p, err := c.Product(context.Background(), b.products[2].ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", p.Title)
}

func TestAPIError(t *testing.T) {
	b := newBackend(t)
	c := New(b.url)

	_, err := c.Product(context.Background(), "not-an-id")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = c.Login(context.Background(), "dee@example.com", "wrong-password")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Message)

	_, err = c.Cart().Get(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestRemoteCart_WithCartState(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	lamp, jacket := b.products[2], b.products[0]

	authed, err := New(b.url).Login(ctx, "dee@example.com", "secret123")
	require.NoError(t, err)
	remote := authed.Cart()
	_, err = remote.Add(ctx, cart.Line{ProductID: lamp.ID.Hex(), Quantity: 1})
	require.NoError(t, err)

	// guest cart built before logging in
	m := cartstate.New()
	require.NoError(t, m.AddToCart(ctx, lamp, 2))
	require.NoError(t, m.AddToCart(ctx, jacket, 1))

	require.NoError(t, m.Login(ctx, remote))
	assert.Equal(t, 3, m.GetItemQuantity(lamp.ID.Hex()))
	assert.Equal(t, "70", m.TotalPrice().String())

	require.NoError(t, m.UpdateQuantity(ctx, jacket.ID.Hex(), 2))
	require.NoError(t, m.RemoveFromCart(ctx, lamp.ID.Hex()))

	server, err := remote.Get(ctx)
	require.NoError(t, err)
	require.Len(t, server, 1)
	assert.Equal(t, jacket.ID.Hex(), server[0].ProductID)
	assert.Equal(t, 2, server[0].Quantity)

	require.NoError(t, m.ClearCart(ctx))
	server, err = remote.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, server)
}

func TestSearcher_CancelsSupersededSearch(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "slow" {
			close(started)
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"items":[],"totalCount":0,"currentPage":1,"totalPages":1}}`))
	}))
	defer srv.Close()

	s := New(srv.URL).Searcher()
	slowErr := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), search.Query{Text: "slow"})
		slowErr <- err
	}()
	<-started

	res, err := s.Search(context.Background(), search.Query{Text: "fast"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	select {
	case err := <-slowErr:
		assert.ErrorIs(t, err, ErrSuperseded)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("superseded search was not cancelled")
	}
}

func TestSearcher_ShortSuggestionSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	defer srv.Close()

	sug, err := New(srv.URL).Searcher().Suggest(context.Background(), "a", 5)
	require.NoError(t, err)
	assert.Empty(t, sug.Products)
	assert.NotNil(t, sug.Keywords)
}

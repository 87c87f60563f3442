package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wichananm65/secondhand-market/internal/cart"
)

// RemoteCart is the caller's server cart. It satisfies cartstate.Remote.
type RemoteCart struct {
	c *Client
}

// Cart returns the server cart of the authenticated caller.
func (c *Client) Cart() *RemoteCart {
	return &RemoteCart{c: c}
}

func (r *RemoteCart) call(ctx context.Context, method, path string, query url.Values, body any) ([]cart.Line, error) {
	var view cart.Cart
	if err := r.c.do(ctx, method, path, query, body, &view); err != nil {
		return nil, err
	}
	return view.Items, nil
}

func (r *RemoteCart) Get(ctx context.Context) ([]cart.Line, error) {
	return r.call(ctx, http.MethodGet, "/api/cart", nil, nil)
}

// Add sends the product and quantity of line; the server takes its own
// snapshot of the product.
func (r *RemoteCart) Add(ctx context.Context, line cart.Line) ([]cart.Line, error) {
	body := map[string]any{"productId": line.ProductID, "quantity": line.Quantity}
	return r.call(ctx, http.MethodPost, "/api/cart/items", nil, body)
}

func (r *RemoteCart) SetQuantity(ctx context.Context, productID string, qty int) ([]cart.Line, error) {
	return r.call(ctx, http.MethodPut, "/api/cart/items/"+url.PathEscape(productID), nil, map[string]int{"quantity": qty})
}

func (r *RemoteCart) Remove(ctx context.Context, productID string) ([]cart.Line, error) {
	return r.call(ctx, http.MethodDelete, "/api/cart/items/"+url.PathEscape(productID), nil, nil)
}

func (r *RemoteCart) Clear(ctx context.Context) error {
	_, err := r.call(ctx, http.MethodDelete, "/api/cart", nil, nil)
	return err
}

func (r *RemoteCart) Merge(ctx context.Context, local []cart.Line, policy string) ([]cart.Line, error) {
	var q url.Values
	if policy != "" {
		q = url.Values{"policy": {policy}}
	}
	if local == nil {
		local = []cart.Line{}
	}
	return r.call(ctx, http.MethodPost, "/api/cart/merge", q, map[string]any{"items": local})
}

// Package client is the Go client of the marketplace HTTP API, used by
// client-resident code such as the cart state manager and the search box.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/search"
)

// APIError is a non-2xx response decoded from the API's error body.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated returns a copy of c that sends token as a bearer credential.
func (c *Client) Authenticated(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// do sends a JSON request and decodes the data field of the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	var env envelope
	if res.StatusCode >= 300 {
		var failure apperror.Response
		_ = json.Unmarshal(raw, &failure)
		if failure.Message == "" {
			failure.Message = http.StatusText(res.StatusCode)
		}
		return &APIError{Status: res.StatusCode, Message: failure.Message, Detail: failure.Error}
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// SearchProducts runs a catalog listing query.
func (c *Client) SearchProducts(ctx context.Context, q search.Query) (product.ListResult, error) {
	var res product.ListResult
	err := c.do(ctx, http.MethodGet, "/api/products", q.Values(), nil, &res)
	return res, err
}

func (c *Client) Suggestions(ctx context.Context, text string, limit int) (search.Suggestions, error) {
	q := url.Values{"q": {text}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res search.Suggestions
	err := c.do(ctx, http.MethodGet, "/api/products/search/suggestions", q, nil, &res)
	return res, err
}

func (c *Client) Product(ctx context.Context, id string) (product.Product, error) {
	var p product.Product
	err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, nil, &p)
	return p, err
}

// Login exchanges credentials for a token and returns a client carrying it.
func (c *Client) Login(ctx context.Context, email, password string) (*Client, error) {
	var res struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &res); err != nil {
		return nil, err
	}
	return c.Authenticated(res.Token), nil
}

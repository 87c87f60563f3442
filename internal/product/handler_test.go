package product

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth/authtest"
	"github.com/wichananm65/secondhand-market/internal/router"
	"github.com/wichananm65/secondhand-market/internal/search"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listBody struct {
	Items []Product `json:"items"`
	search.PageInfo
	ResultCountsByCategory map[string]int64        `json:"resultCountsByCategory"`
	PriceRangeStats        *search.PriceRangeStats `json:"priceRangeStats"`
}

func seedProducts(n int) []Product {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Product, 0, n)
	for i := 0; i < n; i++ {
		cat := "Books"
		if i%2 == 1 {
			cat = "Home"
		}
		out = append(out, Product{
			ID:          primitive.NewObjectID(),
			Title:       fmt.Sprintf("Item %02d", i),
			Description: "second hand",
			Category:    cat,
			Price:       float64(10 + i),
			SellerID:    "seller-1",
			SellerName:  "Ann",
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}

func newTestApp(repo Repository, uploader ImageUploader) *fiber.App {
	svc := NewService(repo)
	if uploader != nil {
		svc.WithUploader(uploader)
	}
	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler})
	router.Mount(app, authtest.Gate{}, NewHandler(svc).Routes()...)
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := app.Test(req)
	require.NoError(t, err)
	var env envelope
	raw, _ := io.ReadAll(res.Body)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return res.StatusCode, env
}

func TestListProducts_Pagination(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(seedProducts(20)), nil)

	status, env := do(t, app, "GET", "/api/products?page=2&limit=12", nil, nil)
	require.Equal(t, fiber.StatusOK, status)

	var body listBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Items, 8)
	assert.Equal(t, int64(20), body.TotalCount)
	assert.Equal(t, 2, body.TotalPages)
	assert.False(t, body.HasNext)
	assert.True(t, body.HasPrev)
	assert.Nil(t, body.PriceRangeStats, "analytics only accompany text searches")
	// newest first: page 2 starts at the 13th newest item
	assert.Equal(t, "Item 07", body.Items[0].Title)
}

func TestListProducts_BlankSearchMatchesNoSearch(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(seedProducts(5)), nil)

	_, plain := do(t, app, "GET", "/api/products", nil, nil)
	_, blank := do(t, app, "GET", "/api/products?search=%20%20", nil, nil)
	assert.JSONEq(t, string(plain.Data), string(blank.Data))
}

func TestListProducts_TextSearchWithAnalytics(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(seedProducts(6)), nil)

	_, env := do(t, app, "GET", "/api/products?search=item&minPrice=11&maxPrice=14&sortBy=price&sortOrder=asc", nil, nil)
	var body listBody
	require.NoError(t, json.Unmarshal(env.Data, &body))

	require.Len(t, body.Items, 4)
	for _, p := range body.Items {
		assert.GreaterOrEqual(t, p.Price, 11.0)
		assert.LessOrEqual(t, p.Price, 14.0)
	}
	assert.Equal(t, 11.0, body.Items[0].Price)
	require.NotNil(t, body.PriceRangeStats)
	assert.Equal(t, search.PriceRangeStats{Min: 11, Max: 14, Average: 12.5}, *body.PriceRangeStats)
	assert.Equal(t, map[string]int64{"Books": 2, "Home": 2}, body.ResultCountsByCategory)
}

func TestListProducts_CategoryFilter(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(seedProducts(6)), nil)

	_, env := do(t, app, "GET", "/api/products?category=Home", nil, nil)
	var body listBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Items, 3)

	_, env = do(t, app, "GET", "/api/products?category=all", nil, nil)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Items, 6)
}

func TestSuggestions(t *testing.T) {
	seed := []Product{
		{Title: "Vintage lamp", Category: "Home", Price: 12, CreatedAt: time.Now()},
		{Title: "Brass lamp", Category: "Home", Price: 30, CreatedAt: time.Now()},
		{Title: "Lampshade book", Category: "Lamps & Lighting", Price: 5, CreatedAt: time.Now()},
	}
	app := newTestApp(NewInMemoryRepository(seed), nil)

	_, env := do(t, app, "GET", "/api/products/search/suggestions?q=l", nil, nil)
	assert.JSONEq(t, `{"products":[],"categories":[],"keywords":[]}`, string(env.Data))

	_, env = do(t, app, "GET", "/api/products/search/suggestions?q=lamp&limit=2", nil, nil)
	var s search.Suggestions
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Len(t, s.Products, 2)
	assert.Equal(t, []string{"Lamps & Lighting"}, s.Categories)
	assert.Contains(t, s.Keywords, "lamp")
}

func TestGetProduct(t *testing.T) {
	seed := seedProducts(1)
	app := newTestApp(NewInMemoryRepository(seed), nil)

	status, env := do(t, app, "GET", "/api/products/"+seed[0].ID.Hex(), nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	var p Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, seed[0].Title, p.Title)
	assert.Equal(t, []string{PlaceholderImage}, p.Images)
	assert.Equal(t, PlaceholderImage, p.Image)

	status, env = do(t, app, "GET", "/api/products/"+primitive.NewObjectID().Hex(), nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)

	status, _ = do(t, app, "GET", "/api/products/not-an-id", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreateProduct(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(nil), nil)
	jsonHeader := map[string]string{"Content-Type": "application/json"}

	body := `{"title":"Road bike","description":"barely ridden","category":"Sports","price":120,"images":["a.jpg","b.jpg"]}`
	status, env := do(t, app, "POST", "/api/products", strings.NewReader(body), jsonHeader)
	require.Equal(t, fiber.StatusCreated, status)
	var p Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.True(t, strings.HasPrefix(p.SellerID, "anon-"))
	assert.Equal(t, AnonymousSeller, p.SellerName)
	assert.Equal(t, "a.jpg", p.Image)

	headers := map[string]string{
		"Content-Type":        "application/json",
		authtest.HeaderUserID: "u-1",
		authtest.HeaderName:   "Bea",
	}
	status, env = do(t, app, "POST", "/api/products", strings.NewReader(body), headers)
	require.Equal(t, fiber.StatusCreated, status)
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "u-1", p.SellerID)
	assert.Equal(t, "Bea", p.SellerName)

	status, env = do(t, app, "POST", "/api/products", strings.NewReader(`{"price":-1}`), jsonHeader)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", env.Message)
}

func TestDeleteProduct_RequiresOwner(t *testing.T) {
	seed := seedProducts(1)
	repo := NewInMemoryRepository(seed)
	app := newTestApp(repo, nil)
	path := "/api/products/" + seed[0].ID.Hex()

	status, _ := do(t, app, "DELETE", path, nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, "DELETE", path, nil, map[string]string{authtest.HeaderUserID: "someone-else"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, "DELETE", path, nil, map[string]string{authtest.HeaderUserID: "seller-1"})
	assert.Equal(t, fiber.StatusOK, status)

	_, err := repo.GetByID(context.Background(), seed[0].ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubUploader struct{ name string }

func (s *stubUploader) Upload(_ context.Context, _ io.Reader, filename string) (string, error) {
	s.name = filename
	return "https://img.example/" + filename, nil
}

func multipartImage(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, _ = part.Write([]byte("fake image bytes"))
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	up := &stubUploader{}
	app := newTestApp(NewInMemoryRepository(nil), up)

	buf, ct := multipartImage(t, "bike.png")
	status, env := do(t, app, "POST", "/api/products/images", buf, map[string]string{"Content-Type": ct})
	require.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"url":"https://img.example/bike.png"}`, string(env.Data))
	assert.Equal(t, "bike.png", up.name)

	buf, ct = multipartImage(t, "notes.txt")
	status, _ = do(t, app, "POST", "/api/products/images", buf, map[string]string{"Content-Type": ct})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUploadImage_Disabled(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(nil), nil)

	buf, ct := multipartImage(t, "bike.png")
	status, env := do(t, app, "POST", "/api/products/images", buf, map[string]string{"Content-Type": ct})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Image uploads are unavailable", env.Message)
}

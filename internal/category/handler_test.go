package category

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth/authtest"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/router"
)

func newTestApp(products ...product.Product) *fiber.App {
	svc := NewService(NewInMemoryRepository(nil), product.NewService(product.NewInMemoryRepository(products)))
	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler})
	router.Mount(app, authtest.Gate{}, NewHandler(svc).Routes()...)
	return app
}

func send(t *testing.T, app *fiber.App, method, path, body string, authed bool) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set(authtest.HeaderUserID, "admin")
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	raw, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(raw)
}

func TestCategoryRoutes(t *testing.T) {
	app := newTestApp(product.Product{Title: "Novel", Category: "Books"})

	if status, _ := send(t, app, "POST", "/api/categories", `{"name":"Books"}`, false); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous create, got %d", status)
	}
	if status, body := send(t, app, "POST", "/api/categories", `{"name":"Books"}`, true); status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	status, body := send(t, app, "POST", "/api/categories", `{"name":"books"}`, true)
	if status != fiber.StatusConflict || !strings.Contains(body, `"success":false`) {
		t.Fatalf("expected structured 409, got %d: %s", status, body)
	}
	if status, _ := send(t, app, "POST", "/api/categories", `{"name":""}`, true); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", status)
	}

	status, body = send(t, app, "GET", "/api/categories/stats/overview", "", false)
	if status != fiber.StatusOK || !strings.Contains(body, `"totalProducts":1`) {
		t.Fatalf("unexpected overview %d: %s", status, body)
	}

	status, body = send(t, app, "GET", "/api/categories/books", "", false)
	if status != fiber.StatusOK || !strings.Contains(body, `"productCount":1`) {
		t.Fatalf("unexpected detail %d: %s", status, body)
	}

	status, body = send(t, app, "GET", "/api/categories/books/products", "", false)
	if status != fiber.StatusOK || !strings.Contains(body, `"Novel"`) {
		t.Fatalf("unexpected category products %d: %s", status, body)
	}

	if status, _ := send(t, app, "GET", "/api/categories/missing", "", false); status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

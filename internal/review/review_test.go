package review

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth/authtest"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/router"
)

func setup(t *testing.T) (*Service, string) {
	t.Helper()
	catalog := product.NewInMemoryRepository(nil)
	p, err := catalog.Create(context.Background(), product.Product{Title: "Camera", Category: "Electronics", Price: 90})
	require.NoError(t, err)
	return NewService(NewInMemoryRepository(), catalog), p.ID.Hex()
}

func TestCreate_SecondReviewConflicts(t *testing.T) {
	svc, pid := setup(t)
	ctx := context.Background()
	author := Author{ID: "u1", Name: "Ann"}

	_, err := svc.Create(ctx, pid, author, CreateRequest{Rating: 4, Comment: "Works like a charm"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, pid, author, CreateRequest{Rating: 1, Comment: "Changed my mind entirely"})
	assert.ErrorIs(t, err, ErrDuplicate)

	res, err := svc.List(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, res.Reviews, 1)
	assert.Equal(t, 1, res.Stats.TotalReviews)
	assert.Equal(t, 4.0, res.Stats.AverageRating)
	assert.Equal(t, int64(1), res.Stats.RatingDistribution["4"])
}

func TestCreate_ConcurrentDuplicatesRejectedByRepository(t *testing.T) {
	svc, pid := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, pid, Author{ID: "racer"}, CreateRequest{Rating: 5, Comment: "Fast shipping, great seller"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrDuplicate)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestCreate_Validation(t *testing.T) {
	svc, pid := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, pid, Author{ID: "u1"}, CreateRequest{Rating: 3, Comment: "   too short   "})
	assert.ErrorIs(t, err, ErrCommentTooShort)

	_, err = svc.Create(ctx, "65f000000000000000000000", Author{ID: "u1"}, CreateRequest{Rating: 3, Comment: "A perfectly long comment"})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateAndDelete_RequireAuthor(t *testing.T) {
	svc, pid := setup(t)
	ctx := context.Background()

	rv, err := svc.Create(ctx, pid, Author{ID: "u1"}, CreateRequest{Rating: 2, Comment: "Lens was scratched"})
	require.NoError(t, err)

	five := 5
	_, err = svc.Update(ctx, pid, rv.ID.Hex(), "u2", UpdateRequest{Rating: &five})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, pid, rv.ID.Hex(), "u1", UpdateRequest{Rating: &five})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, "Lens was scratched", updated.Comment)

	assert.ErrorIs(t, svc.Delete(ctx, pid, rv.ID.Hex(), "u2"), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, pid, rv.ID.Hex(), "u1"))

	res, err := svc.List(ctx, pid)
	require.NoError(t, err)
	assert.Empty(t, res.Reviews)
	assert.Equal(t, Stats{RatingDistribution: emptyDistribution()}, res.Stats)
}

func TestReviewRoutes(t *testing.T) {
	svc, pid := setup(t)
	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler})
	router.Mount(app, authtest.Gate{}, NewHandler(svc).Routes()...)

	post := func(user, body string) (int, apperror.Response) {
		req := httptest.NewRequest("POST", "/api/products/"+pid+"/reviews", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if user != "" {
			req.Header.Set(authtest.HeaderUserID, user)
		}
		res, err := app.Test(req)
		require.NoError(t, err)
		raw, _ := io.ReadAll(res.Body)
		var out apperror.Response
		_ = json.Unmarshal(raw, &out)
		return res.StatusCode, out
	}

	body := `{"rating":5,"comment":"Exactly as described"}`
	status, _ := post("", body)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = post("u1", body)
	assert.Equal(t, fiber.StatusCreated, status)

	status, out := post("u1", body)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.False(t, out.Success)
	assert.Equal(t, "You have already reviewed this product", out.Message)

	status, _ = post("u2", `{"rating":9,"comment":"Exactly as described"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	res, err := app.Test(httptest.NewRequest("GET", "/api/products/"+pid+"/reviews", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/niksmo/inventory/internal/adapter/httphandler"
	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProductsAPI struct {
	mock.Mock
}

func (m *MockProductsAPI) List(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]domain.Product)
	return ps, args.Error(1)
}

func (m *MockProductsAPI) Create(
	ctx context.Context, d domain.ProductDraft,
) (domain.Product, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductsAPI) Update(
	ctx context.Context, p domain.Product,
) (domain.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductsAPI) Remove(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

var catalog = []domain.Product{
	{ID: 1, Title: "Fjallraven Backpack", Price: 109.95, Category: "men's clothing",
		Rating: domain.Rating{Rate: 3.9, Count: 120}},
	{ID: 2, Title: "Gold Ring", Price: 168, Category: "jewelery",
		Rating: domain.Rating{Rate: 3.9, Count: 70}},
	{ID: 3, Title: "SSD Drive", Price: 109, Category: "electronics",
		Rating: domain.Rating{Rate: 4.8, Count: 20}},
}

func newHandler(t *testing.T, api *MockProductsAPI) http.Handler {
	t.Helper()
	s, err := store.New(t.Context(), api)
	require.NoError(t, err)
	return httphandler.NewHandler(s)
}

// racingStore clears the recorded error right after a failed create, as a
// concurrently started operation would.
type racingStore struct {
	*store.Store
}

func (s racingStore) Create(
	ctx context.Context, d domain.ProductDraft,
) (domain.Product, error) {
	p, err := s.Store.Create(ctx, d)
	s.ClearError()
	return p, err
}

func do(
	t *testing.T, h http.Handler, method, target, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestFetchAndList(t *testing.T) {
	api := new(MockProductsAPI)
	api.On("List", mock.Anything).Return(catalog, nil).Once()
	h := newHandler(t, api)

	w := do(t, h, http.MethodPost, "/v1/products/fetch", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[domain.ProductsState](t, w)
	assert.Len(t, st.Products, 3)
	assert.False(t, st.Loading)

	t.Run("IfEmptySkipsFetch", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/v1/products/fetch?ifEmpty=true", "")
		require.Equal(t, http.StatusOK, w.Code)
		api.AssertNumberOfCalls(t, "List", 1)
	})

	t.Run("Categories", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/v1/categories", "")
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[httphandler.CategoriesResponse](t, w)
		assert.Equal(t,
			[]string{"men's clothing", "jewelery", "electronics"}, res.Categories)
	})

	t.Run("SortedByPriceDesc", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/v1/filters",
			`{"sort_by":"price","sort_order":"desc"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, h, http.MethodGet, "/v1/products", "")
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[httphandler.ProductsResponse](t, w)
		require.Equal(t, 3, res.Count)
		assert.Equal(t, int64(2), res.Products[0].ID)
		assert.Equal(t, "$168.00", res.Products[0].DisplayPrice)
		assert.EqualValues(t, "Low Stock", res.Products[0].Stock)
		assert.Equal(t, int64(3), res.Products[2].ID)
	})

	t.Run("SearchAndCategory", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/v1/filters",
			`{"search_term":"RING","selected_category":"jewelery"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, h, http.MethodGet, "/v1/products", "")
		res := decode[httphandler.ProductsResponse](t, w)
		require.Equal(t, 1, res.Count)
		assert.Equal(t, "Gold Ring", res.Products[0].Title)
	})

	t.Run("InvalidSortKey", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/v1/filters", `{"sort_by":"weight"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Summary", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/v1/summary", "")
		require.Equal(t, http.StatusOK, w.Code)
		var res map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.EqualValues(t, 3, res["products"])
		assert.Equal(t, "386.95", res["totalValue"])
	})
}

func TestPostProduct(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		api := new(MockProductsAPI)
		draft := domain.ProductDraft{
			Title: "Lamp", Price: 20, Category: "electronics",
			Rating: domain.DefaultRating,
		}
		api.On("Create", mock.Anything, draft).Return(draft.WithID(21), nil)
		h := newHandler(t, api)

		w := do(t, h, http.MethodPost, "/v1/products",
			`{"title":"Lamp","price":20,"category":"electronics"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		p := decode[domain.Product](t, w)
		assert.Equal(t, int64(21), p.ID)
		assert.Equal(t, domain.DefaultRating, p.Rating)
		api.AssertExpectations(t)
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		api := new(MockProductsAPI)
		api.On("Create", mock.Anything, mock.Anything).
			Return(domain.Product{}, errors.New("status 500"))
		h := newHandler(t, api)

		w := do(t, h, http.MethodPost, "/v1/products", `{"title":"Lamp","price":20}`)
		require.Equal(t, http.StatusBadGateway, w.Code)
		res := decode[httphandler.ErrorResponse](t, w)
		assert.Equal(t, "Failed to add product", res.Error)

		w = do(t, h, http.MethodDelete, "/v1/error", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = do(t, h, http.MethodGet, "/v1/state", "")
		assert.Empty(t, decode[domain.ProductsState](t, w).Error)
	})

	t.Run("MessageSurvivesClearedState", func(t *testing.T) {
		api := new(MockProductsAPI)
		api.On("Create", mock.Anything, mock.Anything).
			Return(domain.Product{}, errors.New("status 500"))
		s, err := store.New(t.Context(), api)
		require.NoError(t, err)
		h := httphandler.NewHandler(racingStore{s})

		w := do(t, h, http.MethodPost, "/v1/products", `{"title":"Lamp","price":20}`)
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Failed to add product",
			decode[httphandler.ErrorResponse](t, w).Error)
		assert.Empty(t, s.State().Error)
	})

	t.Run("InvalidDraft", func(t *testing.T) {
		api := new(MockProductsAPI)
		h := newHandler(t, api)

		w := do(t, h, http.MethodPost, "/v1/products", `{"price":-1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		h := newHandler(t, new(MockProductsAPI))
		w := do(t, h, http.MethodPost, "/v1/products", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("WrongMediaType", func(t *testing.T) {
		h := newHandler(t, new(MockProductsAPI))
		r := httptest.NewRequest(http.MethodPost, "/v1/products",
			strings.NewReader(`{"title":"Lamp"}`))
		r.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestPutAndDeleteProduct(t *testing.T) {
	api := new(MockProductsAPI)
	api.On("List", mock.Anything).Return(catalog, nil)
	h := newHandler(t, api)
	require.Equal(t, http.StatusOK,
		do(t, h, http.MethodPost, "/v1/products/fetch", "").Code)

	t.Run("Update", func(t *testing.T) {
		updated := catalog[0]
		updated.Title = "Backpack v2"
		updated.Description = ""
		api.On("Update", mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
			return p.ID == 1
		})).Return(updated, nil).Once()

		w := do(t, h, http.MethodPut, "/v1/products/1",
			`{"title":"Backpack v2","price":109.95,"category":"men's clothing",
			"rating":{"rate":3.9,"count":120}}`)
		require.Equal(t, http.StatusOK, w.Code)

		st := decode[domain.ProductsState](t,
			do(t, h, http.MethodGet, "/v1/state", ""))
		assert.Equal(t, "Backpack v2", st.Products[0].Title)
	})

	t.Run("BadID", func(t *testing.T) {
		w := do(t, h, http.MethodDelete, "/v1/products/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		api.On("Remove", mock.Anything, int64(2)).Return(int64(2), nil).Once()

		w := do(t, h, http.MethodDelete, "/v1/products/2", "")
		require.Equal(t, http.StatusNoContent, w.Code)

		st := decode[domain.ProductsState](t,
			do(t, h, http.MethodGet, "/v1/state", ""))
		assert.Len(t, st.Products, 2)
		assert.False(t, st.Has(2))
	})

	t.Run("DeleteFails", func(t *testing.T) {
		api.On("Remove", mock.Anything, int64(3)).
			Return(int64(0), errors.New("boom")).Once()

		w := do(t, h, http.MethodDelete, "/v1/products/3", "")
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Failed to delete product",
			decode[httphandler.ErrorResponse](t, w).Error)
	})
}

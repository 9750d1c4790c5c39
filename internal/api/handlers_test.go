package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/plant-store/internal/api"
	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/cart"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/domain/wishlist"
	"github.com/example/plant-store/internal/infrastructure/store/mocks"
	"github.com/example/plant-store/internal/logger"
	"github.com/example/plant-store/internal/query"
)

type testEnv struct {
	router    http.Handler
	carts     *mocks.MockCartRepository
	wishlists *mocks.MockWishlistRepository
	catalog   *mocks.MockCatalog
	fern      *plant.Plant
}

func newTestEnv(t *testing.T, exposeErrors bool) *testEnv {
	t.Helper()

	fern := &plant.Plant{
		ID:          plant.NewID(),
		Name:        "Boston Fern",
		Price:       decimal.NewFromInt(299),
		Categories:  []plant.Category{plant.CategoryIndoor},
		IsAvailable: true,
	}
	log := logger.NewNop()
	carts := mocks.NewMockCartRepository()
	wishlists := mocks.NewMockWishlistRepository()
	catalog := mocks.NewMockCatalog(fern)

	handlers := api.NewHandlers(
		cart.NewService(carts, catalog, log),
		wishlist.NewService(wishlists, catalog, log),
		query.NewHandler(catalog),
		api.NewResponder(log, exposeErrors),
	)
	router := api.NewRouter(api.RouterConfig{
		Handlers:       handlers,
		Log:            log,
		Env:            "test",
		ExposeErrors:   exposeErrors,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	return &testEnv{router: router, carts: carts, wishlists: wishlists, catalog: catalog, fern: fern}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Pagination *query.Pagination `json:"pagination"`
	Code       string            `json:"code"`
	Error      string            `json:"error"`
}

type totals struct {
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	AddedItem   string          `json:"addedItem"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeTotals(t *testing.T, env envelope) totals {
	t.Helper()
	var out totals
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// ============================================
// Cart Handler Tests
// ============================================

func TestCart_Scenario(t *testing.T) {
	e := newTestEnv(t, false)
	itemPath := "/api/cart/alice/" + e.fern.ID

	rec := e.do(t, http.MethodPost, "/api/cart/alice", `{"plantId":"`+e.fern.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Item added to cart successfully", env.Message)
	added := decodeTotals(t, env)
	assert.Equal(t, 1, added.TotalItems)
	assert.True(t, decimal.NewFromInt(299).Equal(added.TotalAmount))
	assert.Equal(t, "Boston Fern", added.AddedItem)

	rec = e.do(t, http.MethodPut, itemPath, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeTotals(t, decodeEnvelope(t, rec))
	assert.Equal(t, 3, updated.TotalItems)
	assert.True(t, decimal.NewFromInt(897).Equal(updated.TotalAmount))

	rec = e.do(t, http.MethodDelete, itemPath, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed := decodeTotals(t, decodeEnvelope(t, rec))
	assert.Equal(t, 0, removed.TotalItems)
	assert.True(t, removed.TotalAmount.IsZero())

	rec = e.do(t, http.MethodDelete, itemPath, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env = decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Item not found in cart", env.Message)
	assert.Equal(t, string(apperr.KindNotFound), env.Code)
}

func TestGetCart_EmptyCart(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/cart/nobody", "")

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var view struct {
		Items      []json.RawMessage `json:"items"`
		TotalItems int               `json:"totalItems"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.TotalItems)
}

func TestAddToCart_QuantityForms(t *testing.T) {
	tests := []struct {
		name       string
		quantity   string
		wantStatus int
		wantItems  int
	}{
		{"number", `2`, http.StatusCreated, 2},
		{"fraction truncated", `2.9`, http.StatusCreated, 2},
		{"numeric string", `"3"`, http.StatusCreated, 3},
		{"string with suffix", `"4 plants"`, http.StatusCreated, 4},
		{"null defaults to one", `null`, http.StatusCreated, 1},
		{"zero", `0`, http.StatusBadRequest, 0},
		{"negative", `-2`, http.StatusBadRequest, 0},
		{"fraction below one", `0.5`, http.StatusBadRequest, 0},
		{"non numeric string", `"abc"`, http.StatusBadRequest, 0},
		{"boolean", `true`, http.StatusBadRequest, 0},
		{"too large", `99999999999`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, false)

			rec := e.do(t, http.MethodPost, "/api/cart/alice",
				`{"plantId":"`+e.fern.ID+`","quantity":`+tt.quantity+`}`)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, tt.wantItems, decodeTotals(t, decodeEnvelope(t, rec)).TotalItems)
			} else {
				assert.Empty(t, e.carts.SaveCalls)
			}
		})
	}
}

func TestAddToCart_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		setup       func(e *testEnv)
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "invalid json",
			body:        `{"plantId":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid JSON body",
		},
		{
			name:        "missing plant id",
			body:        `{}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Plant ID is required",
		},
		{
			name:        "malformed plant id",
			body:        `{"plantId":"plant-1"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid plant ID format",
		},
		{
			name:        "unknown plant",
			body:        `{"plantId":"` + plant.NewID() + `"}`,
			wantStatus:  http.StatusNotFound,
			wantMessage: "Plant not found",
		},
		{
			name: "unavailable plant",
			setup: func(e *testEnv) {
				soldOut := *e.fern
				soldOut.IsAvailable = false
				e.catalog.Put(&soldOut)
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Plant is not available",
		},
		{
			name: "store failure is hidden",
			setup: func(e *testEnv) {
				e.carts.LoadErr = errors.New("pq: connection refused by 10.0.0.3")
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to add item to cart",
		},
		{
			name: "transient store failure",
			setup: func(e *testEnv) {
				e.carts.LoadErr = apperr.Transient("Storage temporarily unavailable, please retry", errors.New("i/o timeout"))
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Storage temporarily unavailable, please retry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, false)
			if tt.setup != nil {
				tt.setup(e)
			}
			body := tt.body
			if body == "" {
				body = `{"plantId":"` + e.fern.ID + `"}`
			}

			rec := e.do(t, http.MethodPost, "/api/cart/alice", body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantMessage, env.Message)
			assert.Empty(t, env.Error)
		})
	}
}

func TestAddToCart_ExposesErrorDetailInDevelopment(t *testing.T) {
	e := newTestEnv(t, true)
	e.carts.LoadErr = errors.New("pq: connection refused")

	rec := e.do(t, http.MethodPost, "/api/cart/alice", `{"plantId":"`+e.fern.ID+`"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Failed to add item to cart", env.Message)
	assert.Contains(t, env.Error, "connection refused")
}

func TestUpdateCartItem_RequiresQuantity(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodPost, "/api/cart/alice", `{"plantId":"`+e.fern.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/cart/alice/"+e.fern.ID, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Quantity must be greater than 0", decodeEnvelope(t, rec).Message)
}

func TestClearCart(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodPost, "/api/cart/alice", `{"plantId":"`+e.fern.ID+`","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/cart/alice", "")

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Cart cleared successfully", env.Message)
	assert.Equal(t, 0, decodeTotals(t, env).TotalItems)
	assert.Empty(t, e.carts.Stored("alice").Items)
}

// ============================================
// Wishlist Handler Tests
// ============================================

func TestWishlist_AddDuplicateAndRemove(t *testing.T) {
	e := newTestEnv(t, false)
	body := `{"plantId":"` + e.fern.ID + `","notes":"bathroom shelf"}`

	rec := e.do(t, http.MethodPost, "/api/wishlist/bob", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Plant added to wishlist successfully", env.Message)
	assert.Equal(t, 1, decodeTotals(t, env).TotalItems)

	rec = e.do(t, http.MethodPost, "/api/wishlist/bob", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env = decodeEnvelope(t, rec)
	assert.Equal(t, "Plant already in wishlist", env.Message)
	assert.Equal(t, string(apperr.KindAlreadyExists), env.Code)
	assert.JSONEq(t, `{"isInWishlist":true}`, string(env.Data))

	rec = e.do(t, http.MethodGet, "/api/wishlist/bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Plants []struct {
			ID    string `json:"_id"`
			Name  string `json:"name"`
			Notes string `json:"notes"`
		} `json:"plants"`
		TotalItems int `json:"totalItems"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	require.Len(t, view.Plants, 1)
	assert.Equal(t, e.fern.ID, view.Plants[0].ID)
	assert.Equal(t, "Boston Fern", view.Plants[0].Name)
	assert.Equal(t, "bathroom shelf", view.Plants[0].Notes)

	rec = e.do(t, http.MethodDelete, "/api/wishlist/bob/"+e.fern.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	assert.Equal(t, "Plant removed from wishlist", env.Message)
	assert.Equal(t, 0, decodeTotals(t, env).TotalItems)
}

func TestRemoveFromWishlist_InvalidID(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodDelete, "/api/wishlist/bob/not-an-id", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.wishlists.LoadCalls)
}

// ============================================
// Plant Handler Tests
// ============================================

func TestListPlants(t *testing.T) {
	e := newTestEnv(t, false)
	e.catalog.Put(&plant.Plant{
		ID:          plant.NewID(),
		Name:        "Snake Plant",
		Price:       decimal.NewFromInt(150),
		Categories:  []plant.Category{plant.CategoryIndoor, plant.CategoryFoliage},
		IsAvailable: false,
	})

	rec := e.do(t, http.MethodGet, "/api/plants?inStock=true&limit=1", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	var plants []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &plants))
	require.Len(t, plants, 1)
	assert.Equal(t, "Boston Fern", plants[0]["name"])
	require.NotNil(t, env.Pagination)
	assert.Equal(t, query.Pagination{Current: 1, Total: 1, Count: 1, TotalItems: 1}, *env.Pagination)
}

func TestListPlants_InvalidSort(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/plants?sortBy=color", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlant(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/plants/"+e.fern.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &p))
	assert.Equal(t, e.fern.ID, p["_id"])

	rec = e.do(t, http.MethodGet, "/api/plants/"+plant.NewID(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCategories(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/plants/categories/list", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var categories []string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &categories))
	assert.Equal(t, []string{string(plant.CategoryIndoor)}, categories)
}

// ============================================
// Router Tests
// ============================================

func TestHealth(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Plant Store API is running!", body["message"])
	assert.Equal(t, "test", body["environment"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/orders?page=2", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Route /api/orders?page=2 not found", env.Message)
}

func TestRouter_SetsRequestID(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/health", "")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

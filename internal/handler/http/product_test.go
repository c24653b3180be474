package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogcart/internal/service"
)

func TestProductHandler_CreateAndGet(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":        "  Mug ",
		"description": "ceramic",
		"stock":       10,
		"price":       9.99,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeData[productBody](t, rec)
	assert.Equal(t, "Mug", created.Name)
	require.NotNil(t, created.Description)
	assert.Equal(t, "ceramic", *created.Description)
	assert.Equal(t, 10, created.Stock)
	assert.InDelta(t, 9.99, created.Price, 1e-9)
	assert.Equal(t, "system", created.CreatedBy)

	rec = srv.do(t, http.MethodGet, "/api/products/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeData[productBody](t, rec).ID)
}

func TestProductHandler_Create_AcceptsDecimalString(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/products", `{"name":"Mug","stock":0,"price":"12.50"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":12.50`)
	assert.Nil(t, decodeData[productBody](t, srv.do(t, http.MethodGet, "/api/products/1", nil)).Description)
}

func TestProductHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing name", map[string]any{"stock": 1, "price": 1}, "name"},
		{"missing stock", map[string]any{"name": "Mug", "price": 1}, "stock"},
		{"negative stock", map[string]any{"name": "Mug", "stock": -1, "price": 1}, "stock"},
		{"zero price", map[string]any{"name": "Mug", "stock": 1, "price": 0}, "price"},
		{"negative price", map[string]any{"name": "Mug", "stock": 1, "price": -3}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			rec := srv.do(t, http.MethodPost, "/api/products", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			assert.Contains(t, env.Error.Fields, tt.field)
		})
	}
}

func TestProductHandler_RejectedByService(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"blank name", http.MethodPost, "/api/products", `{"name":"   ","stock":1,"price":1}`},
		{"three decimal price", http.MethodPost, "/api/products", `{"name":"Mug","stock":1,"price":"9.999"}`},
		{"sub-cent price", http.MethodPost, "/api/products", `{"name":"Mug","stock":1,"price":"0.001"}`},
		{"stock above int4", http.MethodPost, "/api/products", `{"name":"Mug","stock":3000000000,"price":"9.99"}`},
		{"update price scale", http.MethodPut, "/api/products/1", `{"price":"1.005"}`},
		{"set stock above int4", http.MethodPatch, "/api/products/1/stock", `{"stock":3000000000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			srv.seedProduct(t, "Seed", 10, "9.99")

			rec := srv.do(t, tt.method, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_INPUT", env.Error.Code)
			assert.Equal(t, 10, srv.stockOf(t, 1))
		})
	}
}

func TestProductHandler_List(t *testing.T) {
	srv := newTestServer(t)

	empty := decodeData[[]productBody](t, srv.do(t, http.MethodGet, "/api/products", nil))
	assert.Empty(t, empty)

	srv.seedProduct(t, "Mug", 1, "1.00")
	srv.seedProduct(t, "Pen", 2, "2.00")

	products := decodeData[[]productBody](t, srv.do(t, http.MethodGet, "/api/products", nil))
	require.Len(t, products, 2)
	assert.Equal(t, "Mug", products[0].Name)
	assert.Equal(t, "Pen", products[1].Name)
}

func TestProductHandler_Get_Errors(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/products/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/api/products/0", nil).Code)
}

func TestProductHandler_Update_Partial(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, "Mug", 10, "9.99")

	rec := srv.do(t, http.MethodPut, "/api/products/1", map[string]any{"price": "4.25"})

	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeData[productBody](t, rec)
	assert.Equal(t, "Mug", updated.Name)
	assert.Equal(t, 10, updated.Stock)
	assert.InDelta(t, 4.25, updated.Price, 1e-9)
}

func TestProductHandler_Update_Errors(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, "Mug", 10, "9.99")

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodPut, "/api/products/9", map[string]any{"stock": 1}).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPut, "/api/products/1", map[string]any{"name": ""}).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPut, "/api/products/1", map[string]any{"stock": -1}).Code)
	assert.Equal(t, 10, srv.stockOf(t, 1))
}

func TestProductHandler_UpdateStock(t *testing.T) {
	srv := newTestServer(t)
	id := srv.seedProduct(t, "Mug", 10, "9.99")

	rec := srv.do(t, http.MethodPatch, "/api/products/1/stock", map[string]any{"stock": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeData[productBody](t, rec).Stock)
	assert.Equal(t, 0, srv.stockOf(t, id))

	rec = srv.do(t, http.MethodPatch, "/api/products/1/stock", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_CheckAvailability(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, "Mug", 3, "9.99")

	rec := srv.do(t, http.MethodGet, "/api/products/1/availability?quantity=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.Availability{ProductID: 1, Requested: 3, Available: 3, InStock: true},
		decodeData[service.Availability](t, rec))

	rec = srv.do(t, http.MethodGet, "/api/products/1/availability?quantity=4", nil)
	assert.False(t, decodeData[service.Availability](t, rec).InStock)

	rec = srv.do(t, http.MethodGet, "/api/products/1/availability", nil)
	assert.Equal(t, 1, decodeData[service.Availability](t, rec).Requested)

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/api/products/1/availability?quantity=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/products/7/availability", nil).Code)
}

func TestProductHandler_Delete(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, "Mug", 3, "9.99")

	rec := srv.do(t, http.MethodDelete, "/api/products/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/api/products/1", nil).Code)
}

func TestProductHandler_Search(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, "Coffee Mug", 3, "9.99")
	srv.seedProduct(t, "Pen", 3, "1.00")
	srv.seedProduct(t, "mug warmer", 3, "15.00")

	rec := srv.do(t, http.MethodGet, "/api/products/search/MUG", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeData[[]productBody](t, rec)
	require.Len(t, results, 2)
	assert.Equal(t, "Coffee Mug", results[0].Name)
	assert.Equal(t, "mug warmer", results[1].Name)
	assert.NotContains(t, rec.Body.String(), `"description"`)
}

func TestRouter_OpsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/ready", nil).Code)

	rec := srv.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	// pprof is closed when no CIDRs are configured.
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/debug/pprof/", nil).Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.doWithContentType(t, http.MethodOptions, "/api/cart/add", "", "application/json")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/internal/event"
	"github.com/utafrali/catalogcart/internal/lock"
	"github.com/utafrali/catalogcart/internal/repository/memory"
	"github.com/utafrali/catalogcart/internal/service"
	"github.com/utafrali/catalogcart/pkg/health"
	"github.com/utafrali/catalogcart/pkg/httputil"
	"github.com/utafrali/catalogcart/pkg/middleware"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, RouterConfig{CORS: middleware.DefaultCORSConfig()})
}

func newTestServerWith(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	logger := testLogger()
	store := memory.NewStore()
	events := event.NoopPublisher{}

	carts := service.NewCartService(lock.NewLocal(), store, store, store, events, logger)
	products := service.NewProductService(store, store, events, logger)

	router := NewRouter(carts, products, health.NewHandler(), cfg, logger)

	return &testServer{handler: router, store: store}
}

func (s *testServer) seedProduct(t *testing.T, name string, stock int, price string) int64 {
	t.Helper()
	p := &domain.Product{
		Name:  name,
		Stock: stock,
		Price: decimal.RequireFromString(price),
		Audit: domain.NewAudit(domain.SystemActor, testNow),
	}
	require.NoError(t, s.store.Create(context.Background(), p))
	return p.ID
}

func (s *testServer) stockOf(t *testing.T, id int64) int {
	t.Helper()
	p, err := s.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doWithContentType(t *testing.T, method, path, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors httputil.Response with the data left raw for decoding
// into a concrete type.
type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// cartBody is the decoded form of a cart response. Money fields decode as
// float64 to assert they are emitted as JSON numbers.
type cartBody struct {
	ID          int64   `json:"id"`
	SessionID   string  `json:"session_id"`
	TotalItems  int     `json:"total_items"`
	TotalAmount float64 `json:"total_amount"`
	Items       []struct {
		ProductID    int64   `json:"product_id"`
		ProductName  string  `json:"product_name"`
		ProductPrice float64 `json:"product_price"`
		Quantity     int     `json:"quantity"`
		TotalPrice   float64 `json:"total_price"`
		CreatedBy    string  `json:"created_by"`
	} `json:"items"`
	CreatedBy string `json:"created_by"`
}

type productBody struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Stock       int     `json:"stock"`
	Price       float64 `json:"price"`
	CreatedBy   string  `json:"created_by"`
}

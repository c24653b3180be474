package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/internal/lock"
	"github.com/utafrali/catalogcart/internal/repository/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stockChange struct {
	productID int64
	stock     int
	reason    string
}

type skippedRestoration struct {
	sessionID string
	productID int64
	quantity  int
}

// recordingPublisher captures published events in memory.
type recordingPublisher struct {
	mu           sync.Mutex
	cartUpdates  []domain.CartSummary
	stockChanges []stockChange
	skipped      []skippedRestoration
	err          error
}

func (p *recordingPublisher) PublishCartUpdated(_ context.Context, summary *domain.CartSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cartUpdates = append(p.cartUpdates, *summary)
	return p.err
}

func (p *recordingPublisher) PublishStockChanged(_ context.Context, productID int64, stock int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockChanges = append(p.stockChanges, stockChange{productID, stock, reason})
	return p.err
}

func (p *recordingPublisher) PublishRestorationSkipped(_ context.Context, sessionID string, productID int64, quantity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped = append(p.skipped, skippedRestoration{sessionID, productID, quantity})
	return p.err
}

func newCartTestService(t *testing.T) (*CartService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore(memory.WithClock(func() time.Time { return testNow }))
	pub := &recordingPublisher{}
	svc := NewCartService(lock.NewLocal(), store, store, store, pub, newTestLogger())
	svc.now = func() time.Time { return testNow }
	return svc, store, pub
}

func seedProduct(t *testing.T, store *memory.Store, name string, stock int, price string) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:  name,
		Stock: stock,
		Price: decimal.RequireFromString(price),
		Audit: domain.NewAudit(domain.SystemActor, testNow),
	}
	require.NoError(t, store.Create(context.Background(), p))
	return p
}

func stockOf(t *testing.T, store *memory.Store, id int64) int {
	t.Helper()
	p, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// passthroughTx runs the callback directly, for tests built on mocks.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

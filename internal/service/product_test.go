package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/internal/repository/memory"
	apperrors "github.com/utafrali/catalogcart/pkg/errors"
)

func newProductTestService(t *testing.T) (*ProductService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore(memory.WithClock(func() time.Time { return testNow }))
	pub := &recordingPublisher{}
	svc := NewProductService(store, store, pub, newTestLogger())
	svc.now = func() time.Time { return testNow }
	return svc, store, pub
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestProductService_Create(t *testing.T) {
	svc, _, _ := newProductTestService(t)

	p, err := svc.Create(context.Background(), CreateProductInput{
		Name:        "  Widget  ",
		Description: strPtr("blue"),
		Stock:       10,
		Price:       decimal.RequireFromString("9.99"),
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, domain.SystemActor, p.CreatedBy)
	assert.Equal(t, testNow, p.CreatedAt)
}

func TestProductService_Create_Invalid(t *testing.T) {
	svc, _, _ := newProductTestService(t)

	tests := []struct {
		name  string
		input CreateProductInput
	}{
		{name: "empty name", input: CreateProductInput{Name: " ", Price: decimal.NewFromInt(1)}},
		{name: "negative stock", input: CreateProductInput{Name: "x", Stock: -1, Price: decimal.NewFromInt(1)}},
		{name: "zero price", input: CreateProductInput{Name: "x", Price: decimal.Zero}},
		{name: "negative price", input: CreateProductInput{Name: "x", Price: decimal.NewFromInt(-3)}},
		{name: "sub-cent price", input: CreateProductInput{Name: "x", Price: decimal.RequireFromString("0.001")}},
		{name: "three decimal price", input: CreateProductInput{Name: "x", Price: decimal.RequireFromString("9.999")}},
		{name: "stock above int4", input: CreateProductInput{Name: "x", Stock: 3000000000, Price: decimal.NewFromInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestProductService_GetAndList(t *testing.T) {
	svc, store, _ := newProductTestService(t)
	a := seedProduct(t, store, "Alpha", 1, "1.00")
	seedProduct(t, store, "Beta", 2, "2.00")

	got, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)

	_, err = svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "product with id 999 not found")

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProductService_Search(t *testing.T) {
	svc, store, _ := newProductTestService(t)
	seedProduct(t, store, "Blue Widget", 1, "1.00")
	seedProduct(t, store, "Red widget", 1, "1.00")
	seedProduct(t, store, "Gadget", 1, "1.00")

	got, err := svc.Search(context.Background(), "WIDGET")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.Search(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductService_Update_Partial(t *testing.T) {
	svc, store, pub := newProductTestService(t)
	p := seedProduct(t, store, "Widget", 5, "1.00")

	newPrice := decimal.RequireFromString("2.50")
	got, err := svc.Update(context.Background(), p.ID, domain.ProductUpdate{Price: &newPrice})
	require.NoError(t, err)

	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, 5, got.Stock)
	assert.Equal(t, "2.50", got.Price.StringFixed(2))
	assert.Empty(t, pub.stockChanges, "price-only update leaves stock alone")

	stored, err := store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.50", stored.Price.StringFixed(2))
}

func TestProductService_Update_InvalidLeavesProductUnchanged(t *testing.T) {
	svc, store, _ := newProductTestService(t)
	p := seedProduct(t, store, "Widget", 5, "1.00")

	_, err := svc.Update(context.Background(), p.ID, domain.ProductUpdate{Name: strPtr(""), Stock: intPtr(9)})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	stored, err := store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", stored.Name)
	assert.Equal(t, 5, stored.Stock)
}

func TestProductService_Update_NotFound(t *testing.T) {
	svc, _, _ := newProductTestService(t)

	_, err := svc.Update(context.Background(), 12, domain.ProductUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_UpdateStock(t *testing.T) {
	svc, store, pub := newProductTestService(t)
	p := seedProduct(t, store, "Widget", 5, "1.00")

	got, err := svc.UpdateStock(context.Background(), p.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Stock)
	assert.Equal(t, []stockChange{{p.ID, 40, StockReasonUpdate}}, pub.stockChanges)

	_, err = svc.UpdateStock(context.Background(), p.ID, -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductService_CheckAvailability(t *testing.T) {
	svc, store, _ := newProductTestService(t)
	p := seedProduct(t, store, "Widget", 3, "1.00")

	got, err := svc.CheckAvailability(context.Background(), p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, &Availability{ProductID: p.ID, Requested: 3, Available: 3, InStock: true}, got)

	got, err = svc.CheckAvailability(context.Background(), p.ID, 4)
	require.NoError(t, err)
	assert.False(t, got.InStock)

	_, err = svc.CheckAvailability(context.Background(), p.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.CheckAvailability(context.Background(), 404, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_Delete(t *testing.T) {
	svc, store, _ := newProductTestService(t)
	p := seedProduct(t, store, "Widget", 3, "1.00")

	require.NoError(t, svc.Delete(context.Background(), p.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), p.ID), apperrors.ErrNotFound)
}

func TestProductService_Restock(t *testing.T) {
	svc, store, pub := newProductTestService(t)
	p := seedProduct(t, store, "Widget", 3, "1.00")

	stock, err := svc.Restock(context.Background(), p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, stock)
	assert.Equal(t, []stockChange{{p.ID, 10, StockReasonRestock}}, pub.stockChanges)

	_, err = svc.Restock(context.Background(), 99, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Restock(context.Background(), p.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductService_Restock_StockUpperBound(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		quantity int
	}{
		{"quantity above int4", 0, 3000000000},
		{"sum above int4", domain.MaxStock - 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, pub := newProductTestService(t)
			p := seedProduct(t, store, "Widget", tt.start, "1.00")

			_, err := svc.Restock(context.Background(), p.ID, tt.quantity)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.NotErrorIs(t, err, apperrors.ErrInsufficientStock)
			assert.Empty(t, pub.stockChanges)

			got, err := store.GetByID(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.start, got.Stock)
		})
	}
}

func TestProductService_RepositoryErrorsAreWrapped(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(passthroughTx{}, repo, &recordingPublisher{}, newTestLogger())

	repo.On("GetAll", mock.Anything).Return([]domain.Product(nil), errors.New("timeout"))
	repo.On("Delete", mock.Anything, int64(3)).Return(false, errors.New("timeout"))

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")

	err = svc.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)

	repo.AssertExpectations(t)
}

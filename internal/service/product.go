package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/internal/repository"
	apperrors "github.com/utafrali/catalogcart/pkg/errors"
)

// CreateProductInput holds the fields of a new product.
type CreateProductInput struct {
	Name        string
	Description *string
	Stock       int
	Price       decimal.Decimal
}

// Availability answers whether a quantity of a product can be added to a cart.
type Availability struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested_quantity"`
	Available int   `json:"available_stock"`
	InStock   bool  `json:"is_available"`
}

// ProductService manages the catalog and direct stock changes.
type ProductService struct {
	tx     repository.Transactor
	repo   repository.ProductRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewProductService creates a new product service.
func NewProductService(tx repository.Transactor, repo repository.ProductRepository, events EventPublisher, logger *slog.Logger) *ProductService {
	return &ProductService{
		tx:     tx,
		repo:   repo,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	product := &domain.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Stock:       input.Stock,
		Price:       input.Price,
		Audit:       domain.NewAudit(domain.SystemActor, s.now()),
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", product.ID),
		slog.String("name", product.Name),
		slog.Int("stock", product.Stock),
	)

	return product, nil
}

// Get returns a product by ID.
func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, apperrors.InvalidInput("product id must be greater than 0")
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id, "get product")
	}
	return product, nil
}

// List returns every product.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Search returns products whose name contains name, ignoring case.
func (s *ProductService) Search(ctx context.Context, name string) ([]domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("search name is required")
	}

	products, err := s.repo.SearchByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// Update applies a partial update. Only the fields set in update change.
func (s *ProductService) Update(ctx context.Context, id int64, update domain.ProductUpdate) (*domain.Product, error) {
	if id <= 0 {
		return nil, apperrors.InvalidInput("product id must be greater than 0")
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}

	var (
		product      *domain.Product
		stockChanged bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, id, "get product")
		}

		before := product.Stock
		product.Apply(update)
		if err := product.Validate(); err != nil {
			return err
		}
		product.Touch(domain.SystemActor, s.now())

		if err := s.repo.Update(ctx, product); err != nil {
			return notFoundOr(err, id, "update product")
		}
		stockChanged = product.Stock != before
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.Int64("product_id", id),
		slog.Int("stock", product.Stock),
	)
	if stockChanged {
		s.publishStockChanged(ctx, id, product.Stock, StockReasonUpdate)
	}

	return product, nil
}

// UpdateStock sets the product's stock to an absolute value.
func (s *ProductService) UpdateStock(ctx context.Context, id int64, stock int) (*domain.Product, error) {
	if stock < 0 {
		return nil, apperrors.InvalidInput("stock must be greater than or equal to 0")
	}
	return s.Update(ctx, id, domain.ProductUpdate{Stock: &stock})
}

// CheckAvailability reports whether quantity units are in stock.
func (s *ProductService) CheckAvailability(ctx context.Context, id int64, quantity int) (*Availability, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}

	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Availability{
		ProductID: product.ID,
		Requested: quantity,
		Available: product.Stock,
		InStock:   product.HasStock(quantity),
	}, nil
}

// Delete removes a product. Cart lines referencing it remain and are priced
// at zero until removed.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperrors.InvalidInput("product id must be greater than 0")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}

	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", id))
	return nil
}

// Restock adds quantity units to the product's stock and returns the new
// level.
func (s *ProductService) Restock(ctx context.Context, id int64, quantity int) (int, error) {
	if id <= 0 {
		return 0, apperrors.InvalidInput("product id must be greater than 0")
	}
	if quantity <= 0 {
		return 0, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if quantity > domain.MaxStock {
		return 0, apperrors.InvalidInput("quantity must be at most 2147483647")
	}

	stock, err := s.repo.AdjustStock(ctx, id, quantity)
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return 0, apperrors.InvalidInput("restocked stock must be at most 2147483647")
	}
	if err != nil {
		return 0, notFoundOr(err, id, "restock product")
	}

	s.logger.InfoContext(ctx, "product restocked",
		slog.Int64("product_id", id),
		slog.Int("quantity", quantity),
		slog.Int("stock", stock),
	)
	s.publishStockChanged(ctx, id, stock, StockReasonRestock)

	return stock, nil
}

func (s *ProductService) publishStockChanged(ctx context.Context, productID int64, stock int, reason string) {
	if err := s.events.PublishStockChanged(ctx, productID, stock, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock_changed event",
			slog.Int64("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}

func notFoundOr(err error, id int64, op string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return fmt.Errorf("%s: %w", op, err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/internal/lock"
	"github.com/utafrali/catalogcart/internal/repository"
	apperrors "github.com/utafrali/catalogcart/pkg/errors"
	"github.com/utafrali/catalogcart/pkg/logger"
)

const (
	opAddToCart      = "add"
	opRemoveFromCart = "remove"
	opGetCart        = "get"
	opClearCart      = "clear"
)

// CartService runs the cart workflow. Every operation holds the session lock
// for its whole duration and performs its writes in one transaction, so
// concurrent requests can neither lose a line update nor oversell stock.
type CartService struct {
	locker   lock.Locker
	tx       repository.Transactor
	products repository.ProductRepository
	carts    repository.CartRepository
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(
	locker lock.Locker,
	tx repository.Transactor,
	products repository.ProductRepository,
	carts repository.CartRepository,
	events EventPublisher,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		locker:   locker,
		tx:       tx,
		products: products,
		carts:    carts,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddToCart reserves quantity units of the product for the session's cart and
// returns the updated summary.
func (s *CartService) AddToCart(ctx context.Context, sessionID string, productID int64, quantity int) (summary *domain.CartSummary, err error) {
	ctx, end := observe(ctx, opAddToCart, sessionID)
	defer func() { end(err) }()

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, apperrors.InvalidInput("product_id must be greater than 0")
	}
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}

	ctx = logger.WithSessionID(ctx, sessionID)
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		newStock int
		lineQty  int
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.products.GetByIDForUpdate(ctx, productID)
		if err != nil {
			return productLookupError(err)
		}
		if !product.HasStock(quantity) {
			return apperrors.InsufficientStock(product.Stock, quantity)
		}

		cart, err := s.getOrCreateCart(ctx, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		line, err := s.carts.GetLine(ctx, cart.ID, productID)
		switch {
		case err == nil:
			newQty := line.Quantity + quantity
			if !product.HasStock(newQty) {
				return apperrors.InsufficientStock(product.Stock, newQty)
			}
			line.Quantity = newQty
			line.Touch(domain.SystemActor, now)
			if err := s.carts.UpdateLine(ctx, line); err != nil {
				return fmt.Errorf("update cart line: %w", err)
			}
			lineQty = newQty
		case errors.Is(err, apperrors.ErrNotFound):
			line = &domain.CartLine{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  quantity,
				Audit:     domain.NewAudit(domain.SystemActor, now),
			}
			if err := s.carts.AddLine(ctx, line); err != nil {
				return fmt.Errorf("add cart line: %w", err)
			}
			lineQty = quantity
		default:
			return fmt.Errorf("get cart line: %w", err)
		}

		newStock, err = s.products.AdjustStock(ctx, productID, -quantity)
		if err != nil {
			if errors.Is(err, apperrors.ErrInsufficientStock) {
				return apperrors.InsufficientStock(product.Stock, quantity)
			}
			return fmt.Errorf("decrement stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product added to cart",
		slog.String("session_id", sessionID),
		slog.Int64("product_id", productID),
		slog.Int("quantity", quantity),
		slog.Int("line_quantity", lineQty),
		slog.Int("stock", newStock),
	)
	s.publishStockChanged(ctx, productID, newStock, StockReasonCartAdd)

	return s.summarizeAndPublish(ctx, sessionID)
}

// RemoveFromCart deletes the product's line from the session's cart and
// returns its quantity to stock. A line whose product was deleted is still
// removed; the skipped restoration is logged, counted and published.
func (s *CartService) RemoveFromCart(ctx context.Context, sessionID string, productID int64) (summary *domain.CartSummary, err error) {
	ctx, end := observe(ctx, opRemoveFromCart, sessionID)
	defer func() { end(err) }()

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, apperrors.InvalidInput("product_id must be greater than 0")
	}

	ctx = logger.WithSessionID(ctx, sessionID)
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		removed  domain.CartLine
		newStock int
		restored bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cart, err := s.carts.GetCartBySessionID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFoundMessage("cart not found")
			}
			return fmt.Errorf("get cart: %w", err)
		}

		line, err := s.carts.GetLine(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFoundMessage("product not in cart")
			}
			return fmt.Errorf("get cart line: %w", err)
		}
		removed = *line

		newStock, restored, err = s.restoreStock(ctx, productID, line.Quantity)
		if err != nil {
			return err
		}

		ok, err := s.carts.RemoveLine(ctx, cart.ID, productID)
		if err != nil {
			return fmt.Errorf("remove cart line: %w", err)
		}
		if !ok {
			return apperrors.NotFoundMessage("product not in cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product removed from cart",
		slog.String("session_id", sessionID),
		slog.Int64("product_id", productID),
		slog.Int("quantity", removed.Quantity),
		slog.Bool("stock_restored", restored),
	)
	if restored {
		s.publishStockChanged(ctx, productID, newStock, StockReasonCartRemove)
	} else {
		s.reportSkippedRestoration(ctx, sessionID, productID, removed.Quantity)
	}

	return s.summarizeAndPublish(ctx, sessionID)
}

// GetCart returns the session's cart summary, creating an empty cart on
// first access.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (summary *domain.CartSummary, err error) {
	ctx, end := observe(ctx, opGetCart, sessionID)
	defer func() { end(err) }()

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	ctx = logger.WithSessionID(ctx, sessionID)
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.carts.GetCartBySessionID(ctx, sessionID)
	if err == nil {
		sum := cart.Summarize()
		return &sum, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.getOrCreateCart(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.summarize(ctx, sessionID)
}

// ClearCart removes every line from the session's cart, returning each
// line's quantity to stock.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) (summary *domain.CartSummary, err error) {
	ctx, end := observe(ctx, opClearCart, sessionID)
	defer func() { end(err) }()

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	ctx = logger.WithSessionID(ctx, sessionID)
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	type restoration struct {
		line     domain.CartLine
		stock    int
		restored bool
	}
	var results []restoration

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cart, err := s.carts.GetCartBySessionID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFoundMessage("cart not found")
			}
			return fmt.Errorf("get cart: %w", err)
		}

		results = results[:0]
		for _, line := range cart.Lines {
			stock, ok, err := s.restoreStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			results = append(results, restoration{line: line, stock: stock, restored: ok})
		}

		if _, err := s.carts.ClearCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.restored {
			s.publishStockChanged(ctx, r.line.ProductID, r.stock, StockReasonCartRemove)
		} else {
			s.reportSkippedRestoration(ctx, sessionID, r.line.ProductID, r.line.Quantity)
		}
	}
	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("session_id", sessionID),
		slog.Int("lines", len(results)),
	)

	return s.summarizeAndPublish(ctx, sessionID)
}

// restoreStock adds quantity back to the product. It reports false, without
// error, when the product no longer exists.
func (s *CartService) restoreStock(ctx context.Context, productID int64, quantity int) (int, bool, error) {
	stock, err := s.products.AdjustStock(ctx, productID, quantity)
	switch {
	case err == nil:
		return stock, true, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("restore stock: %w", err)
	}
}

func (s *CartService) reportSkippedRestoration(ctx context.Context, sessionID string, productID int64, quantity int) {
	stockRestorationSkipped.Inc()
	s.logger.WarnContext(ctx, "product no longer exists, stock not restored",
		slog.String("session_id", sessionID),
		slog.Int64("product_id", productID),
		slog.Int("quantity", quantity),
	)
	if err := s.events.PublishRestorationSkipped(ctx, sessionID, productID, quantity); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish restoration_skipped event",
			slog.Int64("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartService) getOrCreateCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.carts.GetCartBySessionID(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart = &domain.Cart{
		SessionID: sessionID,
		Lines:     []domain.CartLine{},
		Audit:     domain.NewAudit(domain.SystemActor, s.now()),
	}
	if err := s.carts.CreateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	s.logger.DebugContext(ctx, "cart created",
		slog.String("session_id", sessionID),
		slog.Int64("cart_id", cart.ID),
	)
	return cart, nil
}

// summarize re-reads the cart after commit. A failure here leaves the
// committed writes in place and is returned as is.
func (s *CartService) summarize(ctx context.Context, sessionID string) (*domain.CartSummary, error) {
	cart, err := s.carts.GetCartBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	sum := cart.Summarize()
	return &sum, nil
}

func (s *CartService) summarizeAndPublish(ctx context.Context, sessionID string) (*domain.CartSummary, error) {
	summary, err := s.summarize(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.events.PublishCartUpdated(ctx, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	return summary, nil
}

func (s *CartService) publishStockChanged(ctx context.Context, productID int64, stock int, reason string) {
	if err := s.events.PublishStockChanged(ctx, productID, stock, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock_changed event",
			slog.Int64("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartService) lockSession(ctx context.Context, sessionID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to acquire session lock",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unavailable("cart is busy, please retry")
	}
	return unlock, nil
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return apperrors.InvalidInput("session_id is required")
	}
	if utf8.RuneCountInString(sessionID) > domain.MaxSessionIDLength {
		return apperrors.InvalidInput("session_id must be at most " + strconv.Itoa(domain.MaxSessionIDLength) + " characters")
	}
	return nil
}

func productLookupError(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFoundMessage("product not found")
	}
	return fmt.Errorf("get product: %w", err)
}

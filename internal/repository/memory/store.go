// Package memory provides in-process implementations of the repository ports.
// All operations are serialized; WithinTx holds the store for the duration of
// the callback and undoes its writes when the callback fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/catalogcart/internal/domain"
	apperrors "github.com/utafrali/catalogcart/pkg/errors"
)

type lineKey struct {
	cartID    int64
	productID int64
}

type cartRow struct {
	id        int64
	sessionID string
	audit     domain.Audit
}

type memTx struct {
	owner *Store
	undo  []func()
}

type txKey struct{}

// Store holds products, carts and lines in maps. It implements
// repository.ProductRepository, repository.CartRepository and
// repository.Transactor.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	products      map[int64]domain.Product
	carts         map[int64]cartRow
	cartBySession map[string]int64
	lines         map[lineKey]domain.CartLine

	nextProductID int64
	nextCartID    int64
	nextLineID    int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for stock adjustments.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:           func() time.Time { return time.Now().UTC() },
		products:      make(map[int64]domain.Product),
		carts:         make(map[int64]cartRow),
		cartBySession: make(map[string]int64),
		lines:         make(map[lineKey]domain.CartLine),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinTx runs fn with exclusive access to the store. If fn returns an
// error every write it made is reverted.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok && tx.owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{owner: s}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// do runs fn inside the caller's transaction, or in its own critical section.
func (s *Store) do(ctx context.Context, fn func(tx *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok && tx.owner == s {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{owner: s})
}

func (s *Store) putProduct(tx *memTx, p domain.Product) {
	old, existed := s.products[p.ID]
	s.products[p.ID] = p
	tx.undo = append(tx.undo, func() {
		if existed {
			s.products[p.ID] = old
		} else {
			delete(s.products, p.ID)
		}
	})
}

func (s *Store) deleteProduct(tx *memTx, id int64) {
	old := s.products[id]
	delete(s.products, id)
	tx.undo = append(tx.undo, func() { s.products[id] = old })
}

func (s *Store) putCart(tx *memTx, c cartRow) {
	s.carts[c.id] = c
	s.cartBySession[c.sessionID] = c.id
	tx.undo = append(tx.undo, func() {
		delete(s.carts, c.id)
		delete(s.cartBySession, c.sessionID)
	})
}

func (s *Store) putLine(tx *memTx, l domain.CartLine) {
	key := lineKey{l.CartID, l.ProductID}
	old, existed := s.lines[key]
	s.lines[key] = l
	tx.undo = append(tx.undo, func() {
		if existed {
			s.lines[key] = old
		} else {
			delete(s.lines, key)
		}
	})
}

func (s *Store) deleteLine(tx *memTx, key lineKey) {
	old := s.lines[key]
	delete(s.lines, key)
	tx.undo = append(tx.undo, func() { s.lines[key] = old })
}

func cloneProduct(p domain.Product) *domain.Product {
	if p.Description != nil {
		d := *p.Description
		p.Description = &d
	}
	return &p
}

// ---------------------------------------------------------------------------
// ProductRepository
// ---------------------------------------------------------------------------

func (s *Store) Create(ctx context.Context, product *domain.Product) error {
	return s.do(ctx, func(tx *memTx) error {
		s.nextProductID++
		product.ID = s.nextProductID
		s.putProduct(tx, *cloneProduct(*product))
		return nil
	})
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var out *domain.Product
	err := s.do(ctx, func(tx *memTx) error {
		p, ok := s.products[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

// GetByIDForUpdate is GetByID; the store is already held exclusively.
func (s *Store) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return s.GetByID(ctx, id)
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Product, error) {
	return s.filterProducts(ctx, func(domain.Product) bool { return true })
}

func (s *Store) SearchByName(ctx context.Context, name string) ([]domain.Product, error) {
	needle := strings.ToLower(name)
	return s.filterProducts(ctx, func(p domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle)
	})
}

func (s *Store) filterProducts(ctx context.Context, keep func(domain.Product) bool) ([]domain.Product, error) {
	out := []domain.Product{}
	err := s.do(ctx, func(tx *memTx) error {
		for _, p := range s.products {
			if keep(p) {
				out = append(out, *cloneProduct(p))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *Store) Update(ctx context.Context, product *domain.Product) error {
	return s.do(ctx, func(tx *memTx) error {
		if _, ok := s.products[product.ID]; !ok {
			return apperrors.ErrNotFound
		}
		s.putProduct(tx, *cloneProduct(*product))
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.do(ctx, func(tx *memTx) error {
		if _, ok := s.products[id]; ok {
			s.deleteProduct(tx, id)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var stock int
	err := s.do(ctx, func(tx *memTx) error {
		p, ok := s.products[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		if delta > 0 && p.Stock > domain.MaxStock-delta {
			return fmt.Errorf("adjust stock of product %d by %d (have %d) exceeds %d: %w", id, delta, p.Stock, domain.MaxStock, apperrors.ErrInvalidInput)
		}
		if p.Stock+delta < 0 {
			return fmt.Errorf("adjust stock of product %d by %d (have %d): %w", id, delta, p.Stock, apperrors.ErrInsufficientStock)
		}
		p.Stock += delta
		p.Touch(domain.SystemActor, s.now())
		s.putProduct(tx, p)
		stock = p.Stock
		return nil
	})
	return stock, err
}

// ---------------------------------------------------------------------------
// CartRepository
// ---------------------------------------------------------------------------

func (s *Store) CreateCart(ctx context.Context, cart *domain.Cart) error {
	return s.do(ctx, func(tx *memTx) error {
		if id, ok := s.cartBySession[cart.SessionID]; ok {
			row := s.carts[id]
			cart.ID = row.id
			cart.Audit = row.audit
			return nil
		}
		s.nextCartID++
		cart.ID = s.nextCartID
		s.putCart(tx, cartRow{id: cart.ID, sessionID: cart.SessionID, audit: cart.Audit})
		return nil
	})
}

func (s *Store) GetCartBySessionID(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.do(ctx, func(tx *memTx) error {
		id, ok := s.cartBySession[sessionID]
		if !ok {
			return apperrors.ErrNotFound
		}
		row := s.carts[id]
		cart := &domain.Cart{ID: row.id, SessionID: row.sessionID, Lines: []domain.CartLine{}, Audit: row.audit}
		for key, l := range s.lines {
			if key.cartID != id {
				continue
			}
			if p, ok := s.products[l.ProductID]; ok {
				l.Product = &domain.ProductRef{Name: p.Name, Price: p.Price}
			}
			cart.Lines = append(cart.Lines, l)
		}
		sort.Slice(cart.Lines, func(i, j int) bool { return cart.Lines[i].ID < cart.Lines[j].ID })
		out = cart
		return nil
	})
	return out, err
}

func (s *Store) AddLine(ctx context.Context, line *domain.CartLine) error {
	return s.do(ctx, func(tx *memTx) error {
		if _, ok := s.carts[line.CartID]; !ok {
			return fmt.Errorf("add line to cart %d: %w", line.CartID, apperrors.ErrNotFound)
		}
		key := lineKey{line.CartID, line.ProductID}
		if _, ok := s.lines[key]; ok {
			return fmt.Errorf("add line for product %d: %w", line.ProductID, apperrors.ErrAlreadyExists)
		}
		s.nextLineID++
		line.ID = s.nextLineID
		stored := *line
		stored.Product = nil
		s.putLine(tx, stored)
		return nil
	})
}

func (s *Store) GetLine(ctx context.Context, cartID, productID int64) (*domain.CartLine, error) {
	var out *domain.CartLine
	err := s.do(ctx, func(tx *memTx) error {
		l, ok := s.lines[lineKey{cartID, productID}]
		if !ok {
			return apperrors.ErrNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (s *Store) UpdateLine(ctx context.Context, line *domain.CartLine) error {
	return s.do(ctx, func(tx *memTx) error {
		key := lineKey{line.CartID, line.ProductID}
		if _, ok := s.lines[key]; !ok {
			return apperrors.ErrNotFound
		}
		stored := *line
		stored.Product = nil
		s.putLine(tx, stored)
		return nil
	})
}

func (s *Store) RemoveLine(ctx context.Context, cartID, productID int64) (bool, error) {
	var removed bool
	err := s.do(ctx, func(tx *memTx) error {
		key := lineKey{cartID, productID}
		if _, ok := s.lines[key]; ok {
			s.deleteLine(tx, key)
			removed = true
		}
		return nil
	})
	return removed, err
}

func (s *Store) ClearCart(ctx context.Context, cartID int64) (bool, error) {
	var exists bool
	err := s.do(ctx, func(tx *memTx) error {
		if _, exists = s.carts[cartID]; !exists {
			return nil
		}
		for key := range s.lines {
			if key.cartID == cartID {
				s.deleteLine(tx, key)
			}
		}
		return nil
	})
	return exists, err
}

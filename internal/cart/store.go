package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/angelmondragon/storefront-checkout/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/shopspring/decimal"
)

type mutationRecorder interface {
	IncCartMutation(op string)
}

// Options carries the optional collaborators of a Store.
type Options struct {
	Notifier Notifier
	Logger   *logger.Logger
	Metrics  mutationRecorder
}

// Store owns the cart lines for one tenant as seen by one device.
//
// Two Store values opened on the same key do not coordinate: each one
// read-modify-writes the whole record and the last write wins.
type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	tenant   string
	lines    []Line
	notifier Notifier
	logg     *logger.Logger
	metrics  mutationRecorder
}

// Open loads the tenant's cart from kv. Missing or malformed records yield an
// empty cart; only storage failures are returned as errors.
func Open(ctx context.Context, kv storage.KV, tenant string, opts Options) (*Store, error) {
	if kv == nil {
		return nil, errors.New("cart storage required")
	}
	if tenant == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	s := &Store{
		kv:       kv,
		tenant:   tenant,
		notifier: opts.Notifier,
		logg:     opts.Logger,
		metrics:  opts.Metrics,
	}

	raw, err := kv.Get(ctx, StorageKey(tenant))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var stored []Line
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.warn(ctx, "discarding malformed cart record", err)
		return s, nil
	}
	seen := make(map[int64]struct{}, len(stored))
	for _, l := range stored {
		if _, dup := seen[l.ProductID]; dup || !l.valid() {
			continue
		}
		seen[l.ProductID] = struct{}{}
		s.lines = append(s.lines, l)
	}
	if len(s.lines) != len(stored) {
		s.warn(ctx, "dropped invalid cart lines", nil)
	}
	return s, nil
}

// Tenant returns the tenant the cart belongs to.
func (s *Store) Tenant() string {
	return s.tenant
}

// AddItem merges qty units of product into the cart, clamped to product.Stock.
// The line's stock snapshot is refreshed from product.
func (s *Store) AddItem(ctx context.Context, product Product, qty int) (Line, error) {
	if qty < 1 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if product.ID <= 0 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if product.Price.IsNegative() {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative")
	}
	if product.Stock < 1 {
		return Line{}, pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock").
			WithDetails(map[string]any{"product_id": product.ID})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Clamp before summing so current+qty cannot overflow.
	qty = min(qty, product.Stock)

	next := cloneLines(s.lines)
	idx := indexOf(next, product.ID)
	if idx >= 0 {
		current := next[idx].Quantity
		if current >= product.Stock {
			next[idx].Quantity = product.Stock
		} else {
			next[idx].Quantity = current + min(qty, product.Stock-current)
		}
		next[idx].StockSnapshot = product.Stock
	} else {
		next = append(next, Line{
			ProductID:     product.ID,
			Name:          product.Name,
			UnitPrice:     product.Price,
			Quantity:      qty,
			StockSnapshot: product.Stock,
		})
		idx = len(next) - 1
	}

	if err := s.commit(ctx, "add", next); err != nil {
		return Line{}, err
	}
	return next[idx], nil
}

// UpdateQuantity sets a line's quantity clamped to its stock snapshot.
// newQty <= 0 removes the line. Unknown product ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, newQty int) error {
	if newQty <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.lines, productID)
	if idx < 0 {
		return nil
	}
	next := cloneLines(s.lines)
	limit := next[idx].StockSnapshot
	if limit <= 0 {
		limit = next[idx].Quantity
	}
	next[idx].Quantity = min(newQty, limit)
	return s.commit(ctx, "update", next)
}

// RemoveItem deletes the line for productID. Unknown ids are ignored.
func (s *Store) RemoveItem(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.lines, productID)
	if idx < 0 {
		return nil
	}
	next := make([]Line, 0, len(s.lines)-1)
	next = append(next, s.lines[:idx]...)
	next = append(next, s.lines[idx+1:]...)
	return s.commit(ctx, "remove", next)
}

// Clear empties the cart and deletes the persisted record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, StorageKey(s.tenant)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.lines = nil
	s.afterMutation(ctx, "clear")
	return nil
}

// Total is the exact sum of UnitPrice × Quantity.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.lines)
}

// ItemCount is the sum of line quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.lines)
}

// Lines returns a copy of the cart lines in display order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Tenant:    s.tenant,
		Lines:     cloneLines(s.lines),
		Total:     total(s.lines),
		ItemCount: itemCount(s.lines),
	}
}

// commit persists next and, once stored, makes it the live state.
func (s *Store) commit(ctx context.Context, op string, next []Line) error {
	payload, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.kv.Set(ctx, StorageKey(s.tenant), string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	s.lines = next
	s.afterMutation(ctx, op)
	return nil
}

func (s *Store) afterMutation(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.IncCartMutation(op)
	}
	if s.notifier != nil {
		s.notifier.CartChanged(ctx, Change{
			Tenant:    s.tenant,
			ItemCount: itemCount(s.lines),
			Total:     total(s.lines),
		})
	}
}

func (s *Store) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithTenant(ctx, s.tenant)
	if err != nil {
		ctx = s.logg.WithField(ctx, "error", err.Error())
	}
	s.logg.Warn(ctx, msg)
}

func indexOf(lines []Line, productID int64) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Package cart implements the storefront shopping cart: a small ordered
// collection of items persisted as a whole under a single storage key after
// every change. Totals are derived on read and never stored.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ltec/orderrelay/internal/domain/shared"
)

const (
	// DefaultKey is the storage key the cart is persisted under
	DefaultKey = "ltec_cart"
	// DefaultMaxQuantity caps the quantity of a single item
	DefaultMaxQuantity = 10
)

// DefaultTaxRate is applied to the subtotal
var DefaultTaxRate = decimal.RequireFromString("0.15")

var (
	// ErrNoData is returned by a Storage when nothing is stored under a key
	ErrNoData = errors.New("cart: no data stored")
	// ErrCorrupt is returned by Open when the stored cart cannot be decoded
	ErrCorrupt = errors.New("cart: stored data is corrupt")
	// ErrInvalidProduct is returned by Add for products without an id or with a negative price
	ErrInvalidProduct = shared.NewDomainError("INVALID_PRODUCT", "Product must have an id and a non-negative price")
)

// Storage is a durable key-value store holding the serialized cart
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Product is what gets added to the cart
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Image string
}

// Item is one cart line
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	ImageRef  string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns unit price times quantity
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals is a snapshot of the derived cart amounts
type Totals struct {
	Count    int
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithMaxQuantity overrides the per-item quantity cap
func WithMaxQuantity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxQty = n
		}
	}
}

// WithTaxRate overrides the tax rate
func WithTaxRate(rate decimal.Decimal) Option {
	return func(s *Store) { s.taxRate = rate }
}

// Store is the cart. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	storage Storage
	key     string
	maxQty  int
	taxRate decimal.Decimal
	items   []Item
}

// New returns an empty cart bound to storage without reading it
func New(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
		maxQty:  DefaultMaxQuantity,
		taxRate: DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a cart populated from storage. A missing key yields an empty cart.
func Open(ctx context.Context, storage Storage, opts ...Option) (*Store, error) {
	s := New(storage, opts...)

	data, err := storage.Load(ctx, s.key)
	if errors.Is(err, ErrNoData) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	s.items = s.normalize(items)
	return s, nil
}

// normalize merges duplicate ids, drops empty lines and clamps quantities
// so data written by older clients still satisfies the cart invariants.
func (s *Store) normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ID == "" || it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity = s.clamp(out[i].Quantity + it.Quantity)
			continue
		}
		it.Quantity = s.clamp(it.Quantity)
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

func (s *Store) clamp(q int) int {
	if q > s.maxQty {
		return s.maxQty
	}
	return q
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// mutate applies fn to a copy of the items and persists the result. The
// in-memory state only changes once the save succeeded.
func (s *Store) mutate(ctx context.Context, fn func(items []Item) []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(append([]Item(nil), s.items...))
	data, err := json.Marshal(nonNil(next))
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.items = next
	return nil
}

func nonNil(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}

// Add inserts the product with quantity 1, or increments the existing line
// up to the quantity cap.
func (s *Store) Add(ctx context.Context, p Product) error {
	if p.ID == "" || p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return s.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].ID == p.ID {
				items[i].Quantity = s.clamp(items[i].Quantity + 1)
				return items
			}
		}
		return append(items, Item{
			ID:        p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			ImageRef:  p.Image,
			Quantity:  1,
		})
	})
}

// Remove deletes the line with the given id. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.RLock()
	found := s.indexOf(id) >= 0
	s.mu.RUnlock()
	if !found {
		return nil
	}
	return s.mutate(ctx, func(items []Item) []Item {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})
}

// SetQuantity overwrites the quantity of a line, clamped to the cap.
// A quantity of zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, id)
	}
	s.mu.RLock()
	found := s.indexOf(id) >= 0
	s.mu.RUnlock()
	if !found {
		return nil
	}
	return s.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = s.clamp(quantity)
			}
		}
		return items
	})
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Item) []Item { return nil })
}

// Items returns a copy of the cart lines in insertion order
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Len returns the number of distinct lines
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// IsEmpty reports whether the cart has no lines
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Count returns the sum of all quantities
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Subtotal returns the sum of line totals
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subtotal()
}

func (s *Store) subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Tax returns the subtotal times the tax rate
func (s *Store) Tax() decimal.Decimal {
	return s.Subtotal().Mul(s.taxRate)
}

// Total returns subtotal plus tax
func (s *Store) Total() decimal.Decimal {
	sub := s.Subtotal()
	return sub.Add(sub.Mul(s.taxRate))
}

// Totals returns count, subtotal, tax and total computed from one snapshot
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub := s.subtotal()
	tax := sub.Mul(s.taxRate)
	count := 0
	for _, it := range s.items {
		count += it.Quantity
	}
	return Totals{Count: count, Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// TaxRate returns the configured tax rate
func (s *Store) TaxRate() decimal.Decimal {
	return s.taxRate
}

// MaxQuantity returns the per-item quantity cap
func (s *Store) MaxQuantity() int {
	return s.maxQty
}

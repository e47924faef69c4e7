// Package memstore is an in-process implementation of the order store.
// Units of work are serialised by one store-wide mutex and applied to a
// copy of the state, so a failed unit of work leaves nothing behind.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

type state struct {
	nextOrder int64
	nextLine  int64
	orders    map[int64]orders.Order
	lines     map[int64][]orders.OrderLine
	inventory map[int64]orders.InventoryRecord
}

func (s *state) clone() *state {
	c := &state{
		nextOrder: s.nextOrder,
		nextLine:  s.nextLine,
		orders:    maps.Clone(s.orders),
		lines:     make(map[int64][]orders.OrderLine, len(s.lines)),
		inventory: maps.Clone(s.inventory),
	}
	for id, ls := range s.lines {
		c.lines[id] = slices.Clone(ls)
	}
	return c
}

type Store struct {
	mu        sync.Mutex
	st        *state
	products  map[int64]orders.Product
	customers map[int64]orders.Customer
	now       func() time.Time
}

func New() *Store {
	return &Store{
		st: &state{
			orders:    map[int64]orders.Order{},
			lines:     map[int64][]orders.OrderLine{},
			inventory: map[int64]orders.InventoryRecord{},
		},
		products:  map[int64]orders.Product{},
		customers: map[int64]orders.Customer{},
		now:       time.Now,
	}
}

// AddProduct registers a catalog entry and, when withStock is true, its inventory record.
func (s *Store) AddProduct(p orders.Product, qty, minStock int, withStock bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	if withStock {
		s.st.inventory[p.ID] = orders.InventoryRecord{ProductID: p.ID, Quantity: qty, MinStock: minStock, UpdatedAt: s.now()}
	}
}

func (s *Store) AddCustomer(c orders.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// InTx runs fn against a private copy of the state and publishes the copy only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := &memTx{st: s.st.clone(), now: s.now}
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.st = work.st
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID int64) (orders.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return orders.OrderDetail{}, orders.ErrOrderNotFound
	}
	return orders.OrderDetail{Order: o, Lines: append([]orders.OrderLine{}, s.st.lines[orderID]...)}, nil
}

// Orders returns every order header, oldest first.
func (s *Store) Orders() []orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0, len(s.st.orders))
	for _, id := range slices.Sorted(maps.Keys(s.st.orders)) {
		out = append(out, s.st.orders[id])
	}
	return out
}

func (s *Store) ListInventory(_ context.Context) ([]orders.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.InventoryRecord, 0, len(s.st.inventory))
	for _, id := range slices.Sorted(maps.Keys(s.st.inventory)) {
		out = append(out, s.st.inventory[id])
	}
	return out, nil
}

// Stock reports the quantity on hand; ok is false when the product has no inventory record.
func (s *Store) Stock(productID int64) (qty int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.inventory[productID]
	return rec.Quantity, ok
}

func (s *Store) UpsertInventory(_ context.Context, rec orders.InventoryRecord) (orders.InventoryRecord, error) {
	if rec.Quantity < 0 || rec.MinStock < 0 {
		return orders.InventoryRecord{}, fmt.Errorf("%w: product %d: quantity and min_stock must not be negative", orders.ErrInvalidInventory, rec.ProductID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[rec.ProductID]; !ok {
		return orders.InventoryRecord{}, fmt.Errorf("%w: %d", orders.ErrProductNotFound, rec.ProductID)
	}
	rec.UpdatedAt = s.now()
	s.st.inventory[rec.ProductID] = rec
	return rec, nil
}

func (s *Store) ProductName(_ context.Context, productID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	return p.Name, ok && p.Name != ""
}

func (s *Store) Customer(_ context.Context, customerID int64) (orders.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerID]
	return c, ok
}

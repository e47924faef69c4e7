package main

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout/internal/memstore"
	"github.com/ariefcatur/go-checkout/internal/orders"
)

// seedDemo gives the in-memory store a small catalog to try /compra against.
func seedDemo(s *memstore.Store) {
	s.AddCustomer(orders.Customer{ID: 1, Name: "Cliente Demo", Email: "demo@example.com"})
	s.AddProduct(orders.Product{ID: 1, Name: "Teclado mecánico", Price: decimal.RequireFromString("45.90")}, 25, 5, true)
	s.AddProduct(orders.Product{ID: 2, Name: "Mouse inalámbrico", Price: decimal.RequireFromString("19.50")}, 8, 10, true)
	s.AddProduct(orders.Product{ID: 3, Name: "Monitor 24\"", Price: decimal.RequireFromString("139.00")}, 3, 2, true)
	s.AddProduct(orders.Product{ID: 4, Name: "Cable HDMI", Price: decimal.RequireFromString("6.25")}, 0, 0, false)
}

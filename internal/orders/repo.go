package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// InTx runs fn in one database transaction; any error from fn rolls everything back.
func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err // rollback via defer
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, orderID int64) (OrderDetail, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, customer_id, seller_id, status, total, created_at
		FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderDetail{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderDetail{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, subtotal
		FROM order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	defer rows.Close()

	d := OrderDetail{Order: o, Lines: []OrderLine{}}
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.Subtotal); err != nil {
			return OrderDetail{}, err
		}
		d.Lines = append(d.Lines, l)
	}
	return d, rows.Err()
}

func (r *Repo) ListInventory(ctx context.Context) ([]InventoryRecord, error) {
	rows, err := r.DB.Query(ctx, `SELECT product_id, quantity, min_stock, updated_at
	                              FROM inventory ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []InventoryRecord{}
	for rows.Next() {
		var rec InventoryRecord
		if err := rows.Scan(&rec.ProductID, &rec.Quantity, &rec.MinStock, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertInventory sets the absolute quantity and threshold of a product (restock / correction).
func (r *Repo) UpsertInventory(ctx context.Context, rec InventoryRecord) (InventoryRecord, error) {
	if rec.Quantity < 0 || rec.MinStock < 0 {
		return InventoryRecord{}, fmt.Errorf("%w: product %d: quantity and min_stock must not be negative", ErrInvalidInventory, rec.ProductID)
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO inventory(product_id, quantity, min_stock)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id) DO UPDATE
		   SET quantity = EXCLUDED.quantity, min_stock = EXCLUDED.min_stock, updated_at = now()
		RETURNING updated_at`, rec.ProductID, rec.Quantity, rec.MinStock).Scan(&rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
		return InventoryRecord{}, fmt.Errorf("%w: %d", ErrProductNotFound, rec.ProductID)
	}
	if err != nil {
		return InventoryRecord{}, err
	}
	return rec, nil
}

// ProductName is a best-effort lookup: any failure reads as "unknown".
func (r *Repo) ProductName(ctx context.Context, productID int64) (string, bool) {
	var name string
	if err := r.DB.QueryRow(ctx, `SELECT name FROM products WHERE id=$1`, productID).Scan(&name); err != nil {
		return "", false
	}
	return name, name != ""
}

func (r *Repo) Customer(ctx context.Context, customerID int64) (Customer, bool) {
	c := Customer{ID: customerID}
	err := r.DB.QueryRow(ctx, `SELECT name, email FROM customers WHERE id=$1`, customerID).Scan(&c.Name, &c.Email)
	if err != nil {
		return Customer{}, false
	}
	return c, true
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.CustomerID, &o.SellerID, &status, &o.Total, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

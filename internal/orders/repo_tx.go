package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders(customer_id, seller_id, status, total, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		o.CustomerID, o.SellerID, string(o.Status), o.Total, o.CreatedAt,
	).Scan(&o.ID)
}

func (t *pgTx) InsertLine(ctx context.Context, l *OrderLine) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO order_lines(order_id, product_id, quantity, subtotal)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		l.OrderID, l.ProductID, l.Quantity, l.Subtotal,
	).Scan(&l.ID)
}

// LockStock: lock baris inventory (FOR UPDATE) urut product_id supaya dua order
// dengan produk yang sama tidak saling deadlock.
func (t *pgTx) LockStock(ctx context.Context, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		SELECT product_id FROM inventory
		WHERE product_id = ANY($1)
		ORDER BY product_id
		FOR UPDATE`, productIDs)
	return err
}

// DecrementStock: cek stok di bawah row lock -> kurangi. Lock ditahan sampai commit/rollback,
// jadi tidak ada order lain yang bisa membaca stok lama di antara cek dan update.
func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) (StockLevel, error) {
	var stock, minStock int
	err := t.tx.QueryRow(ctx, `SELECT quantity, min_stock FROM inventory WHERE product_id=$1 FOR UPDATE`,
		productID).Scan(&stock, &minStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, &StockError{ProductID: productID, Requested: qty, Err: ErrInventoryNotFound}
	}
	if err != nil {
		return StockLevel{}, err
	}
	if stock < qty {
		return StockLevel{}, &StockError{ProductID: productID, Requested: qty, Available: stock, Err: ErrInsufficientStock}
	}

	lvl := StockLevel{ProductID: productID}
	if err := t.tx.QueryRow(ctx, `
		UPDATE inventory SET quantity = quantity - $2, updated_at = now()
		WHERE product_id=$1
		RETURNING quantity, min_stock`, productID, qty).Scan(&lvl.Available, &lvl.MinStock); err != nil {
		return StockLevel{}, err
	}
	return lvl, nil
}

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `
		SELECT id, customer_id, seller_id, status, total, created_at
		FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (t *pgTx) SetStatus(ctx context.Context, orderID int64, s Status) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, string(s))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

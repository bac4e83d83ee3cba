package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// CreateOrder stores a pending supplement order.
func (db *DB) CreateOrder(ctx context.Context, o *model.Order) error {
	o.Status = model.OrderPending
	o.CreatedAt = time.Now()

	var owner any
	if o.OwnerID != nil {
		owner = *o.OwnerID
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO orders (owner_id, full_name, phone, products, comment, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		owner, o.FullName, o.Phone, o.Products, nullString(o.Comment), string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

const orderColumns = `id, owner_id, full_name, phone, products, comment, status, created_at`

// PendingOrders lists orders awaiting processing, oldest first.
func (db *DB) PendingOrders(ctx context.Context) ([]model.Order, error) {
	return db.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = 'pending' ORDER BY created_at`)
}

// ListOrders returns every order, oldest first.
func (db *DB) ListOrders(ctx context.Context) ([]model.Order, error) {
	return db.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at`)
}

func (db *DB) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var (
			o       model.Order
			owner   sql.NullInt64
			comment sql.NullString
			status  string
		)
		if err := rows.Scan(&o.ID, &owner, &o.FullName, &o.Phone, &o.Products, &comment, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			id := owner.Int64
			o.OwnerID = &id
		}
		o.Comment = comment.String
		o.Status = model.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOrderProcessed closes an order.
func (db *DB) MarkOrderProcessed(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `UPDATE orders SET status = 'processed' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("process order %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

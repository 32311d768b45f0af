package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	orderDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/order"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage"
	"github.com/jmoiron/sqlx"
)

const (
	lockItemQuery = `SELECT id, name, description, price, quantity, sku, created_by, created_at, updated_at
		FROM inventory WHERE id = $1 FOR UPDATE`

	decrementQuery = `UPDATE inventory SET quantity = quantity - $1, updated_at = NOW()
		WHERE id = $2 AND quantity >= $1`

	insertOrderQuery = `INSERT INTO orders (user_id, status, total)
		VALUES ($1, $2, $3) RETURNING id, created_at`

	insertOrderItemQuery = `INSERT INTO order_items (order_id, inventory_id, quantity, price)
		VALUES ($1, $2, $3, $4) RETURNING id`

	listOrdersQuery = `SELECT id, user_id, status, total, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	listOrderItemsQuery = `SELECT id, order_id, inventory_id, quantity, price
		FROM order_items WHERE order_id IN (?) ORDER BY order_id, id`
)

type CheckoutRepository struct {
	db *sqlx.DB
}

func NewCheckoutRepository(db *sqlx.DB) checkout.RepositoryAPI {
	return &CheckoutRepository{db: db}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
func (r *CheckoutRepository) WithinTransaction(ctx context.Context, fn func(tx checkout.TxAPI) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin checkout transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&txRepository{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout transaction: %w", err)
	}
	return nil
}

func (r *CheckoutRepository) ListOrders(ctx context.Context, userID int64) ([]*orderDatamodel.Order, error) {
	var orders []*orderDatamodel.Order
	if err := r.db.SelectContext(ctx, &orders, listOrdersQuery, userID); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (r *CheckoutRepository) ListOrderItems(ctx context.Context, orderIDs []int64) ([]*orderDatamodel.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(listOrderItemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("build order items query: %w", err)
	}
	var items []*orderDatamodel.OrderItem
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

type txRepository struct {
	tx *sqlx.Tx
}

func (t *txRepository) LockItem(ctx context.Context, id int64) (*inventoryDatamodel.Item, error) {
	var item inventoryDatamodel.Item
	if err := t.tx.GetContext(ctx, &item, lockItemQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrInventoryNotFound
		}
		return nil, fmt.Errorf("lock inventory %d: %w", id, err)
	}
	return &item, nil
}

// DecrementQuantity keeps its own quantity guard so the row can never go
// negative even if a caller skipped the lock.
func (t *txRepository) DecrementQuantity(ctx context.Context, id, quantity int64) error {
	res, err := t.tx.ExecContext(ctx, decrementQuery, quantity, id)
	if err != nil {
		if storage.IsCheckViolation(err) {
			return internal.NewInsufficientStockError(id, quantity, 0)
		}
		return fmt.Errorf("decrement inventory %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement inventory %d: %w", id, err)
	}
	if n != 1 {
		return internal.NewInsufficientStockError(id, quantity, 0)
	}
	return nil
}

func (t *txRepository) CreateOrder(ctx context.Context, order *orderDatamodel.Order) error {
	row := t.tx.QueryRowxContext(ctx, insertOrderQuery, order.UserID, order.Status, order.Total)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *txRepository) CreateOrderItems(ctx context.Context, items []*orderDatamodel.OrderItem) error {
	for _, it := range items {
		if err := t.tx.QueryRowxContext(ctx, insertOrderItemQuery, it.OrderID, it.InventoryID, it.Quantity, it.Price).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow/order-validation/internal/order/application"
	"github.com/orderflow/order-validation/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// EnsureSchema creates the tables on startup if they are missing. Items and
// payments are deleted with their order.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{`
		CREATE TABLE IF NOT EXISTS orders (
			id          BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			date        TIMESTAMPTZ NOT NULL,
			status      TEXT NOT NULL
		)`, `
		CREATE TABLE IF NOT EXISTS order_items (
			id         BIGSERIAL PRIMARY KEY,
			order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL,
			quantity   INT NOT NULL
		)`, `
		CREATE TABLE IF NOT EXISTS payments (
			id           BIGSERIAL PRIMARY KEY,
			order_id     BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			amount_cents BIGINT NOT NULL,
			date         TIMESTAMPTZ NOT NULL,
			method       TEXT NOT NULL,
			status       TEXT NOT NULL
		)`, `
		CREATE TABLE IF NOT EXISTS outbox (
			id             BIGSERIAL PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id   TEXT NOT NULL,
			type           TEXT NOT NULL,
			payload        BYTEA NOT NULL,
			traceparent    TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'pending',
			relay_id       TEXT,
			lease_until    TIMESTAMPTZ,
			retry_count    INT NOT NULL DEFAULT 0,
			last_error     TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Begin opens a transaction owned by a single PlaceOrder call.
func (r *Repository) Begin(ctx context.Context) (application.OrderTx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.SaveOrder(ctx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_id, date, status FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.Date, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.Items, err = r.itemsFor(ctx, id); err != nil {
		return domain.Order{}, err
	}
	if o.Payments, err = r.paymentsFor(ctx, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) ListOrders(ctx context.Context, withItems, withPayments bool) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, date, status FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Date, &o.Status); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if withItems {
			if orders[i].Items, err = r.itemsFor(ctx, orders[i].ID); err != nil {
				return nil, err
			}
		}
		if withPayments {
			if orders[i].Payments, err = r.paymentsFor(ctx, orders[i].ID); err != nil {
				return nil, err
			}
		}
	}
	return orders, nil
}

func (r *Repository) UpdateOrder(ctx context.Context, o domain.Order) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET customer_id=$2, date=$3, status=$4 WHERE id=$1`,
		o.ID, o.CustomerID, o.Date, o.Status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteOrder(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (r *Repository) itemsFor(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) paymentsFor(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, amount_cents, date, method, status FROM payments WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Date, &p.Method, &p.Status); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Tx implements application.OrderTx on a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) SaveOrder(ctx context.Context, o *domain.Order) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO orders (id, customer_id, date, status) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET customer_id=$2, date=$3, status=$4`,
		o.ID, o.CustomerID, o.Date, o.Status)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1,$2,$3)`,
			o.ID, it.ProductID, it.Quantity)
	}
	for _, p := range o.Payments {
		batch.Queue(`INSERT INTO payments (order_id, amount_cents, date, method, status) VALUES ($1,$2,$3,$4,$5)`,
			o.ID, p.AmountCents, p.Date, p.Method, p.Status)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order associations: %w", err)
	}
	return nil
}

func (t *Tx) AddEvent(ctx context.Context, eventType, aggregateID string, payload []byte, traceparent string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		 VALUES ('order',$1,$2,$3,$4,'pending')`,
		aggregateID, eventType, payload, traceparent)
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is safe to defer on every path; after a commit it is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// Package sqlite provides the SQLite-backed order repository.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
	"github.com/emezadev/ordering-sagas/internal/pkg/sqlitex"
)

// schema is the DDL applied once on startup. Timestamps are RFC3339 TEXT,
// the SQLite idiom used across this codebase.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                          TEXT PRIMARY KEY,
    buyer_id                    TEXT NOT NULL,
    buyer_name                  TEXT NOT NULL DEFAULT '',
    street                      TEXT NOT NULL,
    city                        TEXT NOT NULL,
    state                       TEXT NOT NULL,
    country                     TEXT NOT NULL,
    zip_code                    TEXT NOT NULL,
    payment_method              TEXT NOT NULL DEFAULT '',
    status                      TEXT NOT NULL,
    description                 TEXT NOT NULL DEFAULT '',

    -- Payment provider order id, attached on the stock-confirmed
    -- transition and immutable afterwards.
    payment_provider_order_id   TEXT NOT NULL DEFAULT '',

    created_at                  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    order_id      TEXT    NOT NULL REFERENCES orders(id),
    product_id    TEXT    NOT NULL,
    product_name  TEXT    NOT NULL DEFAULT '',
    unit_price    REAL    NOT NULL,
    discount      REAL    NOT NULL DEFAULT 0,
    units         INTEGER NOT NULL,
    picture_url   TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (order_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_status_created_at ON orders(status, created_at);
`

// Repository is the SQLite implementation of domain.Repository.
type Repository struct {
	db *sql.DB
}

var _ domain.Repository = (*Repository)(nil)

// New applies the schema and returns the repository.
func New(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("orders: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Save implements domain.Repository. It joins a transaction carried by ctx.
func (r *Repository) Save(ctx context.Context, o *domain.Order) error {
	q := sqlitex.From(ctx, r.db)

	const upsert = `
		INSERT INTO orders
			(id, buyer_id, buyer_name, street, city, state, country, zip_code,
			 payment_method, status, description, payment_provider_order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status                    = excluded.status,
			description               = excluded.description,
			payment_provider_order_id = excluded.payment_provider_order_id`

	_, err := q.ExecContext(ctx, upsert,
		o.ID.String(),
		o.BuyerID,
		o.BuyerName,
		o.Address.Street,
		o.Address.City,
		o.Address.State,
		o.Address.Country,
		o.Address.ZipCode,
		o.PaymentMethod,
		string(o.Status),
		o.Description,
		o.PaymentProviderOrderID,
		sqlitex.FormatTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("orders: save %s: %w", o.ID, err)
	}

	const insertItem = `
		INSERT OR IGNORE INTO order_items
			(order_id, product_id, product_name, unit_price, discount, units, picture_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, it := range o.Items {
		_, err := q.ExecContext(ctx, insertItem,
			o.ID.String(), it.ProductID, it.ProductName, it.UnitPrice, it.Discount, it.Units, it.PictureURL)
		if err != nil {
			return fmt.Errorf("orders: save item %s/%s: %w", o.ID, it.ProductID, err)
		}
	}
	return nil
}

// Get implements domain.Repository.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	q := sqlitex.From(ctx, r.db)

	const query = `
		SELECT id, buyer_id, buyer_name, street, city, state, country, zip_code,
		       payment_method, status, description, payment_provider_order_id, created_at
		FROM   orders
		WHERE  id = ?`

	o, err := scanOrder(q.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("orders: %s: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get %s: %w", id, err)
	}

	if o.Items, err = r.loadItems(ctx, q, id); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByStatusOlderThan implements domain.Repository.
func (r *Repository) ListByStatusOlderThan(ctx context.Context, status domain.OrderStatus, cutoff time.Time) ([]*domain.Order, error) {
	q := sqlitex.From(ctx, r.db)

	const query = `
		SELECT id, buyer_id, buyer_name, street, city, state, country, zip_code,
		       payment_method, status, description, payment_provider_order_id, created_at
		FROM   orders
		WHERE  status = ? AND created_at < ?
		ORDER  BY created_at`

	rows, err := q.QueryContext(ctx, query, string(status), sqlitex.FormatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("orders: list %s: %w", status, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: list %s: %w", status, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: list %s: %w", status, err)
	}

	for _, o := range orders {
		if o.Items, err = r.loadItems(ctx, q, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, q sqlitex.Querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	const query = `
		SELECT product_id, product_name, unit_price, discount, units, picture_url
		FROM   order_items
		WHERE  order_id = ?
		ORDER  BY product_id`

	rows, err := q.QueryContext(ctx, query, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("orders: load items %s: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPrice, &it.Discount, &it.Units, &it.PictureURL); err != nil {
			return nil, fmt.Errorf("orders: load items %s: %w", orderID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o         domain.Order
		id        string
		status    string
		createdAt string
	)
	err := row.Scan(
		&id,
		&o.BuyerID,
		&o.BuyerName,
		&o.Address.Street,
		&o.Address.City,
		&o.Address.State,
		&o.Address.Country,
		&o.Address.ZipCode,
		&o.PaymentMethod,
		&status,
		&o.Description,
		&o.PaymentProviderOrderID,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad order id %q: %w", id, err)
	}
	o.Status = domain.OrderStatus(status)
	if o.CreatedAt, err = sqlitex.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &o, nil
}

package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_id, buyer_name, buyer_email, buyer_whatsapp, buyer_city, purchase_purpose,
	amount, payment_status, notes, email_sent, ebook_url, created_at, verified_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.BuyerName,
		&i.BuyerEmail,
		&i.BuyerWhatsapp,
		&i.BuyerCity,
		&i.PurchasePurpose,
		&i.Amount,
		&i.PaymentStatus,
		&i.Notes,
		&i.EmailSent,
		&i.EbookUrl,
		&i.CreatedAt,
		&i.VerifiedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

const insertOrder = `-- name: InsertOrder :one
INSERT INTO orders (order_id, buyer_name, buyer_email, buyer_whatsapp, buyer_city, purchase_purpose, amount, payment_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
RETURNING ` + orderColumns

type InsertOrderParams struct {
	OrderID         string
	BuyerName       string
	BuyerEmail      string
	BuyerWhatsapp   string
	BuyerCity       string
	PurchasePurpose string
	Amount          int64
	CreatedAt       time.Time
}

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.OrderID,
		arg.BuyerName,
		arg.BuyerEmail,
		arg.BuyerWhatsapp,
		arg.BuyerCity,
		arg.PurchasePurpose,
		arg.Amount,
		arg.CreatedAt,
	)
	i, err := scanOrder(row)
	return i, translateError(err)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE order_id = $1`

func (q *Queries) GetOrder(ctx context.Context, orderID string) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, getOrder, orderID))
	return i, translateError(err)
}

const orderFilter = `
WHERE ($1::text IS NULL OR payment_status = $1)
  AND ($2::text IS NULL
       OR order_id ILIKE $2 ESCAPE '\'
       OR buyer_name ILIKE $2 ESCAPE '\'
       OR buyer_email ILIKE $2 ESCAPE '\'
       OR buyer_whatsapp ILIKE $2 ESCAPE '\'
       OR buyer_city ILIKE $2 ESCAPE '\')`

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders` + orderFilter + `
  AND ($5::bigint = 0 OR (created_at, id) < ($6::timestamptz, $5::bigint))
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`

// ListOrdersParams filters by exact status and a raw search term; empty
// values disable the corresponding predicate. A non-zero BeforeID keeps
// only rows strictly after (BeforeCreatedAt, BeforeID) in newest-first
// order.
type ListOrdersParams struct {
	Status          string
	Search          string
	Limit           int32
	Offset          int32
	BeforeCreatedAt time.Time
	BeforeID        int64
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	search := pgtype.Text{}
	if arg.Search != "" {
		search = pgtype.Text{String: LikePattern(arg.Search), Valid: true}
	}
	rows, err := q.db.Query(ctx, listOrders, nullText(arg.Status), search, arg.Limit, arg.Offset,
		arg.BeforeID, arg.BeforeCreatedAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countOrders = `-- name: CountOrders :one
SELECT COUNT(*) FROM orders` + orderFilter

type CountOrdersParams struct {
	Status string
	Search string
}

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	search := pgtype.Text{}
	if arg.Search != "" {
		search = pgtype.Text{String: LikePattern(arg.Search), Valid: true}
	}
	var count int64
	err := q.db.QueryRow(ctx, countOrders, nullText(arg.Status), search).Scan(&count)
	return count, err
}

const getOrderStats = `-- name: GetOrderStats :one
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE payment_status = 'pending'),
    COUNT(*) FILTER (WHERE payment_status = 'verified'),
    COUNT(*) FILTER (WHERE payment_status = 'failed'),
    COALESCE(SUM(amount) FILTER (WHERE payment_status = 'verified'), 0)::bigint
FROM orders`

func (q *Queries) GetOrderStats(ctx context.Context) (OrderStats, error) {
	var s OrderStats
	err := q.db.QueryRow(ctx, getOrderStats).Scan(
		&s.Total,
		&s.Pending,
		&s.Verified,
		&s.Failed,
		&s.Revenue,
	)
	return s, err
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET payment_status = $3,
    verified_at = COALESCE($4, verified_at),
    ebook_url = COALESCE($5, ebook_url),
    updated_at = $6
WHERE order_id = $1 AND payment_status = $2
RETURNING ` + orderColumns

// UpdateOrderStatusParams moves an order from FromStatus to ToStatus. The
// update only applies while the stored status still equals FromStatus.
type UpdateOrderStatusParams struct {
	OrderID    string
	FromStatus string
	ToStatus   string
	VerifiedAt pgtype.Timestamptz
	EbookUrl   pgtype.Text
	UpdatedAt  time.Time
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.OrderID,
		arg.FromStatus,
		arg.ToStatus,
		arg.VerifiedAt,
		arg.EbookUrl,
		arg.UpdatedAt,
	)
	i, err := scanOrder(row)
	return i, translateError(err)
}

const setEmailSent = `-- name: SetEmailSent :execrows
UPDATE orders SET email_sent = $2 WHERE order_id = $1`

type SetEmailSentParams struct {
	OrderID   string
	EmailSent bool
}

func (q *Queries) SetEmailSent(ctx context.Context, arg SetEmailSentParams) error {
	tag, err := q.db.Exec(ctx, setEmailSent, arg.OrderID, arg.EmailSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const appendOrderNote = `-- name: AppendOrderNote :one
UPDATE orders
SET notes = COALESCE(notes, '') || $2
WHERE order_id = $1
RETURNING ` + orderColumns

type AppendOrderNoteParams struct {
	OrderID string
	Entry   string
}

func (q *Queries) AppendOrderNote(ctx context.Context, arg AppendOrderNoteParams) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, appendOrderNote, arg.OrderID, arg.Entry))
	return i, translateError(err)
}

const deleteOrder = `-- name: DeleteOrder :execrows
DELETE FROM orders WHERE order_id = $1`

func (q *Queries) DeleteOrder(ctx context.Context, orderID string) error {
	tag, err := q.db.Exec(ctx, deleteOrder, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

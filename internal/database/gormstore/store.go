// Package gormstore implements the Order Store on MySQL (the legacy PHP
// backend's database) and SQLite through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/enum"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// orderRow is the gorm model for the orders table.
type orderRow struct {
	ID              int64      `gorm:"primaryKey;autoIncrement"`
	OrderID         string     `gorm:"size:32;uniqueIndex;not null"`
	BuyerName       string     `gorm:"size:255;not null"`
	BuyerEmail      string     `gorm:"size:255;not null"`
	BuyerWhatsapp   string     `gorm:"size:32;not null"`
	BuyerCity       string     `gorm:"size:128;not null"`
	PurchasePurpose string     `gorm:"size:255;not null;default:''"`
	Amount          int64      `gorm:"not null"`
	PaymentStatus   string     `gorm:"size:16;not null;default:pending;index"`
	Notes           *string    `gorm:"type:text"`
	EmailSent       bool       `gorm:"not null;default:false"`
	EbookURL        *string    `gorm:"column:ebook_url;type:text"`
	CreatedAt       time.Time  `gorm:"not null;index"`
	VerifiedAt      *time.Time
	UpdatedAt       *time.Time `gorm:"autoUpdateTime:false"`
}

func (orderRow) TableName() string { return "orders" }

// Open connects to MySQL or SQLite. driver is "mysql" or "sqlite".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return gdb, nil
}

// Migrate creates or updates the orders table.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&orderRow{})
}

// Store is the gorm Order Store. It satisfies the same method set as
// *database.Queries.
type Store struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return database.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return database.ErrDuplicateKey
	}
	return err
}

func (s *Store) InsertOrder(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
	row := orderRow{
		OrderID:         arg.OrderID,
		BuyerName:       arg.BuyerName,
		BuyerEmail:      arg.BuyerEmail,
		BuyerWhatsapp:   arg.BuyerWhatsapp,
		BuyerCity:       arg.BuyerCity,
		PurchasePurpose: arg.PurchasePurpose,
		Amount:          arg.Amount,
		PaymentStatus:   enum.PaymentStatusPending,
		CreatedAt:       arg.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return database.Order{}, translateError(err)
	}
	return row.toOrder(), nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (database.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return database.Order{}, translateError(err)
	}
	return row.toOrder(), nil
}

// filtered applies the status and search predicates. Search is matched
// case-insensitively on lower-cased columns so it behaves the same on
// MySQL and SQLite collations.
func (s *Store) filtered(ctx context.Context, status, search string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&orderRow{})
	if status != "" {
		q = q.Where("payment_status = ?", status)
	}
	if search != "" {
		p := database.LikePattern(strings.ToLower(search))
		esc := s.escapeClause()
		q = q.Where(
			"(LOWER(order_id) LIKE ?"+esc+
				" OR LOWER(buyer_name) LIKE ?"+esc+
				" OR LOWER(buyer_email) LIKE ?"+esc+
				" OR LOWER(buyer_whatsapp) LIKE ?"+esc+
				" OR LOWER(buyer_city) LIKE ?"+esc+")",
			p, p, p, p, p,
		)
	}
	return q
}

// escapeClause returns the ESCAPE clause for LIKE. MySQL already uses '\'
// by default and would need it doubled inside a literal.
func (s *Store) escapeClause() string {
	if s.db.Dialector.Name() == "mysql" {
		return ""
	}
	return ` ESCAPE '\'`
}

func (s *Store) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	q := s.filtered(ctx, arg.Status, arg.Search)
	if arg.BeforeID != 0 {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			arg.BeforeCreatedAt, arg.BeforeCreatedAt, arg.BeforeID)
	}
	var rows []orderRow
	err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(int(arg.Limit)).
		Offset(int(arg.Offset)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]database.Order, len(rows))
	for i, r := range rows {
		out[i] = r.toOrder()
	}
	return out, nil
}

func (s *Store) CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
	var count int64
	err := s.filtered(ctx, arg.Status, arg.Search).Count(&count).Error
	return count, err
}

func (s *Store) GetOrderStats(ctx context.Context) (database.OrderStats, error) {
	var st database.OrderStats
	row := s.db.WithContext(ctx).Model(&orderRow{}).Select(`
		COUNT(*),
		COALESCE(SUM(CASE WHEN payment_status = 'pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN payment_status = 'verified' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN payment_status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN payment_status = 'verified' THEN amount ELSE 0 END), 0)`).Row()
	if err := row.Scan(&st.Total, &st.Pending, &st.Verified, &st.Failed, &st.Revenue); err != nil {
		return database.OrderStats{}, err
	}
	return st, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	updates := map[string]any{
		"payment_status": arg.ToStatus,
		"updated_at":     arg.UpdatedAt,
	}
	if arg.VerifiedAt.Valid {
		updates["verified_at"] = arg.VerifiedAt.Time
	}
	if arg.EbookUrl.Valid {
		updates["ebook_url"] = arg.EbookUrl.String
	}

	res := s.db.WithContext(ctx).Model(&orderRow{}).
		Where("order_id = ? AND payment_status = ?", arg.OrderID, arg.FromStatus).
		Updates(updates)
	if res.Error != nil {
		return database.Order{}, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return database.Order{}, database.ErrNotFound
	}
	return s.GetOrder(ctx, arg.OrderID)
}

func (s *Store) SetEmailSent(ctx context.Context, arg database.SetEmailSentParams) error {
	res := s.db.WithContext(ctx).Model(&orderRow{}).
		Where("order_id = ?", arg.OrderID).
		Update("email_sent", arg.EmailSent)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports changed rows, so an unchanged flag also yields zero.
	var count int64
	if err := s.db.WithContext(ctx).Model(&orderRow{}).Where("order_id = ?", arg.OrderID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *Store) AppendOrderNote(ctx context.Context, arg database.AppendOrderNoteParams) (database.Order, error) {
	expr := gorm.Expr("COALESCE(notes, '') || ?", arg.Entry)
	if s.db.Dialector.Name() == "mysql" {
		expr = gorm.Expr("CONCAT(COALESCE(notes, ''), ?)", arg.Entry)
	}

	res := s.db.WithContext(ctx).Model(&orderRow{}).
		Where("order_id = ?", arg.OrderID).
		Update("notes", expr)
	if res.Error != nil {
		return database.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		return database.Order{}, database.ErrNotFound
	}
	return s.GetOrder(ctx, arg.OrderID)
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	res := s.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&orderRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r orderRow) toOrder() database.Order {
	o := database.Order{
		ID:              r.ID,
		OrderID:         r.OrderID,
		BuyerName:       r.BuyerName,
		BuyerEmail:      r.BuyerEmail,
		BuyerWhatsapp:   r.BuyerWhatsapp,
		BuyerCity:       r.BuyerCity,
		PurchasePurpose: r.PurchasePurpose,
		Amount:          r.Amount,
		PaymentStatus:   r.PaymentStatus,
		EmailSent:       r.EmailSent,
		CreatedAt:       r.CreatedAt,
	}
	if r.Notes != nil {
		o.Notes = pgtype.Text{String: *r.Notes, Valid: true}
	}
	if r.EbookURL != nil {
		o.EbookUrl = pgtype.Text{String: *r.EbookURL, Valid: true}
	}
	if r.VerifiedAt != nil {
		o.VerifiedAt = pgtype.Timestamptz{Time: *r.VerifiedAt, Valid: true}
	}
	if r.UpdatedAt != nil {
		o.UpdatedAt = pgtype.Timestamptz{Time: *r.UpdatedAt, Valid: true}
	}
	return o
}

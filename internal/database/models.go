package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Order struct {
	ID              int64              `json:"id"`
	OrderID         string             `json:"order_id"`
	BuyerName       string             `json:"buyer_name"`
	BuyerEmail      string             `json:"buyer_email"`
	BuyerWhatsapp   string             `json:"buyer_whatsapp"`
	BuyerCity       string             `json:"buyer_city"`
	PurchasePurpose string             `json:"purchase_purpose"`
	Amount          int64              `json:"amount"`
	PaymentStatus   string             `json:"payment_status"`
	Notes           pgtype.Text        `json:"notes"`
	EmailSent       bool               `json:"email_sent"`
	EbookUrl        pgtype.Text        `json:"ebook_url"`
	CreatedAt       time.Time          `json:"created_at"`
	VerifiedAt      pgtype.Timestamptz `json:"verified_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type OrderStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
	Failed   int64 `json:"failed"`
	Revenue  int64 `json:"revenue"`
}

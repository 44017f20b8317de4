// Package notify delivers buyer notifications: HTML email through SMTP and
// WhatsApp deep links for the admin to send by hand.
package notify

import (
	"context"
	"fmt"

	"github.com/m2b-ebook/api/internal/database"
)

// Options configures an EmailNotifier.
type Options struct {
	ProductName  string
	SupportEmail string
	EbookURL     string
	WhatsApp     WhatsApp
}

// EmailNotifier renders order emails and hands them to a Mailer.
type EmailNotifier struct {
	mailer Mailer
	tmpl   templates
	opts   Options
}

func NewEmailNotifier(mailer Mailer, opts Options) (*EmailNotifier, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &EmailNotifier{mailer: mailer, tmpl: tmpl, opts: opts}, nil
}

func (n *EmailNotifier) OrderConfirmation(ctx context.Context, o database.Order) error {
	return n.send(ctx, o, "confirmation",
		fmt.Sprintf("Konfirmasi Pesanan %s - %s", o.OrderID, n.opts.ProductName))
}

// EbookDelivery sends the download link. The order's stored ebook_url wins
// over the configured default.
func (n *EmailNotifier) EbookDelivery(ctx context.Context, o database.Order) error {
	return n.send(ctx, o, "delivery",
		fmt.Sprintf("E-book Anda Siap Didownload - %s", o.OrderID))
}

func (n *EmailNotifier) PaymentRejection(ctx context.Context, o database.Order) error {
	return n.send(ctx, o, "rejection",
		fmt.Sprintf("Pembayaran Belum Terverifikasi - %s", o.OrderID))
}

func (n *EmailNotifier) PaymentReminder(ctx context.Context, o database.Order) error {
	return n.send(ctx, o, "reminder",
		fmt.Sprintf("Pengingat Pembayaran - %s", o.OrderID))
}

func (n *EmailNotifier) send(ctx context.Context, o database.Order, kind, subject string) error {
	ebookURL := n.opts.EbookURL
	if o.EbookUrl.Valid && o.EbookUrl.String != "" {
		ebookURL = o.EbookUrl.String
	}

	body, err := n.tmpl.render(kind, emailData{
		BuyerName:    o.BuyerName,
		OrderID:      o.OrderID,
		ProductName:  n.opts.ProductName,
		Amount:       FormatRupiah(o.Amount),
		EbookURL:     ebookURL,
		SupportEmail: n.opts.SupportEmail,
		AdminLink:    Link(n.opts.WhatsApp.AdminNumber, "Halo M2B, saya ingin konfirmasi pembayaran untuk Order ID "+o.OrderID),
	})
	if err != nil {
		return err
	}

	return n.mailer.Send(ctx, Message{
		To:      o.BuyerEmail,
		ToName:  o.BuyerName,
		Subject: subject,
		HTML:    body,
	})
}

package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/m2b-ebook/api/internal/database"
)

// NormalizePhone strips everything but digits and forces the Indonesian
// country code: "0812-345" becomes "62812345", "812345" becomes "62812345".
func NormalizePhone(number string) string {
	var sb strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "62" + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "62") {
		cleaned = "62" + cleaned
	}
	return cleaned
}

// Link builds a wa.me deep link that opens a chat with number prefilled
// with text.
func Link(number, text string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", NormalizePhone(number), escaped)
}

// WhatsApp builds the order-flow deep links.
type WhatsApp struct {
	AdminNumber string
	ProductName string
}

// IntakeLink opens a chat from the buyer to the admin number carrying the
// order summary.
func (w WhatsApp) IntakeLink(o database.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Halo M2B, saya ingin memesan %s\n\n", w.ProductName)
	sb.WriteString("📋 *Detail Pesanan*\n")
	fmt.Fprintf(&sb, "Order ID: %s\n", o.OrderID)
	fmt.Fprintf(&sb, "Nama: %s\n", o.BuyerName)
	fmt.Fprintf(&sb, "Email: %s\n", o.BuyerEmail)
	fmt.Fprintf(&sb, "WhatsApp: %s\n", o.BuyerWhatsapp)
	fmt.Fprintf(&sb, "Kota: %s\n", o.BuyerCity)
	fmt.Fprintf(&sb, "Tujuan: %s\n\n", o.PurchasePurpose)
	fmt.Fprintf(&sb, "Total: %s\n\n", FormatRupiah(o.Amount))
	sb.WriteString("Saya akan segera melakukan pembayaran. Terima kasih! 🙏")
	return Link(w.AdminNumber, sb.String())
}

// DeliveryLink opens a chat with the buyer announcing the verified payment
// and the download link.
func (w WhatsApp) DeliveryLink(o database.Order, ebookURL string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Halo %s,\n\n", o.BuyerName)
	fmt.Fprintf(&sb, "Pembayaran untuk Order ID %s sudah kami verifikasi ✅\n\n", o.OrderID)
	fmt.Fprintf(&sb, "Silakan download %s di:\n%s\n\n", w.ProductName, ebookURL)
	sb.WriteString("Link juga sudah kami kirim ke email Anda. Terima kasih! 🙏")
	return Link(o.BuyerWhatsapp, sb.String())
}

// RejectionLink opens a chat with the buyer about a payment that could not
// be verified.
func (w WhatsApp) RejectionLink(o database.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Halo %s,\n\n", o.BuyerName)
	fmt.Fprintf(&sb, "Mohon maaf, pembayaran untuk Order ID %s belum dapat kami verifikasi.\n\n", o.OrderID)
	sb.WriteString("Jika Anda sudah transfer, silakan kirim bukti transfer ke chat ini. Terima kasih 🙏")
	return Link(o.BuyerWhatsapp, sb.String())
}

// ReminderLink opens a chat with the buyer asking to complete payment.
func (w WhatsApp) ReminderLink(o database.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Halo %s,\n\n", o.BuyerName)
	fmt.Fprintf(&sb, "Terima kasih telah memesan %s.\n\n", w.ProductName)
	fmt.Fprintf(&sb, "Order ID: %s\nTotal: %s\n\n", o.OrderID, FormatRupiah(o.Amount))
	sb.WriteString("Kirim bukti transfer ke chat ini ya.\nTerima kasih! 🙏")
	return Link(o.BuyerWhatsapp, sb.String())
}

// Package export renders orders as the spreadsheet-friendly CSV operators
// download from the dashboard.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/enum"
)

// BOM makes Excel open the file as UTF-8.
const BOM = "\ufeff"

var Header = []string{"Order ID", "Date", "Name", "Email", "WhatsApp", "City", "Purpose", "Status", "Amount"}

// Writer emits CSV with every field double-quoted and embedded quotes
// doubled. encoding/csv only quotes fields that need it.
type Writer struct {
	w   *bufio.Writer
	loc *time.Location
}

// NewWriter writes the BOM and header row. Dates are rendered in loc.
func NewWriter(w io.Writer, loc *time.Location) (*Writer, error) {
	if loc == nil {
		loc = time.UTC
	}
	cw := &Writer{w: bufio.NewWriter(w), loc: loc}
	if _, err := cw.w.WriteString(BOM); err != nil {
		return nil, err
	}
	if err := cw.writeRecord(Header); err != nil {
		return nil, err
	}
	return cw, nil
}

// Write appends one order row.
func (cw *Writer) Write(o database.Order) error {
	return cw.writeRecord(Row(o, cw.loc))
}

// Flush writes buffered rows to the underlying writer.
func (cw *Writer) Flush() error {
	return cw.w.Flush()
}

func (cw *Writer) writeRecord(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := cw.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := cw.w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := cw.w.WriteString("\n")
	return err
}

// Row returns the export columns for o.
func Row(o database.Order, loc *time.Location) []string {
	return []string{
		o.OrderID,
		o.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		o.BuyerName,
		o.BuyerEmail,
		o.BuyerWhatsapp,
		o.BuyerCity,
		o.PurchasePurpose,
		enum.StatusLabel(o.PaymentStatus),
		strconv.FormatInt(o.Amount, 10),
	}
}

package notify

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupiah renders an amount the way id-ID locales do: "Rp 49.000".
func FormatRupiah(amount int64) string {
	d := decimal.NewFromInt(amount)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	digits := d.StringFixed(0)

	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(digits[i : i+3])
	}
	return "Rp " + sign + sb.String()
}

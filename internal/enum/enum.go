package enum

// ── Payment status (CHECK constrained in DB) ──

const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusFailed   = "failed"
)

// StatusAll disables the status filter on list queries.
const StatusAll = "all"

// legacyStatuses maps the labels used by the browser-only admin panel
// onto the server enumeration.
var legacyStatuses = map[string]string{
	"paid":      PaymentStatusVerified,
	"delivered": PaymentStatusVerified,
	"cancelled": PaymentStatusFailed,
}

// IsValidPaymentStatus reports whether s is one of the stored statuses.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusVerified, PaymentStatusFailed:
		return true
	}
	return false
}

// NormalizeStatus maps a status filter value to the stored enumeration.
// Empty and "all" yield "" (no filter). Unknown values are returned as-is
// so callers can reject them.
func NormalizeStatus(s string) string {
	if s == "" || s == StatusAll {
		return ""
	}
	if mapped, ok := legacyStatuses[s]; ok {
		return mapped
	}
	return s
}

// IsTerminal reports whether no further status transition is allowed.
func IsTerminal(s string) bool {
	return s == PaymentStatusVerified || s == PaymentStatusFailed
}

// IsRevenueStatus reports whether orders in status s count toward revenue.
func IsRevenueStatus(s string) bool {
	return s == PaymentStatusVerified
}

// StatusLabel returns the operator-facing label used in exports.
func StatusLabel(s string) string {
	switch s {
	case PaymentStatusPending:
		return "Menunggu Bayar"
	case PaymentStatusVerified:
		return "Terverifikasi"
	case PaymentStatusFailed:
		return "Ditolak"
	}
	return s
}

// ── Purchase purpose (configurable labels, no DB constraint) ──

const (
	PurposeBisnis      = "bisnis"
	PurposeUMKM        = "umkm"
	PurposeBelajar     = "belajar"
	PurposeProfesional = "profesional"
	PurposeLainnya     = "lainnya"
)

// PurposeNotSelected is stored when the buyer leaves the purpose empty.
const PurposeNotSelected = "Tidak dipilih"

var purposeLabels = map[string]string{
	PurposeBisnis:      "Memulai Bisnis Ekspor/Impor",
	PurposeUMKM:        "Scale Up UMKM ke Pasar Global",
	PurposeBelajar:     "Belajar / Riset",
	PurposeProfesional: "Pengembangan Karir Profesional",
	PurposeLainnya:     "Lainnya",
}

// PurposeLabel maps a purpose key to its label. Unknown keys pass through.
func PurposeLabel(key string) string {
	if key == "" {
		return PurposeNotSelected
	}
	if label, ok := purposeLabels[key]; ok {
		return label
	}
	return key
}

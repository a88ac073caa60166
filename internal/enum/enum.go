package enum

import "strings"

// Order statuses, order types and table statuses are Postgres enums and live
// in the database package as typed strings. The values below are plain
// strings: roles are CHECK constrained, payment methods are free labels.

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleAdmin   = "admin"
	RoleCashier = "caixa"
	RoleWaiter  = "garcon"
	RoleCourier = "entregador"
	RoleKitchen = "cozinha"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash    = "dinheiro"
	PaymentMethodPix     = "pix"
	PaymentMethodCredit  = "credito"
	PaymentMethodDebit   = "debito"
	PaymentMethodCard    = "cartao"
	PaymentMethodVoucher = "vale"
)

// Roles lists every staff role in display order.
var Roles = []string{RoleAdmin, RoleCashier, RoleWaiter, RoleCourier, RoleKitchen}

// IsValidRole reports whether s is one of the staff roles.
func IsValidRole(s string) bool {
	for _, r := range Roles {
		if r == s {
			return true
		}
	}
	return false
}

// NormalizePaymentMethod lower-cases m and reports whether it is a known method.
func NormalizePaymentMethod(m string) (string, bool) {
	m = strings.ToLower(strings.TrimSpace(m))
	switch m {
	case PaymentMethodCash, PaymentMethodPix, PaymentMethodCredit,
		PaymentMethodDebit, PaymentMethodCard, PaymentMethodVoucher:
		return m, true
	}
	return "", false
}

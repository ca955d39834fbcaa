package crm

import "strings"

// Payment types accepted by the CRM purchases API
const (
	PaymentTypeCredit      = "credit"
	PaymentTypeDebit       = "debit"
	PaymentTypeOther       = "other"
	PaymentTypeMercadoPago = "mercadopago"
	PaymentTypeTodoPago    = "todopago"
	PaymentTypeCash        = "cash"
)

// Payment service names as they arrive from the source platform
const (
	PaymentServiceMercadoPago = "mercadopago"
	PaymentServiceTodoPago    = "todopago"
	PaymentServiceVTEX        = "vtex"
	PaymentServiceCash        = "Pago contra entrega"
	PaymentServiceCommerce    = "Pago en Punto de Venta"
	PaymentServiceCoupon      = "Vale"
)

// Card brand names reported on payments
const (
	CardBrandMastercard = "mastercard"
	CardBrandVisa       = "visa"
	CardBrandCabal      = "cabal"
)

// PaymentTypeSolver maps source payment groups to CRM payment types.
// EmptyDefault is what an absent group resolves to: accounts that want the
// CRM-side default leave it empty, others force "other".
type PaymentTypeSolver struct {
	EmptyDefault string
}

// Solve resolves a source payment group to a CRM payment type.
func (s PaymentTypeSolver) Solve(group string) string {
	if group == "" {
		return s.EmptyDefault
	}

	switch strings.ToLower(group) {
	case "creditcard", "credit", "credit_card":
		return PaymentTypeCredit
	case "debitcard", "debit", "debit_card":
		return PaymentTypeDebit
	case "todopago":
		return PaymentTypeTodoPago
	case "mercadopago":
		return PaymentTypeMercadoPago
	case "promissory", "cash":
		return PaymentTypeCash
	default:
		return PaymentTypeOther
	}
}

// CardTrackedService reports whether payments from this service carry card
// data (first digits) worth forwarding. Wallet and over-the-counter services
// do not.
func CardTrackedService(service string) bool {
	switch service {
	case PaymentServiceMercadoPago, PaymentServiceTodoPago,
		PaymentServiceCash, PaymentServiceCommerce, PaymentServiceCoupon:
		return false
	default:
		return true
	}
}

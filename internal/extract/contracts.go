package extract

import (
	"github.com/shopspring/decimal"
)

// Header is the set of invoice-level fields found in recognized text.
// Missing fields stay empty or zero; absence is not an error here.
type Header struct {
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"` // YYYY-MM-DD or ""
	ProviderName  string          `json:"provider_name"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"` // only set by the primary recognizer or the user
	Total         decimal.Decimal `json:"total"`
}

// LineItem is a candidate purchased item. TotalPrice is derived, never read from text.
type LineItem struct {
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Recompute sets TotalPrice to Quantity * UnitPrice.
func (li *LineItem) Recompute() {
	li.TotalPrice = li.Quantity.Mul(li.UnitPrice)
}

// Result is everything the text-based extraction produced.
type Result struct {
	Header Header     `json:"header"`
	Items  []LineItem `json:"items"`
}

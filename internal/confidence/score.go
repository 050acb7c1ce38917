package confidence

import (
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
)

const (
	itemWeight     = 0.1
	maxItemsWeight = 1.0
	maxFieldScore  = 5.0
)

// FieldScore rates how much of an invoice the text-based extraction found.
// Number, date and total weigh 1 each, provider and subtotal 0.5, and each
// item 0.1 up to 1. The sum is divided by 5.
func FieldScore(res extract.Result) float64 {
	var s float64
	h := res.Header
	if h.InvoiceNumber != "" {
		s++
	}
	if h.InvoiceDate != "" {
		s++
	}
	if h.Total.IsPositive() {
		s++
	}
	if h.ProviderName != "" {
		s += 0.5
	}
	if h.Subtotal.IsPositive() {
		s += 0.5
	}
	s += min(float64(len(res.Items))*itemWeight, maxItemsWeight)
	return min(s/maxFieldScore, 1)
}

package confidence

import (
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-intake/internal/extract"
)

var _ = Describe("Classify", func() {
	DescribeTable("thresholds are exclusive",
		func(c float64, expected Band) {
			Expect(Classify(c)).To(Equal(expected))
		},
		Entry("one", 1.0, High),
		Entry("just above 0.8", 0.81, High),
		Entry("exactly 0.8", 0.8, Medium),
		Entry("just above 0.6", 0.61, Medium),
		Entry("exactly 0.6", 0.6, Low),
		Entry("zero", 0.0, Low),
	)

	It("nudges a rescan only for low confidence", func() {
		Expect(Low.SuggestRescan()).To(BeTrue())
		Expect(Medium.SuggestRescan()).To(BeFalse())
	})
})

var _ = Describe("FieldScore", func() {
	It("is zero for an empty extraction", func() {
		Expect(FieldScore(extract.Result{})).To(BeZero())
	})

	It("reaches one when every field and ten items are present", func() {
		res := extract.Result{
			Header: extract.Header{
				InvoiceNumber: "A-1",
				InvoiceDate:   "2024-01-01",
				ProviderName:  "Distribuidora",
				Subtotal:      decimal.NewFromInt(10),
				Total:         decimal.NewFromInt(12),
			},
			Items: make([]extract.LineItem, 12),
		}
		Expect(FieldScore(res)).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("weighs items at a tenth each", func() {
		res := extract.Result{
			Header: extract.Header{InvoiceNumber: "A-1", Total: decimal.NewFromInt(5)},
			Items:  make([]extract.LineItem, 3),
		}
		Expect(FieldScore(res)).To(BeNumerically("~", 2.3/5, 1e-9))
	})
})

package extract

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Extractor.ExtractItems", func() {
	var (
		extractor *Extractor
		lines     []string
		items     []LineItem
	)

	BeforeEach(func() {
		extractor = NewExtractor(nil)
	})

	JustBeforeEach(func() {
		items = extractor.ExtractItems(lines)
	})

	When("lines carry name, quantity and a $ price", func() {
		BeforeEach(func() {
			lines = []string{
				"Leche Entera 1L 12 $45.50",
				"Subtotal $45.00",
				"Queso Cremoso 2,5 kg $1200",
				"Item sin precio 3 unidades",
			}
		})

		It("keeps only the matching lines in order", func() {
			Expect(items).To(HaveLen(2))
			Expect(items[0].ProductName).To(Equal("Leche Entera 1L"))
			Expect(items[1].ProductName).To(Equal("Queso Cremoso"))
		})

		It("parses quantities and prices with either separator", func() {
			Expect(items[0].Quantity.Equal(dec("12"))).To(BeTrue())
			Expect(items[0].UnitPrice.Equal(dec("45.5"))).To(BeTrue())
			Expect(items[1].Quantity.Equal(dec("2.5"))).To(BeTrue())
			Expect(items[1].UnitPrice.Equal(dec("1200"))).To(BeTrue())
		})

		It("derives the total from quantity and price", func() {
			Expect(items[0].TotalPrice.Equal(dec("546"))).To(BeTrue())
			Expect(items[1].TotalPrice.Equal(dec("3000"))).To(BeTrue())
		})
	})

	When("quantity or price is zero", func() {
		BeforeEach(func() {
			lines = []string{
				"Producto gratis 0 $10",
				"Agua mineral 6 $0",
			}
		})

		It("drops the lines", func() {
			Expect(items).To(BeEmpty())
		})
	})

	When("more than twenty lines match", func() {
		BeforeEach(func() {
			lines = nil
			for i := 1; i <= 25; i++ {
				lines = append(lines, fmt.Sprintf("Producto %02d 5 $10", i))
			}
		})

		It("caps the result at twenty items", func() {
			Expect(items).To(HaveLen(MaxItems))
			Expect(items[0].ProductName).To(Equal("Producto 01"))
			Expect(items[19].ProductName).To(Equal("Producto 20"))
		})

		It("never yields non-positive quantities or prices", func() {
			for _, it := range items {
				Expect(it.Quantity.IsPositive()).To(BeTrue())
				Expect(it.UnitPrice.IsPositive()).To(BeTrue())
			}
		})
	})
})

var _ = Describe("LineItem.Recompute", func() {
	It("is idempotent", func() {
		item := LineItem{Quantity: dec("3"), UnitPrice: dec("2.25"), TotalPrice: dec("99")}
		item.Recompute()
		first := item.TotalPrice
		item.Recompute()
		Expect(item.TotalPrice.Equal(first)).To(BeTrue())
		Expect(first.Equal(dec("6.75"))).To(BeTrue())
	})
})

var _ = Describe("Extractor.Extract", func() {
	It("combines header and items from the same text", func() {
		text := "Distribuidora Norte SA\nFactura N° B-77\n10/04/2024\nHarina 0000 x 25kg 4 $3,20\n"
		res := NewExtractor(nil).Extract(text)
		Expect(res.Header.InvoiceNumber).To(Equal("B-77"))
		Expect(res.Header.ProviderName).To(Equal("Distribuidora Norte SA"))
		Expect(res.Items).To(HaveLen(1))
		Expect(res.Items[0].ProductName).To(Equal("Harina 0000 x 25kg"))
		Expect(res.Items[0].TotalPrice.Equal(dec("12.8"))).To(BeTrue())
	})
})

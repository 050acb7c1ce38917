package recognition

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SanitizePrimaryJSON", func() {
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	sanitize := func(in string) (map[string]any, []string) {
		out, dropped, err := SanitizePrimaryJSON([]byte(in), today, nil)
		Expect(err).NotTo(HaveOccurred())
		var m map[string]any
		Expect(json.Unmarshal(out, &m)).To(Succeed())
		return m, dropped
	}

	It("renames synonyms, coerces amounts and drops unknown keys", func() {
		m, dropped := sanitize(`{
			"success": true,
			"number": " A-1 ",
			"date": "15/03/24",
			"supplier": "Distribuidora Norte",
			"total": 1250.5,
			"subtotal": "1.000,00",
			"tax": null,
			"confidence": 87,
			"suggestions": [],
			"items": [{"name": " Leche ", "qty": 2, "price": "$ 45,50", "sku": "x"}]
		}`)

		Expect(m).To(HaveKeyWithValue("invoice_number", "A-1"))
		Expect(m).To(HaveKeyWithValue("invoice_date", "2024-03-15"))
		Expect(m).To(HaveKeyWithValue("provider_name", "Distribuidora Norte"))
		Expect(m).To(HaveKeyWithValue("total", "1250.5"))
		Expect(m).To(HaveKeyWithValue("subtotal", "1000.00"))
		Expect(m).NotTo(HaveKey("tax"))
		Expect(m).NotTo(HaveKey("suggestions"))
		Expect(m["confidence"]).To(BeNumerically("~", 0.87, 1e-9))

		items := m["items"].([]any)
		Expect(items).To(HaveLen(1))
		Expect(items[0]).To(Equal(map[string]any{
			"product_name": "Leche",
			"quantity":     "2",
			"unit_price":   "45.50",
		}))

		Expect(dropped).To(ContainElements("suggestions(unknown)", "tax(null)", "items[0].sku(unknown)", "number->invoice_number"))
	})

	It("keeps ISO dates and fractional confidences untouched", func() {
		m, dropped := sanitize(`{"success": true, "invoice_date": "2024-01-02", "confidence": 0.5}`)
		Expect(m).To(HaveKeyWithValue("invoice_date", "2024-01-02"))
		Expect(m).To(HaveKeyWithValue("confidence", 0.5))
		Expect(dropped).To(BeEmpty())
	})

	It("drops empty header strings", func() {
		m, dropped := sanitize(`{"success": true, "invoice_number": "  ", "provider_name": ""}`)
		Expect(m).NotTo(HaveKey("invoice_number"))
		Expect(m).NotTo(HaveKey("provider_name"))
		Expect(dropped).To(ContainElements("invoice_number(empty)", "provider_name(empty)"))
	})

	It("drops items that cannot become line items and keeps the rest", func() {
		m, dropped := sanitize(`{"success": true, "items": [
			{"product_name": "Leche Entera", "quantity": 2, "unit_price": "1,50", "total_price": "n/a"},
			{"product_name": "Pan", "quantity": null, "unit_price": 3},
			{"product_name": "  ", "quantity": 1, "unit_price": 3},
			{"product_name": "Yerba", "quantity": "uno", "unit_price": 3}
		]}`)

		items := m["items"].([]any)
		Expect(items).To(ConsistOf(map[string]any{
			"product_name": "Leche Entera",
			"quantity":     "2",
			"unit_price":   "1.50",
		}))
		Expect(dropped).To(ContainElements("items[1](quantity)", "items[2](product_name)", "items[3](quantity)"))
	})

	It("fails on malformed JSON", func() {
		_, _, err := SanitizePrimaryJSON([]byte(`{"success":`), today, nil)
		Expect(err).To(HaveOccurred())
	})
})

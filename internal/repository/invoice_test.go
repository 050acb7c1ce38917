package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var _ = Describe("InvoiceRepository", func() {
	var (
		ctx      context.Context
		db       *DB
		catalog  CatalogRepository
		invoices InvoiceRepository
		leche    *entity.Product
		request  *CommitInvoiceRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = openTestDB()
		catalog = NewCatalogRepository(db, nil)
		invoices = NewInvoiceRepository(db, nil)

		var err error
		leche, err = catalog.CreateProduct(ctx, &CreateProductRequest{Name: "Leche Entera"})
		Expect(err).NotTo(HaveOccurred())

		request = &CommitInvoiceRequest{
			InvoiceNumber:   "A-123",
			InvoiceDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			ProviderName:    "Distribuidora Norte",
			Subtotal:        dec("546"),
			Tax:             dec("0"),
			Total:           dec("621"),
			OCRText:         "FACTURA A-123",
			OCRConfidence:   0.72,
			RecognitionPath: constants.PathSecondary,
			Items: []CommitItem{
				{ProductID: leche.ID, ProductName: "Leche Entera 1L", Quantity: dec("12"), UnitPrice: dec("45.50")},
				{ProductName: "Harina 000", Quantity: dec("3"), UnitPrice: dec("25"), CreateNew: true},
			},
		}
	})

	stockOf := func(name string) decimal.Decimal {
		products, err := catalog.ListProducts(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, p := range products {
			if p.Name == name {
				return p.CurrentStock
			}
		}
		Fail("product not found: " + name)
		return decimal.Zero
	}

	Describe("CommitInvoice", func() {
		It("writes the invoice, items, movements and discrepancies", func() {
			inv, err := invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Status).To(Equal(constants.InvoiceStatusProcessed))
			Expect(inv.Items).To(HaveLen(2))
			Expect(inv.Items[0].TotalPrice.Equal(dec("546"))).To(BeTrue())
			Expect(inv.Items[0].StockUpdated).To(BeTrue())
			Expect(inv.Items[1].CreatedNew).To(BeTrue())
			Expect(inv.Items[1].ProductID).NotTo(Equal(uuid.Nil))

			Expect(count(db, "invoices")).To(Equal(1))
			Expect(count(db, "invoice_items")).To(Equal(2))
			Expect(count(db, "stock_movements")).To(Equal(2))
			Expect(count(db, "discrepancies")).To(Equal(1))
			Expect(count(db, "providers")).To(Equal(1))

			Expect(stockOf("Leche Entera").Equal(dec("12"))).To(BeTrue())
			Expect(stockOf("Harina 000").Equal(dec("3"))).To(BeTrue())
		})

		It("reuses a provider with the same name in any case", func() {
			p, err := catalog.CreateProvider(ctx, "DISTRIBUIDORA NORTE")
			Expect(err).NotTo(HaveOccurred())

			inv, err := invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.ProviderID).To(Equal(p.ID))
			Expect(count(db, "providers")).To(Equal(1))
		})

		It("stores the bound provider's name, not the extracted text", func() {
			p, err := catalog.CreateProvider(ctx, "Distribuidora Norte S.R.L.")
			Expect(err).NotTo(HaveOccurred())
			request.ProviderID = &p.ID
			request.ProviderName = "Distrib. Norte"

			inv, err := invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.ProviderID).To(Equal(p.ID))
			Expect(inv.ProviderName).To(Equal("Distribuidora Norte S.R.L."))

			list, err := invoices.ListInvoices(ctx, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].ProviderName).To(Equal(inv.ProviderName))
			Expect(count(db, "providers")).To(Equal(1))
		})

		It("rejects an unknown provider id", func() {
			id := uuid.New()
			request.ProviderID = &id
			_, err := invoices.CommitInvoice(ctx, request)
			Expect(err).To(MatchError(common.ErrNotFound))
			Expect(count(db, "invoices")).To(BeZero())
		})

		It("accumulates stock across invoices", func() {
			_, err := invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())
			request.InvoiceNumber = "A-124"
			request.Items = request.Items[:1]
			_, err = invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())
			Expect(stockOf("Leche Entera").Equal(dec("24"))).To(BeTrue())
		})

		It("rolls everything back when a step fails", func() {
			_, err := invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())

			// same provider and number
			_, err = invoices.CommitInvoice(ctx, request)
			Expect(err).To(HaveOccurred())

			Expect(count(db, "invoices")).To(Equal(1))
			Expect(count(db, "stock_movements")).To(Equal(2))
			Expect(stockOf("Leche Entera").Equal(dec("12"))).To(BeTrue())
		})

		It("fails for a product that does not exist", func() {
			request.Items[0].ProductID = uuid.New()
			_, err := invoices.CommitInvoice(ctx, request)
			Expect(err).To(HaveOccurred())
			Expect(count(db, "invoices")).To(BeZero())
			Expect(count(db, "providers")).To(BeZero())
		})

		DescribeTable("validates the request",
			func(mutate func(*CommitInvoiceRequest)) {
				mutate(request)
				_, err := invoices.CommitInvoice(ctx, request)
				Expect(err).To(MatchError(common.ErrValidation))
				Expect(count(db, "invoices")).To(BeZero())
			},
			Entry("no items", func(r *CommitInvoiceRequest) { r.Items = nil }),
			Entry("no number", func(r *CommitInvoiceRequest) { r.InvoiceNumber = "" }),
			Entry("no date", func(r *CommitInvoiceRequest) { r.InvoiceDate = time.Time{} }),
			Entry("no provider", func(r *CommitInvoiceRequest) { r.ProviderName = "" }),
			Entry("unbound item", func(r *CommitInvoiceRequest) { r.Items[0].ProductID = uuid.Nil }),
			Entry("zero quantity", func(r *CommitInvoiceRequest) { r.Items[0].Quantity = decimal.Zero }),
		)
	})

	Describe("ListInvoices", func() {
		BeforeEach(func() {
			_, err := invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())

			request.InvoiceNumber = "B-7"
			request.InvoiceDate = time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
			request.Items = request.Items[:1]
			_, err = invoices.CommitInvoice(ctx, request)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists every invoice with its items in order", func() {
			list, err := invoices.ListInvoices(ctx, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].InvoiceNumber).To(Equal("A-123"))
			Expect(list[0].ProviderName).To(Equal("Distribuidora Norte"))
			Expect(list[0].OCRText).To(Equal("FACTURA A-123"))
			Expect(list[0].RecognitionPath).To(Equal(constants.PathSecondary))
			Expect(list[0].Items).To(HaveLen(2))
			Expect(list[0].Items[0].ProductName).To(Equal("Leche Entera 1L"))
			Expect(list[0].Items[1].ProductName).To(Equal("Harina 000"))
			Expect(list[1].Items).To(HaveLen(1))
		})

		It("filters by invoice date", func() {
			from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
			list, err := invoices.ListInvoices(ctx, &from, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].InvoiceNumber).To(Equal("B-7"))

			to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
			list, err = invoices.ListInvoices(ctx, nil, &to)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].InvoiceNumber).To(Equal("A-123"))

			list, err = invoices.ListInvoices(ctx, &from, &to)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})
	})
})

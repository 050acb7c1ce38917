package invoice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/export"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/matching"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
	"github.com/joseph-ayodele/invoice-intake/internal/reconcile"
	"github.com/joseph-ayodele/invoice-intake/internal/repository"
)

var _ = Describe("Service backed by the SQL repositories", func() {
	var (
		ctx      context.Context
		catalog  repository.CatalogRepository
		invoices repository.InvoiceRepository
		sur      *entity.Provider
		harina   *entity.Product
		svc      *Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := repository.Open(ctx, repository.Config{
			Driver: repository.DriverSQLite,
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()),
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { repository.Close(db, slog.Default()) })
		Expect(repository.Migrate(ctx, db, nil)).To(Succeed())

		catalog = repository.NewCatalogRepository(db, nil)
		invoices = repository.NewInvoiceRepository(db, nil)

		sur, err = catalog.CreateProvider(ctx, "Distribuidora Sur S.A.")
		Expect(err).NotTo(HaveOccurred())
		harina, err = catalog.CreateProduct(ctx, &repository.CreateProductRequest{Name: "Harina de trigo"})
		Expect(err).NotTo(HaveOccurred())
		for _, name := range []string{"Aceite de girasol", "Aceite de oliva"} {
			_, err = catalog.CreateProduct(ctx, &repository.CreateProductRequest{Name: name})
			Expect(err).NotTo(HaveOccurred())
		}

		header := extract.Header{
			InvoiceNumber: "F-2001",
			InvoiceDate:   "2024-04-10",
			ProviderName:  "Distribuidora Sur",
			Subtotal:      dec("40"),
			Tax:           dec("8.4"),
			Total:         dec("48.4"),
		}
		rec := &fakeRecognizer{run: func(context.Context, recognition.Document) (recognition.Result, recognition.Outcome, error) {
			return result(header,
				line("Harina de trigo 000", "2", "10"),
				line("Aceite de maiz", "1", "20"),
			), recognition.OutcomePrimary, nil
		}}
		svc = NewService(rec, catalog, invoices, nil, WithMatcher(matching.NewMatcher(nil)))
	})

	It("commits a reviewed invoice, moves stock and exports it", func() {
		v, err := svc.Start(ctx, doc("f.png"))
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Items[0].Binding).NotTo(BeNil())
		Expect(v.Items[0].Binding.ProductID).To(Equal(harina.ID))

		v, err = svc.Resolve(ctx, 1, ResolveRequest{CreateNew: true, Unit: "litro", Category: "almacen"})
		Expect(err).NotTo(HaveOccurred())
		created := v.Items[1].Binding.ProductID
		Expect(created).NotTo(Equal(uuid.Nil))

		res, err := svc.Commit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.View.State).To(Equal(reconcile.StateCommitted))
		Expect(res.Invoice.ProviderID).To(Equal(sur.ID))
		Expect(res.Invoice.ProviderName).To(Equal("Distribuidora Sur S.A."))

		products, err := catalog.ListProducts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(products).To(HaveLen(4))
		stock := map[string]float64{}
		for _, p := range products {
			stock[p.Name] = p.CurrentStock.InexactFloat64()
		}
		Expect(stock).To(Equal(map[string]float64{
			"Harina de trigo":   2,
			"Aceite de maiz":    1,
			"Aceite de girasol": 0,
			"Aceite de oliva":   0,
		}))

		providers, err := catalog.ListProviders(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(HaveLen(1))

		data, err := export.NewService(invoices, nil).ExportInvoicesXLSX(ctx, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = f.Close() }()

		facturas, err := f.GetRows("Facturas")
		Expect(err).NotTo(HaveOccurred())
		Expect(facturas).To(HaveLen(2))
		Expect(facturas[1][:3]).To(Equal([]string{"2024-04-10", "F-2001", "Distribuidora Sur S.A."}))

		items, err := f.GetRows("Items")
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(3))
		Expect(items[1][3:7]).To(Equal([]string{"Harina de trigo 000", "2", "10", "20"}))
		Expect(items[2][3]).To(Equal("Aceite de maiz"))
		Expect(items[2][7]).To(Equal("sí"))
	})
})

package reconcile

import (
	"errors"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/confidence"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/matching"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

var _ = Describe("Session", func() {
	var (
		leche, quesoCremoso, quesoRallado entity.Product
		catalog                           []entity.Product
		providers                         []entity.Provider
		result                            recognition.Result
		session                           *Session
	)

	BeforeEach(func() {
		leche = entity.Product{ID: uuid.New(), Name: "Leche Entera"}
		quesoCremoso = entity.Product{ID: uuid.New(), Name: "Queso Cremoso"}
		quesoRallado = entity.Product{ID: uuid.New(), Name: "Queso Rallado"}
		catalog = []entity.Product{leche, quesoCremoso, quesoRallado}
		providers = []entity.Provider{
			{ID: uuid.New(), Name: "Lácteos del Sur"},
			{ID: uuid.New(), Name: "Distribuidora Norte SA"},
		}

		result = recognition.Result{
			Extraction: extract.Result{
				Header: extract.Header{
					InvoiceNumber: "A-123",
					InvoiceDate:   "2024-03-15",
					ProviderName:  "Distribuidora Norte",
					Subtotal:      dec("45"),
					Total:         dec("50"),
				},
				Items: []extract.LineItem{
					{ProductName: "Leche Entera 1L", Quantity: dec("12"), UnitPrice: dec("45.50")},
					{ProductName: "Queso", Quantity: dec("2"), UnitPrice: dec("100")},
					{ProductName: "Harina 000", Quantity: dec("1"), UnitPrice: dec("10")},
				},
			},
			RawText:    "FACTURA A-123",
			Confidence: 0.7,
			Path:       constants.PathSecondary,
		}
	})

	JustBeforeEach(func() {
		session = New(result, catalog, matching.NewMatcher(nil))
	})

	Describe("New", func() {
		It("starts extracted with totals derived and sole candidates bound", func() {
			Expect(session.State()).To(Equal(StateExtracted))
			snap := session.Snapshot()
			Expect(snap.Items).To(HaveLen(3))

			Expect(snap.Items[0].TotalPrice.Equal(dec("546"))).To(BeTrue())
			Expect(snap.Items[0].Decision).To(Equal(matching.DecisionAutoBind))
			Expect(snap.Items[0].Binding).To(Equal(&Binding{ProductID: leche.ID, Source: SourceAuto}))

			Expect(snap.Items[1].Decision).To(Equal(matching.DecisionAmbiguous))
			Expect(snap.Items[1].Candidates).To(HaveLen(2))
			Expect(snap.Items[1].Binding).To(BeNil())

			Expect(snap.Items[2].Decision).To(Equal(matching.DecisionNoCandidate))
			Expect(snap.Items[2].Binding).To(BeNil())
		})

		It("classifies the confidence", func() {
			snap := session.Snapshot()
			Expect(snap.Band).To(Equal(confidence.Medium))
			Expect(snap.Path).To(Equal(constants.PathSecondary))
		})
	})

	Describe("RequestCommit", func() {
		When("items are unresolved", func() {
			It("moves to resolving matches and lists exactly those items", func() {
				err := session.RequestCommit(providers)
				Expect(err).To(MatchError(common.ErrMatchingAmbiguity))
				Expect(session.State()).To(Equal(StateResolvingMatches))
				Expect(session.Unresolved()).To(Equal([]int{1, 2}))
			})

			It("blocks committing until every item is bound", func() {
				Expect(session.RequestCommit(providers)).To(MatchError(common.ErrMatchingAmbiguity))
				_, err := session.BeginCommit()
				Expect(err).To(MatchError(common.ErrInvalidState))

				Expect(session.Resolve(1, Binding{ProductID: quesoCremoso.ID})).To(Succeed())
				Expect(session.State()).To(Equal(StateResolvingMatches))
				Expect(session.Unresolved()).To(Equal([]int{2}))

				Expect(session.Resolve(2, Binding{CreateNew: true})).To(Succeed())
				Expect(session.State()).To(Equal(StateReady))
				Expect(session.Unresolved()).To(BeEmpty())

				inv, err := session.BeginCommit()
				Expect(err).NotTo(HaveOccurred())
				Expect(session.State()).To(Equal(StateCommitting))
				Expect(inv.Items).To(HaveLen(3))
				Expect(inv.Items[0].ProductID).To(Equal(leche.ID))
				Expect(inv.Items[1].ProductID).To(Equal(quesoCremoso.ID))
				Expect(inv.Items[2].CreateNew).To(BeTrue())
				Expect(inv.Provider.Outcome).To(Equal(matching.ProviderMatched))
				Expect(inv.Provider.Provider.ID).To(Equal(providers[1].ID))
			})

			It("leaves earlier bindings untouched while resolving", func() {
				Expect(session.RequestCommit(providers)).To(HaveOccurred())
				before := session.Snapshot().Items[0]

				Expect(session.Resolve(1, Binding{ProductID: quesoRallado.ID})).To(Succeed())
				Expect(session.Snapshot().Items[0]).To(Equal(before))
			})

			It("refuses to rebind an item that is not awaiting resolution", func() {
				Expect(session.RequestCommit(providers)).To(HaveOccurred())
				err := session.Resolve(0, Binding{ProductID: quesoRallado.ID})
				Expect(err).To(MatchError(common.ErrInvalidState))
				Expect(session.Snapshot().Items[0].Binding.ProductID).To(Equal(leche.ID))
			})

			It("rejects an empty binding", func() {
				Expect(session.RequestCommit(providers)).To(HaveOccurred())
				Expect(session.Resolve(1, Binding{})).To(MatchError(common.ErrInvalidInput))
				Expect(session.Unresolved()).To(Equal([]int{1, 2}))
			})
		})

		DescribeTable("rejects invalid data and returns to reviewing",
			func(mutate func(*recognition.Result)) {
				mutate(&result)
				session = New(result, catalog, nil)
				before := session.Snapshot().Items

				err := session.RequestCommit(providers)
				Expect(err).To(MatchError(common.ErrValidation))
				Expect(common.ErrorCode(err)).To(Equal(common.CodeValidation))
				Expect(session.State()).To(Equal(StateReviewing))
				Expect(session.Snapshot().Items).To(Equal(before))
				Expect(session.LastError()).To(Equal(err))
			},
			Entry("missing invoice number", func(r *recognition.Result) { r.Extraction.Header.InvoiceNumber = "" }),
			Entry("missing invoice date", func(r *recognition.Result) { r.Extraction.Header.InvoiceDate = "" }),
			Entry("malformed invoice date", func(r *recognition.Result) { r.Extraction.Header.InvoiceDate = "15/03/2024" }),
			Entry("no items", func(r *recognition.Result) { r.Extraction.Items = nil }),
			Entry("zero quantity", func(r *recognition.Result) { r.Extraction.Items[0].Quantity = decimal.Zero }),
			Entry("negative price", func(r *recognition.Result) { r.Extraction.Items[1].UnitPrice = dec("-1") }),
		)

		When("every item is bound", func() {
			BeforeEach(func() {
				result.Extraction.Items = result.Extraction.Items[:1]
			})

			It("is ready", func() {
				Expect(session.RequestCommit(providers)).To(Succeed())
				Expect(session.State()).To(Equal(StateReady))
			})

			It("falls back to the first provider when the name is unknown", func() {
				Expect(session.EditHeader(HeaderEdit{ProviderName: ptr("Otro Proveedor")})).To(Succeed())
				Expect(session.RequestCommit(providers)).To(Succeed())
				snap := session.Snapshot()
				Expect(snap.Provider.Outcome).To(Equal(matching.ProviderFallbackFirst))
				Expect(snap.Provider.Provider.ID).To(Equal(providers[0].ID))
			})

			It("leaves the provider unbound when none are known", func() {
				Expect(session.RequestCommit(nil)).To(Succeed())
				inv, err := session.BeginCommit()
				Expect(err).NotTo(HaveOccurred())
				Expect(inv.Provider.Outcome).To(Equal(matching.ProviderUnbound))
				Expect(inv.Provider.Name).To(Equal("Distribuidora Norte"))
			})
		})
	})

	Describe("EditItem", func() {
		It("re-matches only the edited item and recomputes its total", func() {
			before := session.Snapshot().Items
			Expect(session.EditItem(1, ItemEdit{ProductName: ptr("Queso Cremoso"), Quantity: ptr(dec("3"))}, catalog)).To(Succeed())

			after := session.Snapshot().Items
			Expect(session.State()).To(Equal(StateReviewing))
			Expect(after[0]).To(Equal(before[0]))
			Expect(after[2]).To(Equal(before[2]))

			Expect(after[1].Decision).To(Equal(matching.DecisionAutoBind))
			Expect(after[1].Binding.ProductID).To(Equal(quesoCremoso.ID))
			Expect(after[1].TotalPrice.Equal(dec("300"))).To(BeTrue())
		})

		It("keeps a manual binding when only the amounts change", func() {
			Expect(session.Resolve(1, Binding{ProductID: quesoRallado.ID})).To(Succeed())
			Expect(session.EditItem(1, ItemEdit{UnitPrice: ptr(dec("120"))}, catalog)).To(Succeed())
			it := session.Snapshot().Items[1]
			Expect(it.Binding).To(Equal(&Binding{ProductID: quesoRallado.ID, Source: SourceManual}))
			Expect(it.TotalPrice.Equal(dec("240"))).To(BeTrue())
		})

		It("drops a manual binding when the name changes", func() {
			Expect(session.Resolve(1, Binding{ProductID: quesoRallado.ID})).To(Succeed())
			Expect(session.EditItem(1, ItemEdit{ProductName: ptr("Azúcar")}, catalog)).To(Succeed())
			Expect(session.Snapshot().Items[1].Binding).To(BeNil())
		})

		It("sees products added to the catalog after the session started", func() {
			harina := entity.Product{ID: uuid.New(), Name: "Harina 000"}
			Expect(session.EditItem(2, ItemEdit{}, append(catalog, harina))).To(Succeed())
			Expect(session.Snapshot().Items[2].Binding.ProductID).To(Equal(harina.ID))
		})

		It("returns to reviewing from resolving matches", func() {
			Expect(session.RequestCommit(providers)).To(HaveOccurred())
			Expect(session.EditItem(2, ItemEdit{Quantity: ptr(dec("5"))}, catalog)).To(Succeed())
			Expect(session.State()).To(Equal(StateReviewing))
			Expect(session.Unresolved()).To(BeEmpty())
		})

		It("rejects an unknown index", func() {
			Expect(session.EditItem(7, ItemEdit{}, catalog)).To(MatchError(common.ErrNotFound))
			Expect(session.EditItem(-1, ItemEdit{}, catalog)).To(MatchError(common.ErrNotFound))
		})
	})

	Describe("RemoveItem", func() {
		It("drops the item", func() {
			Expect(session.RemoveItem(2)).To(Succeed())
			Expect(session.Snapshot().Items).To(HaveLen(2))
			Expect(session.State()).To(Equal(StateReviewing))
		})
	})

	Describe("EditHeader", func() {
		It("changes header fields without touching items", func() {
			before := session.Snapshot().Items
			Expect(session.EditHeader(HeaderEdit{InvoiceNumber: ptr(" B-9 "), Tax: ptr(dec("21"))})).To(Succeed())
			snap := session.Snapshot()
			Expect(snap.Header.InvoiceNumber).To(Equal("B-9"))
			Expect(snap.Header.Tax.Equal(dec("21"))).To(BeTrue())
			Expect(snap.Header.InvoiceDate).To(Equal("2024-03-15"))
			Expect(snap.Items).To(Equal(before))
		})
	})

	Describe("commit outcome", func() {
		BeforeEach(func() {
			result.Extraction.Items = result.Extraction.Items[:1]
		})

		JustBeforeEach(func() {
			Expect(session.RequestCommit(providers)).To(Succeed())
		})

		It("preserves edits and bindings when the commit fails", func() {
			before := session.Snapshot()
			_, err := session.BeginCommit()
			Expect(err).NotTo(HaveOccurred())

			failure := common.CommitFailed(errors.New("connection reset"))
			Expect(session.CommitFailed(failure)).To(Succeed())
			Expect(session.State()).To(Equal(StateReady))

			after := session.Snapshot()
			Expect(after.Items).To(Equal(before.Items))
			Expect(after.Header).To(Equal(before.Header))
			Expect(after.LastError).To(ContainSubstring("COMMIT_FAILED"))

			_, err = session.BeginCommit()
			Expect(err).NotTo(HaveOccurred())
		})

		It("clears the extraction state when the commit succeeds", func() {
			_, err := session.BeginCommit()
			Expect(err).NotTo(HaveOccurred())
			Expect(session.CommitSucceeded()).To(Succeed())
			Expect(session.State()).To(Equal(StateCommitted))
			Expect(session.Snapshot().Items).To(BeEmpty())
			Expect(session.Snapshot().RawText).To(BeEmpty())
		})

		It("only reports outcomes for a commit in flight", func() {
			Expect(session.CommitSucceeded()).To(MatchError(common.ErrInvalidState))
			Expect(session.CommitFailed(errors.New("x"))).To(MatchError(common.ErrInvalidState))
		})
	})

	Describe("Discard", func() {
		It("is safe in every state", func() {
			Expect(func() { session.Discard() }).NotTo(Panic())
			Expect(session.State()).To(Equal(StateDiscarded))
			Expect(session.Snapshot().Items).To(BeEmpty())
			Expect(func() { session.Discard() }).NotTo(Panic())
			Expect(session.State()).To(Equal(StateDiscarded))
		})

		It("refuses further edits", func() {
			session.Discard()
			Expect(session.EditHeader(HeaderEdit{})).To(MatchError(common.ErrInvalidState))
			Expect(session.RequestCommit(providers)).To(MatchError(common.ErrInvalidState))
			Expect(session.Review()).To(MatchError(common.ErrInvalidState))
		})

		It("leaves a committed session committed", func() {
			result.Extraction.Items = result.Extraction.Items[:1]
			session = New(result, catalog, nil)
			Expect(session.RequestCommit(providers)).To(Succeed())
			_, err := session.BeginCommit()
			Expect(err).NotTo(HaveOccurred())
			Expect(session.CommitSucceeded()).To(Succeed())

			session.Discard()
			Expect(session.State()).To(Equal(StateCommitted))
		})
	})
})

package matching

import (
	"github.com/google/uuid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

var _ = Describe("BindProvider", func() {
	providers := []entity.Provider{
		{ID: uuid.New(), Name: "Lácteos del Sur"},
		{ID: uuid.New(), Name: "Distribuidora Norte"},
	}

	It("matches when a known name is contained in the extracted one", func() {
		b := BindProvider("DISTRIBUIDORA NORTE SA", providers)
		Expect(b.Outcome).To(Equal(ProviderMatched))
		Expect(b.Provider.ID).To(Equal(providers[1].ID))
	})

	It("matches when the extracted name is contained in a known one", func() {
		b := BindProvider("lácteos", providers)
		Expect(b.Outcome).To(Equal(ProviderMatched))
		Expect(b.Provider.ID).To(Equal(providers[0].ID))
	})

	It("falls back to the first provider when nothing matches", func() {
		b := BindProvider("Proveedor Desconocido", providers)
		Expect(b.Outcome).To(Equal(ProviderFallbackFirst))
		Expect(b.Provider.ID).To(Equal(providers[0].ID))
		Expect(b.Name).To(Equal("Proveedor Desconocido"))
	})

	It("falls back for a blank name", func() {
		Expect(BindProvider("", providers).Outcome).To(Equal(ProviderFallbackFirst))
	})

	It("is unbound without known providers", func() {
		b := BindProvider("Distribuidora Norte", nil)
		Expect(b.Outcome).To(Equal(ProviderUnbound))
		Expect(b.Provider).To(BeNil())
	})
})

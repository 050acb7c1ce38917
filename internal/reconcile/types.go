package reconcile

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/confidence"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/matching"
)

type State string

const (
	StateExtracted        State = "extracted"
	StateReviewing        State = "reviewing"
	StateResolvingMatches State = "resolving_matches"
	StateReady            State = "ready"
	StateCommitting       State = "committing"
	StateCommitted        State = "committed"
	StateDiscarded        State = "discarded"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateDiscarded
}

// editable states accept item and header edits.
func (s State) editable() bool {
	switch s {
	case StateExtracted, StateReviewing, StateResolvingMatches, StateReady:
		return true
	}
	return false
}

type BindingSource string

const (
	SourceAuto   BindingSource = "auto"   // sole candidate
	SourceManual BindingSource = "manual" // picked by the user
)

// Binding ties an item to a catalog product. CreateNew marks an item the user
// asked to add to the catalog; ProductID may then be empty until the product
// exists.
type Binding struct {
	ProductID uuid.UUID     `json:"product_id"`
	CreateNew bool          `json:"create_new"`
	Source    BindingSource `json:"source"`
}

func (b Binding) valid() bool {
	return b.CreateNew || b.ProductID != uuid.Nil
}

// Item is an extracted line item under reconciliation.
type Item struct {
	extract.LineItem
	Candidates []matching.Candidate `json:"candidates"`
	Decision   matching.Decision    `json:"decision"`
	Binding    *Binding             `json:"binding,omitempty"`
}

func (it Item) Resolved() bool { return it.Binding != nil }

// ItemEdit carries the fields a user changed; nil fields are left alone.
type ItemEdit struct {
	ProductName *string          `json:"product_name,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

type HeaderEdit struct {
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	InvoiceDate   *string          `json:"invoice_date,omitempty"`
	ProviderName  *string          `json:"provider_name,omitempty"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
}

// ReconciledItem is a line item with its final binding.
type ReconciledItem struct {
	extract.LineItem
	ProductID uuid.UUID `json:"product_id"`
	CreateNew bool      `json:"create_new"`
}

// ReconciledInvoice is what gets handed to persistence.
type ReconciledInvoice struct {
	Header     extract.Header            `json:"header"`
	Provider   matching.ProviderBinding  `json:"provider"`
	Items      []ReconciledItem          `json:"items"`
	RawText    string                    `json:"raw_text"`
	Confidence float64                   `json:"confidence"`
	Path       constants.RecognitionPath `json:"path"`
}

// Snapshot is a read-only copy of the session for rendering.
type Snapshot struct {
	State      State                     `json:"state"`
	Header     extract.Header            `json:"header"`
	Items      []Item                    `json:"items"`
	Unresolved []int                     `json:"unresolved"`
	Provider   *matching.ProviderBinding `json:"provider,omitempty"`
	Confidence float64                   `json:"confidence"`
	Band       confidence.Band           `json:"band"`
	Path       constants.RecognitionPath `json:"path"`
	RawText    string                    `json:"raw_text,omitempty"`
	LastError  string                    `json:"last_error,omitempty"`
}

package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/confidence"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/matching"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
)

// Session is the reconciliation state of one document. It holds no globals
// and does no I/O; callers serialize access.
type Session struct {
	state      State
	header     extract.Header
	items      []Item
	unresolved []int
	provider   *matching.ProviderBinding
	rawText    string
	confidence float64
	path       constants.RecognitionPath
	lastErr    error
	matcher    *matching.Matcher
}

// New starts a session in Extracted, matching every item against catalog and
// binding the sole candidates.
func New(res recognition.Result, catalog []entity.Product, matcher *matching.Matcher) *Session {
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	s := &Session{
		state:      StateExtracted,
		header:     res.Extraction.Header,
		items:      make([]Item, 0, len(res.Extraction.Items)),
		rawText:    res.RawText,
		confidence: res.Confidence,
		path:       res.Path,
		matcher:    matcher,
	}
	for _, li := range res.Extraction.Items {
		li.Recompute()
		it := Item{LineItem: li}
		s.match(&it, catalog)
		s.items = append(s.items, it)
	}
	return s
}

func (s *Session) match(it *Item, catalog []entity.Product) {
	r := s.matcher.Evaluate(it.ProductName, catalog)
	it.Candidates, it.Decision = r.Candidates, r.Decision
	if c, ok := r.Bound(); ok {
		it.Binding = &Binding{ProductID: c.ProductID, Source: SourceAuto}
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) Unresolved() []int { return slices.Clone(s.unresolved) }

func (s *Session) LastError() error { return s.lastErr }

// Review moves to Reviewing from any state that accepts edits.
func (s *Session) Review() error {
	if !s.state.editable() {
		return common.InvalidState(fmt.Sprintf("cannot review in state %s", s.state))
	}
	s.toReviewing()
	return nil
}

func (s *Session) toReviewing() {
	s.state = StateReviewing
	s.unresolved = nil
	s.provider = nil
}

// EditItem applies edit to item i, recomputes its total and re-matches it.
// Other items are not touched. A manual binding survives when the name is
// unchanged.
func (s *Session) EditItem(i int, edit ItemEdit, catalog []entity.Product) error {
	if !s.state.editable() {
		return common.InvalidState(fmt.Sprintf("cannot edit items in state %s", s.state))
	}
	if err := s.checkIndex(i); err != nil {
		return err
	}

	it := s.items[i]
	renamed := false
	if edit.ProductName != nil {
		name := strings.TrimSpace(*edit.ProductName)
		renamed = name != it.ProductName
		it.ProductName = name
	}
	if edit.Quantity != nil {
		it.Quantity = *edit.Quantity
	}
	if edit.UnitPrice != nil {
		it.UnitPrice = *edit.UnitPrice
	}
	it.Recompute()

	keep := it.Binding
	it.Binding = nil
	s.match(&it, catalog)
	if keep != nil && keep.Source == SourceManual && !renamed {
		it.Binding = keep
	}

	s.items[i] = it
	s.toReviewing()
	return nil
}

// RemoveItem drops item i.
func (s *Session) RemoveItem(i int) error {
	if !s.state.editable() {
		return common.InvalidState(fmt.Sprintf("cannot remove items in state %s", s.state))
	}
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.toReviewing()
	return nil
}

// EditHeader corrects header fields. Items and bindings are not touched.
func (s *Session) EditHeader(edit HeaderEdit) error {
	if !s.state.editable() {
		return common.InvalidState(fmt.Sprintf("cannot edit header in state %s", s.state))
	}
	h := &s.header
	if edit.InvoiceNumber != nil {
		h.InvoiceNumber = strings.TrimSpace(*edit.InvoiceNumber)
	}
	if edit.InvoiceDate != nil {
		h.InvoiceDate = strings.TrimSpace(*edit.InvoiceDate)
	}
	if edit.ProviderName != nil {
		h.ProviderName = strings.TrimSpace(*edit.ProviderName)
	}
	if edit.Subtotal != nil {
		h.Subtotal = *edit.Subtotal
	}
	if edit.Tax != nil {
		h.Tax = *edit.Tax
	}
	if edit.Total != nil {
		h.Total = *edit.Total
	}
	s.toReviewing()
	return nil
}

// RequestCommit checks the session before a commit. A validation failure
// returns to Reviewing with data intact. Unbound items move the session to
// ResolvingMatches and are listed by Unresolved. Otherwise the session is Ready.
func (s *Session) RequestCommit(providers []entity.Provider) error {
	if !s.state.editable() {
		return common.InvalidState(fmt.Sprintf("cannot commit in state %s", s.state))
	}

	if err := s.validate(); err != nil {
		s.toReviewing()
		s.lastErr = err
		return err
	}

	b := matching.BindProvider(s.header.ProviderName, providers)
	s.provider = &b

	s.unresolved = s.unresolved[:0]
	for i, it := range s.items {
		if !it.Resolved() {
			s.unresolved = append(s.unresolved, i)
		}
	}
	if len(s.unresolved) > 0 {
		s.state = StateResolvingMatches
		err := common.MatchingAmbiguity(len(s.unresolved))
		s.lastErr = err
		return err
	}

	s.unresolved = nil
	s.state = StateReady
	s.lastErr = nil
	return nil
}

func (s *Session) validate() error {
	h := s.header
	v := common.NewValidator().
		Field("invoice_number", h.InvoiceNumber, common.Required, common.MaxLen(64)).
		Field("invoice_date", h.InvoiceDate, common.Required, common.ISODate).
		Field("items", len(s.items), common.MinCount(1))
	for i, it := range s.items {
		v.Field(fmt.Sprintf("items[%d].product_name", i), it.ProductName, common.Required).
			Field(fmt.Sprintf("items[%d].quantity", i), it.Quantity, common.PositiveDecimal).
			Field(fmt.Sprintf("items[%d].unit_price", i), it.UnitPrice, common.PositiveDecimal)
	}
	return v.Error()
}

// Resolve binds item i. While resolving matches only unresolved items are
// accepted, and the session becomes Ready once none remain. Before a commit
// request any item may be bound by hand.
func (s *Session) Resolve(i int, b Binding) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	if !b.valid() {
		return common.InvalidInput("binding needs a product id or create_new")
	}
	b.Source = SourceManual

	switch s.state {
	case StateResolvingMatches:
		pos := slices.Index(s.unresolved, i)
		if pos < 0 {
			return common.InvalidState(fmt.Sprintf("item %d is not awaiting resolution", i))
		}
		s.items[i].Binding = &b
		s.unresolved = slices.Delete(s.unresolved, pos, pos+1)
		if len(s.unresolved) == 0 {
			s.unresolved = nil
			s.state = StateReady
			s.lastErr = nil
		}
		return nil
	case StateExtracted, StateReviewing:
		s.items[i].Binding = &b
		s.state = StateReviewing
		return nil
	default:
		return common.InvalidState(fmt.Sprintf("cannot resolve items in state %s", s.state))
	}
}

// Rebind records the product that was created for create-new item i.
func (s *Session) Rebind(i int, p entity.Product) error {
	if !s.state.editable() {
		return common.InvalidState(fmt.Sprintf("cannot rebind items in state %s", s.state))
	}
	if err := s.checkIndex(i); err != nil {
		return err
	}
	b := s.items[i].Binding
	if b == nil || !b.CreateNew {
		return common.InvalidState(fmt.Sprintf("item %d is not marked create-new", i))
	}
	b.ProductID = p.ID
	return nil
}

// BeginCommit moves Ready to Committing and assembles the invoice.
func (s *Session) BeginCommit() (ReconciledInvoice, error) {
	if s.state != StateReady {
		return ReconciledInvoice{}, common.InvalidState(fmt.Sprintf("cannot begin commit in state %s", s.state))
	}
	inv := ReconciledInvoice{
		Header:     s.header,
		Items:      make([]ReconciledItem, 0, len(s.items)),
		RawText:    s.rawText,
		Confidence: s.confidence,
		Path:       s.path,
	}
	if s.provider != nil {
		inv.Provider = *s.provider
	}
	for _, it := range s.items {
		inv.Items = append(inv.Items, ReconciledItem{
			LineItem:  it.LineItem,
			ProductID: it.Binding.ProductID,
			CreateNew: it.Binding.CreateNew,
		})
	}
	s.state = StateCommitting
	return inv, nil
}

// CommitSucceeded finishes the session and drops the extraction state.
func (s *Session) CommitSucceeded() error {
	if s.state != StateCommitting {
		return common.InvalidState(fmt.Sprintf("no commit in flight in state %s", s.state))
	}
	s.state = StateCommitted
	s.clear()
	return nil
}

// CommitFailed returns to Ready with every edit and binding preserved.
func (s *Session) CommitFailed(err error) error {
	if s.state != StateCommitting {
		return common.InvalidState(fmt.Sprintf("no commit in flight in state %s", s.state))
	}
	s.state = StateReady
	s.lastErr = err
	return nil
}

// Discard abandons the session. It is safe in any state; terminal states
// are left as they are.
func (s *Session) Discard() {
	if s.state.Terminal() {
		return
	}
	s.state = StateDiscarded
	s.clear()
}

func (s *Session) clear() {
	s.header = extract.Header{}
	s.items = nil
	s.unresolved = nil
	s.provider = nil
	s.rawText = ""
	s.lastErr = nil
}

func (s *Session) checkIndex(i int) error {
	if i < 0 || i >= len(s.items) {
		return common.NotFound(fmt.Sprintf("item %d does not exist", i))
	}
	return nil
}

// Snapshot copies the session for rendering.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:      s.state,
		Header:     s.header,
		Items:      make([]Item, len(s.items)),
		Unresolved: slices.Clone(s.unresolved),
		Confidence: s.confidence,
		Band:       confidence.Classify(s.confidence),
		Path:       s.path,
		RawText:    s.rawText,
	}
	for i, it := range s.items {
		it.Candidates = slices.Clone(it.Candidates)
		if it.Binding != nil {
			b := *it.Binding
			it.Binding = &b
		}
		snap.Items[i] = it
	}
	if s.provider != nil {
		p := *s.provider
		snap.Provider = &p
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

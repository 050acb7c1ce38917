package matching

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

const (
	// MaxCandidates bounds how many catalog entries are proposed per item.
	MaxCandidates = 5
	prefixRunes   = 10
)

// Candidate is a catalog product proposed for a line item. Score is 1 for a
// containment pass; there is no graded similarity.
type Candidate struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	CategoryName string    `json:"category_name,omitempty"`
	Score        float64   `json:"score"`
}

// Decision is the named rule that applied to a set of candidates.
type Decision string

const (
	DecisionAutoBind    Decision = "auto_bind"    // exactly one candidate
	DecisionAmbiguous   Decision = "ambiguous"    // two or more
	DecisionNoCandidate Decision = "no_candidate" // none
)

// Result pairs the candidates with the decision they lead to.
type Result struct {
	Candidates []Candidate `json:"candidates"`
	Decision   Decision    `json:"decision"`
}

// Bound returns the auto-selected candidate when the decision is AutoBind.
func (r Result) Bound() (Candidate, bool) {
	if r.Decision != DecisionAutoBind {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Matcher proposes catalog products for extracted item names using a
// symmetric prefix-containment test on lowercased names.
type Matcher struct {
	lang   language.Tag
	logger *slog.Logger
}

func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{lang: language.Spanish, logger: logger}
}

// Match returns up to MaxCandidates products, in catalog order, for which the
// lowercase catalog name contains the first 10 characters of the item name or
// the item name contains the first 10 characters of the catalog name.
func (m *Matcher) Match(itemName string, catalog []entity.Product) []Candidate {
	// cases.Caser is stateful; one per call
	lower := cases.Lower(m.lang)
	item := strings.TrimSpace(lower.String(itemName))
	if item == "" {
		return nil
	}
	itemPrefix := prefix(item, prefixRunes)

	out := make([]Candidate, 0, MaxCandidates)
	for _, p := range catalog {
		name := strings.TrimSpace(lower.String(p.Name))
		if name == "" {
			continue
		}
		if strings.Contains(name, itemPrefix) || strings.Contains(item, prefix(name, prefixRunes)) {
			out = append(out, Candidate{
				ProductID:    p.ID,
				ProductName:  p.Name,
				CategoryName: p.CategoryName,
				Score:        1,
			})
			if len(out) == MaxCandidates {
				break
			}
		}
	}
	return out
}

// Evaluate matches one item and names the resulting decision.
func (m *Matcher) Evaluate(itemName string, catalog []entity.Product) Result {
	cands := m.Match(itemName, catalog)
	res := Result{Candidates: cands, Decision: Decide(cands)}
	m.logger.Debug("matching.evaluate", "item", itemName, "candidates", len(cands), "decision", res.Decision)
	return res
}

// Decide names the rule for a candidate set.
func Decide(cands []Candidate) Decision {
	switch len(cands) {
	case 0:
		return DecisionNoCandidate
	case 1:
		return DecisionAutoBind
	default:
		return DecisionAmbiguous
	}
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

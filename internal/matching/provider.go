package matching

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

// ProviderOutcome names which provider binding rule applied.
type ProviderOutcome string

const (
	ProviderMatched       ProviderOutcome = "matched"
	ProviderFallbackFirst ProviderOutcome = "fallback_first" // no match; first known provider
	ProviderUnbound       ProviderOutcome = "unbound"        // no providers known at all
)

// ProviderBinding is the outcome of binding free-text provider name to a known provider.
type ProviderBinding struct {
	Outcome  ProviderOutcome  `json:"outcome"`
	Provider *entity.Provider `json:"provider,omitempty"`
	Name     string           `json:"name"` // free text as extracted or edited
}

// BindProvider matches name case-insensitively as a substring in either
// direction. Without a match it falls back to the first provider.
func BindProvider(name string, providers []entity.Provider) ProviderBinding {
	b := ProviderBinding{Name: strings.TrimSpace(name)}
	if len(providers) == 0 {
		b.Outcome = ProviderUnbound
		return b
	}

	fold := cases.Fold()
	needle := fold.String(b.Name)
	if needle != "" {
		for i := range providers {
			known := fold.String(strings.TrimSpace(providers[i].Name))
			if known == "" {
				continue
			}
			if strings.Contains(known, needle) || strings.Contains(needle, known) {
				p := providers[i]
				b.Outcome, b.Provider = ProviderMatched, &p
				return b
			}
		}
	}

	p := providers[0]
	b.Outcome, b.Provider = ProviderFallbackFirst, &p
	return b
}

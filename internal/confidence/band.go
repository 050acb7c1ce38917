package confidence

// Band is the UX gating bucket for a recognition confidence.
type Band string

const (
	High   Band = "high"
	Medium Band = "medium"
	Low    Band = "low"
)

const (
	highThreshold   = 0.8
	mediumThreshold = 0.6
)

// Classify buckets c: >0.8 high, >0.6 medium, anything else low.
// It is advisory and never blocks a commit.
func Classify(c float64) Band {
	switch {
	case c > highThreshold:
		return High
	case c > mediumThreshold:
		return Medium
	default:
		return Low
	}
}

// SuggestRescan reports whether the user should be nudged to scan again.
func (b Band) SuggestRescan() bool { return b == Low }

package recognition

import (
	"context"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
)

// Result is what a recognizer hands to reconciliation. Confidence is in [0,1].
type Result struct {
	Extraction extract.Result            `json:"extraction"`
	Confidence float64                   `json:"confidence"`
	RawText    string                    `json:"raw_text"`
	Path       constants.RecognitionPath `json:"path"`
	Method     string                    `json:"method,omitempty"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// Recognizer turns a validated document into a Result.
type Recognizer interface {
	Recognize(ctx context.Context, doc Document) (Result, error)
}

// ProgressFunc receives advisory progress in percent. It must not block.
type ProgressFunc func(percent int, stage string)

// Outcome names which fallback rule produced the result.
type Outcome string

const (
	OutcomePrimary           Outcome = "primary"            // primary answered
	OutcomeSecondaryFallback Outcome = "secondary_fallback" // primary failed or unreachable
	OutcomeSecondaryOnly     Outcome = "secondary_only"     // no primary configured
	OutcomeFailed            Outcome = "failed"             // no path produced text
)

package recognition

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

// Chain tries the primary recognizer and falls back to the secondary one
// when the primary is unavailable. A nil primary means secondary only.
type Chain struct {
	primary   Recognizer
	secondary Recognizer
	logger    *slog.Logger
}

func NewChain(primary, secondary Recognizer, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{primary: primary, secondary: secondary, logger: logger}
}

// Recognize satisfies Recognizer.
func (c *Chain) Recognize(ctx context.Context, doc Document) (Result, error) {
	res, _, err := c.Run(ctx, doc, nil)
	return res, err
}

// Run validates the document, then recognizes it. The returned Outcome names
// the rule that produced the result. progress may be nil.
func (c *Chain) Run(ctx context.Context, doc Document, progress ProgressFunc) (Result, Outcome, error) {
	report := func(p int, stage string) {
		if progress != nil {
			progress(p, stage)
		}
	}

	report(0, "validate")
	if err := doc.Validate(); err != nil {
		c.logger.Warn("recognition.input.rejected", "name", doc.Name, "error", err)
		return Result{}, OutcomeFailed, err
	}

	outcome := OutcomeSecondaryOnly
	if c.primary != nil {
		report(10, "primary")
		res, err := c.primary.Recognize(ctx, doc)
		if err == nil {
			report(100, "done")
			return res, OutcomePrimary, nil
		}
		if !errors.Is(err, common.ErrRecognitionUnavailable) {
			return Result{}, OutcomeFailed, err
		}
		c.logger.Info("recognition.fallback", "name", doc.Name, "reason", err.Error())
		outcome = OutcomeSecondaryFallback
	}

	if err := ctx.Err(); err != nil {
		return Result{}, OutcomeFailed, err
	}
	if c.secondary == nil {
		return Result{}, OutcomeFailed, common.RecognitionFailed(errors.New("no recognizer configured"))
	}

	report(50, "secondary")
	res, err := c.secondary.Recognize(ctx, doc)
	if err != nil {
		return Result{}, OutcomeFailed, err
	}
	report(100, "done")
	return res, outcome, nil
}

package recognition

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/confidence"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/ocr"
)

// TextSource produces raw text for a document. *ocr.Extractor satisfies it.
type TextSource interface {
	ExtractBytes(ctx context.Context, content []byte, mediaType string) (ocr.ExtractionResult, error)
}

// SecondaryRecognizer runs local OCR and derives fields from the text.
type SecondaryRecognizer struct {
	text      TextSource
	extractor *extract.Extractor
	logger    *slog.Logger
}

func NewSecondaryRecognizer(text TextSource, extractor *extract.Extractor, logger *slog.Logger) *SecondaryRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = extract.NewExtractor(logger)
	}
	return &SecondaryRecognizer{text: text, extractor: extractor, logger: logger}
}

func (s *SecondaryRecognizer) Recognize(ctx context.Context, doc Document) (Result, error) {
	out, err := s.text.ExtractBytes(ctx, doc.Content, doc.MediaType)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		s.logger.Error("recognition.secondary.failed", "error", err)
		return Result{}, common.RecognitionFailed(err)
	}
	if strings.TrimSpace(out.Text) == "" {
		s.logger.Error("recognition.secondary.failed", "error", "empty text", "method", out.Method)
		return Result{}, common.RecognitionFailed(errors.New("no text recognized"))
	}

	res := Result{
		Extraction: s.extractor.Extract(out.Text),
		RawText:    out.Text,
		Path:       constants.PathSecondary,
		Method:     out.Method,
		Warnings:   out.Warnings,
	}
	if out.Estimated {
		res.Confidence = confidence.FieldScore(res.Extraction)
	} else {
		res.Confidence = float64(out.Confidence)
	}

	s.logger.Info("recognition.secondary.ok",
		"method", out.Method,
		"pages", out.Pages,
		"items", len(res.Extraction.Items),
		"confidence", res.Confidence,
		"estimated", out.Estimated,
	)
	return res, nil
}

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "spa+deu"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// MinPDFTextChars is the shortest pdftotext output trusted before
	// falling back to rasterize+OCR. Default 40.
	MinPDFTextChars int
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
	// Estimated is set when the engine reported no score and Confidence
	// comes from text heuristics only.
	Estimated bool
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec-based runner (tests stub binaries this way).
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "spa+deu"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinPDFTextChars <= 0 {
		cfg.MinPDFTextChars = 40
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract picks a strategy based on the source type of the file at path.
func (e *Extractor) Extract(ctx context.Context, path, sourceType string) (ExtractionResult, error) {
	start := time.Now()
	e.logger.Debug("starting ocr extraction", "path", path, "source_type", sourceType)
	switch sourceType {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported ocr source type", "source_type", sourceType)
		return ExtractionResult{}, fmt.Errorf("unsupported source type: %q", sourceType)
	}
}

// ExtractBytes spools content to a temp file and runs Extract on it.
// The temp file is removed before returning.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte, mediaType string) (ExtractionResult, error) {
	sourceType, ok := constants.SourceTypeFor(mediaType)
	if !ok {
		return ExtractionResult{}, fmt.Errorf("unsupported media type: %q", mediaType)
	}

	f, err := os.CreateTemp("", "invoice-*"+constants.ExtForMediaType(mediaType))
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("spool document: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove spooled document", "path", path, "error", err)
		}
	}()

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return ExtractionResult{}, fmt.Errorf("spool document: %w", err)
	}
	if err := f.Close(); err != nil {
		return ExtractionResult{}, fmt.Errorf("spool document: %w", err)
	}
	return e.Extract(ctx, path, sourceType)
}

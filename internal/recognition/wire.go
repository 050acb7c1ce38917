package recognition

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/ocr"
)

// FromConfig assembles the chain: the remote recognizer when a URL is
// configured, local OCR always.
func FromConfig(cfg *common.Config, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var primary Recognizer
	if cfg.Recognition.URL != "" {
		p, err := NewPrimaryRecognizer(PrimaryConfig{
			URL:     cfg.Recognition.URL,
			APIKey:  cfg.Recognition.APIKey,
			Timeout: cfg.Recognition.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		primary = p
	}

	text := ocr.NewExtractor(ocr.Config{
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
	}, logger)
	secondary := NewSecondaryRecognizer(text, extract.NewExtractor(logger), logger)

	logger.Info("recognition chain ready", "primary", primary != nil, "ocr_lang", cfg.OCR.TesseractLang)
	return NewChain(primary, secondary, logger), nil
}

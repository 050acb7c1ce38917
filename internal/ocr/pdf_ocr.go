package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// extractPDF trusts embedded text when there is enough of it, otherwise it
// rasterizes the pages and runs tesseract on each.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	text, pages, warn, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warn...)
	if err == nil {
		text = Normalize(text)
		if len([]rune(strings.TrimSpace(text))) >= e.cfg.MinPDFTextChars {
			res.Text, res.Pages, res.Method = text, pages, "pdf-text"
			// embedded text is exact
			res.Confidence = 1.0
			return res, nil
		}
		e.logger.Debug("pdf text layer too thin, falling back to ocr", "path", path, "chars", len(text))
	} else {
		e.logger.Warn("pdftotext failed, falling back to ocr", "path", path, "error", err)
	}

	text, pages, warn, err = e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warn...)
	if err != nil {
		return res, fmt.Errorf("pdf ocr: %w", err)
	}
	res.Text = Normalize(text)
	res.Pages = pages
	res.Method = "pdf-ocr"
	res.Confidence = heuristicConfidence(res.Text)
	res.Estimated = true
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	if b.Len() == 0 {
		return "", len(matches), warns, fmt.Errorf("tesseract produced no text for %d pages", len(matches))
	}
	return b.String(), len(matches), warns, nil
}

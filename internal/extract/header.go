package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	// label, then an optional number marker ("Factura N° A-123"), then the token
	reInvoiceNumber = regexp.MustCompile(`(?i)(?:n[°º]\s*factura|nro\.?\s*factura|factura|número)(?:\s*(?:n[°º]|nro\.?|#))?[\s:]*([A-Z0-9\-]+)`)
	reDateLike      = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	reHeaderWords   = regexp.MustCompile(`(?i)total|subtotal|iva|factura`)
	reAmountToken   = regexp.MustCompile(`\d+[,.]?\d{0,2}`)
)

const (
	providerMinLen = 5
	providerMaxLen = 50
)

// Extractor turns recognized text into a Header and line items. It never fails:
// the worst case is an empty header and no items.
type Extractor struct {
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Extractor)

// WithClock injects the clock used for the date fallback.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExtractor(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{now: time.Now, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs header and line item extraction over the same text.
func (e *Extractor) Extract(text string) Result {
	lines := SplitLines(text)
	res := Result{
		Header: e.ExtractHeader(text),
		Items:  e.ExtractItems(lines),
	}
	e.logger.Debug("extract.done",
		"has_invoice_number", res.Header.InvoiceNumber != "",
		"has_date", res.Header.InvoiceDate != "",
		"has_provider", res.Header.ProviderName != "",
		"items", len(res.Items),
	)
	return res
}

// ExtractHeader finds invoice number, date, provider and the subtotal/total pair.
func (e *Extractor) ExtractHeader(text string) Header {
	var h Header

	numberSpan := []int(nil)
	if m := reInvoiceNumber.FindStringSubmatchIndex(text); m != nil {
		h.InvoiceNumber = text[m[2]:m[3]]
		numberSpan = m[2:4]
	}

	if d := reDateLike.FindString(text); d != "" {
		h.InvoiceDate = NormalizeDate(d, e.now())
	}

	h.ProviderName = findProvider(rawLines(text))
	h.Subtotal, h.Total = amountExtremes(maskSpans(text, numberSpan))
	return h
}

// findProvider returns the first line that looks like a company name. The
// length bounds apply to the line as recognized, surrounding spaces included.
func findProvider(lines []string) string {
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if n <= providerMinLen || n >= providerMaxLen {
			continue
		}
		if reDateLike.MatchString(line) || reHeaderWords.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// amountExtremes collects every positive numeric token and returns (min, max).
// One token yields it for both; none yields zeros.
func amountExtremes(text string) (decimal.Decimal, decimal.Decimal) {
	var amounts []decimal.Decimal
	for _, tok := range reAmountToken.FindAllString(text, -1) {
		if d, ok := parseAmount(tok); ok && d.IsPositive() {
			amounts = append(amounts, d)
		}
	}
	switch len(amounts) {
	case 0:
		return decimal.Zero, decimal.Zero
	case 1:
		return amounts[0], amounts[0]
	default:
		return decimal.Min(amounts[0], amounts[1:]...), decimal.Max(amounts[0], amounts[1:]...)
	}
}

// maskSpans blanks date-shaped substrings and the invoice number token so
// their digits are not counted as amounts.
func maskSpans(text string, numberSpan []int) string {
	b := []byte(text)
	blank := func(from, to int) {
		for i := from; i < to; i++ {
			b[i] = ' '
		}
	}
	if len(numberSpan) == 2 {
		blank(numberSpan[0], numberSpan[1])
	}
	for _, loc := range reDateLike.FindAllStringIndex(text, -1) {
		blank(loc[0], loc[1])
	}
	return string(b)
}

// SplitLines splits text on newlines and drops blank lines. Lines are trimmed.
func SplitLines(text string) []string {
	lines := rawLines(text)
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

// rawLines is SplitLines without the trimming.
func rawLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

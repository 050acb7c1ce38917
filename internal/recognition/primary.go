package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/confidence"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
)

type PrimaryConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration // default 45s
}

// PrimaryRecognizer posts the document to a remote recognition service and
// accepts its structured answer. Any failure is reported as
// common.ErrRecognitionUnavailable so callers can fall back.
type PrimaryRecognizer struct {
	cfg    PrimaryConfig
	client *http.Client
	schema *jsonschema.Schema
	now    func() time.Time
	logger *slog.Logger
}

type PrimaryOption func(*PrimaryRecognizer)

func WithHTTPClient(c *http.Client) PrimaryOption {
	return func(p *PrimaryRecognizer) {
		if c != nil {
			p.client = c
		}
	}
}

// WithPrimaryClock injects the clock used to normalize non-ISO dates.
func WithPrimaryClock(now func() time.Time) PrimaryOption {
	return func(p *PrimaryRecognizer) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPrimaryRecognizer(cfg PrimaryConfig, logger *slog.Logger, opts ...PrimaryOption) (*PrimaryRecognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, errors.New("primary recognizer: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	schema, err := compileSchema(BuildPrimaryResponseSchema())
	if err != nil {
		return nil, fmt.Errorf("primary recognizer: %w", err)
	}
	p := &PrimaryRecognizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		schema: schema,
		now:    time.Now,
		logger: logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type primaryItem struct {
	ProductName string `json:"product_name"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`
}

type primaryPayload struct {
	Success       bool          `json:"success"`
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	ProviderName  string        `json:"provider_name"`
	Subtotal      string        `json:"subtotal"`
	Tax           string        `json:"tax"`
	Total         string        `json:"total"`
	Confidence    *float64      `json:"confidence"`
	RawText       string        `json:"raw_text"`
	Items         []primaryItem `json:"items"`
}

func (p *PrimaryRecognizer) Recognize(ctx context.Context, doc Document) (Result, error) {
	headers := map[string]string{}
	if p.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.cfg.APIKey
	}

	raw, status, err := sendMultipart(ctx, p.client, p.cfg.URL, doc, headers, p.logger)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		p.logger.Warn("recognition.primary.failed", "status", status, "error", err)
		return Result{}, common.RecognitionUnavailable(err)
	}

	clean, _, err := SanitizePrimaryJSON(raw, p.now(), p.logger)
	if err != nil {
		p.logger.Warn("recognition.primary.failed", "stage", "sanitize", "error", err)
		return Result{}, common.RecognitionUnavailable(err)
	}
	if err := validateAgainst(p.schema, clean); err != nil {
		p.logger.Warn("recognition.primary.failed", "stage", "schema", "error", err)
		return Result{}, common.RecognitionUnavailable(err)
	}

	var payload primaryPayload
	if err := json.Unmarshal(clean, &payload); err != nil {
		return Result{}, common.RecognitionUnavailable(fmt.Errorf("decode payload: %w", err))
	}
	if !payload.Success {
		p.logger.Warn("recognition.primary.failed", "stage", "payload", "error", "success=false")
		return Result{}, common.RecognitionUnavailable(errors.New("primary reported no success"))
	}

	res := Result{
		Extraction: payload.extraction(),
		RawText:    payload.RawText,
		Path:       constants.PathPrimary,
	}
	if payload.Confidence != nil {
		res.Confidence = *payload.Confidence
	} else {
		res.Confidence = confidence.FieldScore(res.Extraction)
	}

	p.logger.Info("recognition.primary.ok",
		"invoice_number", res.Extraction.Header.InvoiceNumber,
		"items", len(res.Extraction.Items),
		"confidence", res.Confidence,
	)
	return res, nil
}

// extraction applies the same item rules as text extraction: positive
// quantity and price, at most extract.MaxItems, derived total.
func (pl primaryPayload) extraction() extract.Result {
	h := extract.Header{
		InvoiceNumber: pl.InvoiceNumber,
		InvoiceDate:   pl.InvoiceDate,
		ProviderName:  pl.ProviderName,
		Subtotal:      decimalOrZero(pl.Subtotal),
		Tax:           decimalOrZero(pl.Tax),
		Total:         decimalOrZero(pl.Total),
	}
	items := make([]extract.LineItem, 0, len(pl.Items))
	for _, it := range pl.Items {
		if len(items) == extract.MaxItems {
			break
		}
		li := extract.LineItem{
			ProductName: it.ProductName,
			Quantity:    decimalOrZero(it.Quantity),
			UnitPrice:   decimalOrZero(it.UnitPrice),
		}
		if li.ProductName == "" || !li.Quantity.IsPositive() || !li.UnitPrice.IsPositive() {
			continue
		}
		li.Recompute()
		items = append(items, li)
	}
	return extract.Result{Header: h, Items: items}
}

func decimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

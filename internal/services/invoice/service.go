package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/matching"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
	"github.com/joseph-ayodele/invoice-intake/internal/reconcile"
	"github.com/joseph-ayodele/invoice-intake/internal/repository"
)

// UnknownProviderName is stored when no provider is known and none was read.
const UnknownProviderName = "Proveedor desconocido"

// Recognizer runs the recognition chain for one document.
type Recognizer interface {
	Run(ctx context.Context, doc recognition.Document, progress recognition.ProgressFunc) (recognition.Result, recognition.Outcome, error)
}

// View is a read-only copy of the current session.
type View struct {
	SessionID uuid.UUID           `json:"session_id"`
	Outcome   recognition.Outcome `json:"outcome"`
	reconcile.Snapshot
}

// ResolveRequest binds an item to an existing product or asks for a new one.
type ResolveRequest struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	CreateNew bool       `json:"create_new"`
	Unit      string     `json:"unit,omitempty"`
	Category  string     `json:"category,omitempty"`
}

// CommitResult is returned by a successful commit.
type CommitResult struct {
	Invoice *entity.Invoice `json:"invoice"`
	View    View            `json:"session"`
}

// Service owns the single in-flight reconciliation session.
type Service struct {
	recognizer Recognizer
	catalog    repository.CatalogRepository
	invoices   repository.InvoiceRepository
	matcher    *matching.Matcher
	progress   recognition.ProgressFunc
	logger     *slog.Logger

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	session   *reconcile.Session
	sessionID uuid.UUID
	outcome   recognition.Outcome
	products  []entity.Product
	providers []entity.Provider
}

type Option func(*Service)

// WithProgress installs a side channel for recognition progress.
func WithProgress(fn recognition.ProgressFunc) Option {
	return func(s *Service) { s.progress = fn }
}

func WithMatcher(m *matching.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// NewService creates a new invoice service.
func NewService(r Recognizer, catalog repository.CatalogRepository, invoices repository.InvoiceRepository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		recognizer: r,
		catalog:    catalog,
		invoices:   invoices,
		logger:     logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.matcher == nil {
		s.matcher = matching.NewMatcher(logger)
	}
	return s
}

// Start recognizes doc and opens a session for it, replacing whatever session
// existed. A Start that is overtaken by a newer Start or a Discard returns
// common.ErrSuperseded and leaves no trace.
func (s *Service) Start(ctx context.Context, doc recognition.Document) (View, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	s.dropSession()
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	start := time.Now()
	products, providers, err := s.loadCatalog(rctx)
	if err != nil {
		return View{}, s.finishStart(gen, err)
	}

	res, outcome, err := s.recognizer.Run(rctx, doc, s.progress)
	doc.Release()
	if err != nil {
		s.logger.Warn("invoice.session.recognition_failed", "req_id", common.RequestIDFromContext(ctx), "name", doc.Name, "outcome", outcome, "error", err)
		return View{}, s.finishStart(gen, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Info("invoice.session.superseded", "name", doc.Name)
		return View{}, common.Superseded()
	}
	s.cancel = nil
	s.products, s.providers = products, providers
	s.session = reconcile.New(res, s.products, s.matcher)
	s.sessionID = uuid.New()
	s.outcome = outcome

	v := s.view()
	s.logger.Info("invoice.session.started",
		"req_id", common.RequestIDFromContext(ctx),
		"session_id", s.sessionID,
		"name", doc.Name,
		"outcome", outcome,
		"path", res.Path,
		"items", len(v.Items),
		"band", v.Band,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return v, nil
}

// finishStart reports err for generation gen, or Superseded when a newer
// generation took over in the meantime.
func (s *Service) finishStart(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return common.Superseded()
	}
	s.cancel = nil
	return err
}

func (s *Service) loadCatalog(ctx context.Context) ([]entity.Product, []entity.Provider, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}
	providers, err := s.catalog.ListProviders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load providers: %w", err)
	}
	return products, providers, nil
}

// Current returns the session view, if there is a session.
func (s *Service) Current() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return View{}, false
	}
	return s.view(), true
}

// EditItem applies a field edit to item idx and re-matches it.
func (s *Service) EditItem(_ context.Context, idx int, edit reconcile.ItemEdit) (View, error) {
	return s.mutate(func(sess *reconcile.Session) error {
		return sess.EditItem(idx, edit, s.products)
	})
}

// RemoveItem deletes item idx.
func (s *Service) RemoveItem(_ context.Context, idx int) (View, error) {
	return s.mutate(func(sess *reconcile.Session) error {
		return sess.RemoveItem(idx)
	})
}

// EditHeader applies header edits.
func (s *Service) EditHeader(_ context.Context, edit reconcile.HeaderEdit) (View, error) {
	return s.mutate(func(sess *reconcile.Session) error {
		return sess.EditHeader(edit)
	})
}

// Resolve binds item idx. With CreateNew the product is created right away
// and joins the catalog snapshot; if creation fails the item stays marked
// create-new and the product is created on commit instead.
func (s *Service) Resolve(ctx context.Context, idx int, req ResolveRequest) (View, error) {
	if req.CreateNew == (req.ProductID != nil) {
		return View{}, common.InvalidInput("exactly one of product_id or create_new is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return View{}, common.NoSession()
	}

	if !req.CreateNew {
		if !s.knownProduct(*req.ProductID) {
			return s.view(), common.NotFound(fmt.Sprintf("product %s does not exist", *req.ProductID))
		}
		if err := s.session.Resolve(idx, reconcile.Binding{ProductID: *req.ProductID}); err != nil {
			return s.view(), err
		}
		return s.view(), nil
	}

	if err := s.session.Resolve(idx, reconcile.Binding{CreateNew: true}); err != nil {
		return s.view(), err
	}
	name := s.session.Snapshot().Items[idx].ProductName
	prod, err := s.createProduct(ctx, name, req)
	if err != nil {
		s.logger.Warn("invoice.product.create_deferred", "session_id", s.sessionID, "item", idx, "name", name, "error", err)
		return s.view(), nil
	}
	s.products = append(s.products, *prod)
	if err := s.session.Rebind(idx, *prod); err != nil {
		return s.view(), err
	}
	s.logger.Info("invoice.product.created", "session_id", s.sessionID, "item", idx, "product_id", prod.ID, "name", prod.Name)
	return s.view(), nil
}

func (s *Service) createProduct(ctx context.Context, name string, req ResolveRequest) (*entity.Product, error) {
	create := &repository.CreateProductRequest{Name: name, Unit: strings.TrimSpace(req.Unit)}
	if c := strings.TrimSpace(req.Category); c != "" {
		cat, err := s.catalog.EnsureCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		create.CategoryID = &cat.ID
	}
	return s.catalog.CreateProduct(ctx, create)
}

func (s *Service) knownProduct(id uuid.UUID) bool {
	for i := range s.products {
		if s.products[i].ID == id {
			return true
		}
	}
	return false
}

// Commit validates, binds the provider and persists the session. The mutex
// is held throughout so no edit can interleave with the write.
func (s *Service) Commit(ctx context.Context) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return CommitResult{}, common.NoSession()
	}

	if s.session.State() != reconcile.StateReady {
		if err := s.session.RequestCommit(s.providers); err != nil {
			s.logger.Info("invoice.commit.blocked", "session_id", s.sessionID, "state", s.session.State(), "error", err)
			return CommitResult{View: s.view()}, err
		}
	}

	rec, err := s.session.BeginCommit()
	if err != nil {
		return CommitResult{View: s.view()}, err
	}

	inv, err := s.invoices.CommitInvoice(ctx, commitRequest(rec))
	if err != nil {
		cerr := common.CommitFailed(err)
		_ = s.session.CommitFailed(cerr)
		s.logger.Error("invoice.commit.failed", "req_id", common.RequestIDFromContext(ctx), "session_id", s.sessionID, "error", err)
		return CommitResult{View: s.view()}, cerr
	}
	_ = s.session.CommitSucceeded()

	if products, providers, err := s.loadCatalog(ctx); err == nil {
		s.products, s.providers = products, providers
	} else {
		s.logger.Warn("catalog refresh after commit failed", "error", err)
	}

	s.logger.Info("invoice.commit.ok", "req_id", common.RequestIDFromContext(ctx), "session_id", s.sessionID, "invoice_id", inv.ID, "items", len(inv.Items))
	return CommitResult{Invoice: inv, View: s.view()}, nil
}

func commitRequest(rec reconcile.ReconciledInvoice) *repository.CommitInvoiceRequest {
	date, _ := time.Parse(time.DateOnly, rec.Header.InvoiceDate)
	req := &repository.CommitInvoiceRequest{
		InvoiceNumber:   rec.Header.InvoiceNumber,
		InvoiceDate:     date,
		ProviderName:    rec.Provider.Name,
		Subtotal:        rec.Header.Subtotal,
		Tax:             rec.Header.Tax,
		Total:           rec.Header.Total,
		OCRText:         rec.RawText,
		OCRConfidence:   rec.Confidence,
		RecognitionPath: rec.Path,
		Items:           make([]repository.CommitItem, 0, len(rec.Items)),
	}
	if rec.Provider.Provider != nil {
		id := rec.Provider.Provider.ID
		req.ProviderID = &id
		req.ProviderName = rec.Provider.Provider.Name
	} else if req.ProviderName == "" {
		req.ProviderName = UnknownProviderName
	}
	for _, it := range rec.Items {
		req.Items = append(req.Items, repository.CommitItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			CreateNew:   it.CreateNew,
		})
	}
	return req
}

// Discard drops the session and abandons any recognition in flight. It never
// fails.
func (s *Service) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.session != nil {
		s.logger.Info("invoice.session.discarded", "session_id", s.sessionID, "state", s.session.State())
	}
	s.dropSession()
}

// Products lists catalog products, filtered through the matcher when query
// is not blank.
func (s *Service) Products(ctx context.Context, query string) ([]entity.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return products, nil
	}
	byID := make(map[uuid.UUID]entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	var out []entity.Product
	for _, c := range s.matcher.Match(query, products) {
		out = append(out, byID[c.ProductID])
	}
	return out, nil
}

func (s *Service) mutate(fn func(*reconcile.Session) error) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return View{}, common.NoSession()
	}
	err := fn(s.session)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Info("invoice.session.rejected", "session_id", s.sessionID, "state", s.session.State(), "error", err)
	}
	return s.view(), err
}

// dropSession must be called with mu held.
func (s *Service) dropSession() {
	if s.session != nil {
		s.session.Discard()
	}
	s.session = nil
	s.sessionID = uuid.Nil
	s.outcome = ""
}

// view must be called with mu held and a session present.
func (s *Service) view() View {
	return View{
		SessionID: s.sessionID,
		Outcome:   s.outcome,
		Snapshot:  s.session.Snapshot(),
	}
}

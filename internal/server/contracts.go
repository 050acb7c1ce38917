package server

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
	"github.com/joseph-ayodele/invoice-intake/internal/reconcile"
	"github.com/joseph-ayodele/invoice-intake/internal/services/invoice"
)

// InvoiceService is the session surface both transports expose.
type InvoiceService interface {
	Start(ctx context.Context, doc recognition.Document) (invoice.View, error)
	Current() (invoice.View, bool)
	EditItem(ctx context.Context, idx int, edit reconcile.ItemEdit) (invoice.View, error)
	RemoveItem(ctx context.Context, idx int) (invoice.View, error)
	EditHeader(ctx context.Context, edit reconcile.HeaderEdit) (invoice.View, error)
	Resolve(ctx context.Context, idx int, req invoice.ResolveRequest) (invoice.View, error)
	Commit(ctx context.Context) (invoice.CommitResult, error)
	Discard()
	Products(ctx context.Context, query string) ([]entity.Product, error)
}

// Exporter produces the committed-invoice workbook.
type Exporter interface {
	ExportInvoicesXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// Pinger reports database health.
type Pinger func(ctx context.Context) error

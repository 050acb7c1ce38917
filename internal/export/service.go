package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/repository"
)

const (
	invoicesSheet = "Facturas"
	itemsSheet    = "Items"
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	invoices repository.InvoiceRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(invoices repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger, now: time.Now}
}

// ExportInvoicesXLSX returns a workbook of committed invoices and their items
// for the date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all invoices.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	fromDate, toDate := s.window(from, to)
	invs, err := s.invoices.ListInvoices(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := useSheet(f, invoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	writeHeader(f, invoicesSheet, []string{
		"Fecha", "Número", "Proveedor", "Subtotal", "Impuestos", "Total",
		"Estado", "Confianza OCR", "Vía", "Items",
	})
	writeHeader(f, itemsSheet, []string{
		"Fecha", "Número", "Proveedor", "Producto", "Cantidad", "Precio unitario", "Total", "Producto nuevo",
	})

	invRow, itemRow := 2, 2
	for _, inv := range invs {
		writeRow(f, invoicesSheet, invRow,
			inv.InvoiceDate.Format(time.DateOnly),
			inv.InvoiceNumber,
			inv.ProviderName,
			inv.Subtotal.InexactFloat64(),
			inv.Tax.InexactFloat64(),
			inv.Total.InexactFloat64(),
			string(inv.Status),
			inv.OCRConfidence,
			string(inv.RecognitionPath),
			len(inv.Items),
		)
		invRow++

		for _, it := range inv.Items {
			writeRow(f, itemsSheet, itemRow, itemCells(inv, it)...)
			itemRow++
		}
	}

	_ = f.SetColWidth(invoicesSheet, "A", "B", 14)
	_ = f.SetColWidth(invoicesSheet, "C", "C", 32) // provider
	_ = f.SetColWidth(invoicesSheet, "D", "F", 14) // amounts
	_ = f.SetColWidth(itemsSheet, "A", "C", 16)
	_ = f.SetColWidth(itemsSheet, "D", "D", 40) // product
	_ = f.SetColWidth(itemsSheet, "E", "G", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(invs),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// window normalizes the bounds to UTC dates; an open upper bound after a
// lower one means today.
func (s *Service) window(from, to *time.Time) (*time.Time, *time.Time) {
	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(s.now().UTC())
		toDate = &t
	}
	return fromDate, toDate
}

func itemCells(inv *entity.Invoice, it entity.InvoiceItem) []any {
	created := ""
	if it.CreatedNew {
		created = "sí"
	}
	return []any{
		inv.InvoiceDate.Format(time.DateOnly),
		inv.InvoiceNumber,
		inv.ProviderName,
		it.ProductName,
		it.Quantity.InexactFloat64(),
		it.UnitPrice.InexactFloat64(),
		it.TotalPrice.InexactFloat64(),
		created,
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// useSheet renames the default sheet to name and makes it active.
func useSheet(f *excelize.File, name string) error {
	if index, _ := f.GetSheetIndex(name); index == -1 {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return err
		}
	}
	activeIndex, _ := f.GetSheetIndex(name)
	f.SetActiveSheet(activeIndex)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	writeRow(f, sheet, 1, cells...)
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

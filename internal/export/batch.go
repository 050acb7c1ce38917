package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-intake/internal/confidence"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
)

const (
	batchSheet      = "Documentos"
	batchItemsSheet = "Items"
)

// BatchRow is the extraction outcome of one document in a batch run.
type BatchRow struct {
	Path    string
	Outcome recognition.Outcome
	Result  recognition.Result
	Err     error
}

// BatchReportXLSX writes one line per document and one line per extracted
// item. Nothing here is committed anywhere.
func BatchReportXLSX(rows []BatchRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := useSheet(f, batchSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(batchItemsSheet); err != nil {
		return nil, err
	}

	writeHeader(f, batchSheet, []string{
		"Archivo", "Resultado", "Vía", "Número", "Fecha", "Proveedor",
		"Subtotal", "Total", "Items", "Confianza", "Banda", "Avisos", "Error",
	})
	writeHeader(f, batchItemsSheet, []string{
		"Archivo", "Producto", "Cantidad", "Precio unitario", "Total",
	})

	itemRow := 2
	for i, r := range rows {
		row := i + 2
		if r.Err != nil {
			writeRow(f, batchSheet, row, r.Path, string(r.Outcome))
			cell, _ := excelize.CoordinatesToCellName(13, row)
			_ = f.SetCellValue(batchSheet, cell, truncate(r.Err.Error(), 200))
			continue
		}

		h := r.Result.Extraction.Header
		writeRow(f, batchSheet, row,
			r.Path,
			string(r.Outcome),
			string(r.Result.Path),
			h.InvoiceNumber,
			h.InvoiceDate,
			h.ProviderName,
			h.Subtotal.InexactFloat64(),
			h.Total.InexactFloat64(),
			len(r.Result.Extraction.Items),
			r.Result.Confidence,
			string(confidence.Classify(r.Result.Confidence)),
			truncate(strings.Join(r.Result.Warnings, "; "), 200),
		)

		for _, it := range r.Result.Extraction.Items {
			writeRow(f, batchItemsSheet, itemRow,
				r.Path,
				it.ProductName,
				it.Quantity.InexactFloat64(),
				it.UnitPrice.InexactFloat64(),
				it.TotalPrice.InexactFloat64(),
			)
			itemRow++
		}
	}

	_ = f.SetColWidth(batchSheet, "A", "A", 48) // path
	_ = f.SetColWidth(batchSheet, "F", "F", 32) // provider
	_ = f.SetColWidth(batchSheet, "L", "M", 48)
	_ = f.SetColWidth(batchItemsSheet, "A", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

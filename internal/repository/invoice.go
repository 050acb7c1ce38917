package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

// CommitItem is one reconciled line. A zero ProductID with CreateNew set
// creates the product inside the commit.
type CommitItem struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	CreateNew   bool
}

// CommitInvoiceRequest wraps parameters for committing a reconciled invoice.
type CommitInvoiceRequest struct {
	InvoiceNumber   string
	InvoiceDate     time.Time
	ProviderID      *uuid.UUID // nil: looked up by ProviderName, created when absent
	ProviderName    string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	OCRText         string
	OCRConfidence   float64
	RecognitionPath constants.RecognitionPath
	Items           []CommitItem
}

type InvoiceRepository interface {
	CommitInvoice(ctx context.Context, request *CommitInvoiceRequest) (*entity.Invoice, error)
	ListInvoices(ctx context.Context, fromDate, toDate *time.Time) ([]*entity.Invoice, error)
}

type invoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (req *CommitInvoiceRequest) validate() error {
	v := common.NewValidator().
		Field("invoice_number", req.InvoiceNumber, common.Required, common.MaxLen(64)).
		Field("items", len(req.Items), common.MinCount(1))
	if req.ProviderID == nil {
		v.Field("provider_name", req.ProviderName, common.Required, common.MaxLen(200))
	}
	if req.InvoiceDate.IsZero() {
		v.Field("invoice_date", "", common.Required)
	}
	for i, it := range req.Items {
		v.Field(fmt.Sprintf("items[%d].quantity", i), it.Quantity, common.PositiveDecimal).
			Field(fmt.Sprintf("items[%d].unit_price", i), it.UnitPrice, common.PositiveDecimal)
		if it.ProductID == uuid.Nil && !it.CreateNew {
			v.Field(fmt.Sprintf("items[%d].product_id", i), "", common.Required)
		}
	}
	return v.Error()
}

// CommitInvoice stores the invoice, its items, one IN stock movement per item,
// the stock increments and a CREATE_NEW discrepancy for every item that
// needed a new product. Everything happens in one transaction.
func (r *invoiceRepository) CommitInvoice(ctx context.Context, request *CommitInvoiceRequest) (*entity.Invoice, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}

	d := r.db.Dialect()
	inv := &entity.Invoice{
		ID:              uuid.New(),
		InvoiceNumber:   strings.TrimSpace(request.InvoiceNumber),
		InvoiceDate:     dateOf(request.InvoiceDate),
		ProviderName:    strings.TrimSpace(request.ProviderName),
		Subtotal:        request.Subtotal,
		Tax:             request.Tax,
		Total:           request.Total,
		Status:          constants.InvoiceStatusProcessed,
		OCRText:         request.OCRText,
		OCRConfidence:   request.OCRConfidence,
		RecognitionPath: request.RecognitionPath,
		CreatedAt:       now(),
	}

	err := withTx(ctx, r.db, func(tx dialect.Tx) error {
		providerID, err := r.resolveProvider(ctx, tx, d, request, inv)
		if err != nil {
			return err
		}
		inv.ProviderID = providerID

		ins := entsql.Dialect(d).Insert(InvoicesTable.Name).
			Columns("id", "invoice_number", "invoice_date", "subtotal", "tax", "total", "status",
				"ocr_text", "ocr_confidence", "recognition_path", "created_at", "provider_id").
			Values(inv.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.Subtotal, inv.Tax, inv.Total, string(inv.Status),
				nullString(inv.OCRText), inv.OCRConfidence, string(inv.RecognitionPath), inv.CreatedAt, inv.ProviderID)
		if err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}

		for pos, it := range request.Items {
			item, err := r.commitItem(ctx, tx, d, inv, pos, it)
			if err != nil {
				return fmt.Errorf("item %d: %w", pos, err)
			}
			inv.Items = append(inv.Items, item)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to commit invoice", "invoice_number", inv.InvoiceNumber, "error", err)
		return nil, err
	}

	r.logger.Info("invoice committed",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"provider_id", inv.ProviderID,
		"items", len(inv.Items),
	)
	return inv, nil
}

func (r *invoiceRepository) resolveProvider(ctx context.Context, tx dialect.Tx, d string, request *CommitInvoiceRequest, inv *entity.Invoice) (uuid.UUID, error) {
	if request.ProviderID != nil {
		p, err := findProviderByID(ctx, tx, d, *request.ProviderID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("find provider: %w", err)
		}
		if p == nil {
			return uuid.Nil, common.NotFound(fmt.Sprintf("provider %s does not exist", *request.ProviderID))
		}
		inv.ProviderName = p.Name
		return p.ID, nil
	}
	p, err := findProviderByName(ctx, tx, d, inv.ProviderName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find provider: %w", err)
	}
	if p == nil {
		if p, err = insertProvider(ctx, tx, d, inv.ProviderName); err != nil {
			return uuid.Nil, fmt.Errorf("create provider: %w", err)
		}
		r.logger.Info("provider created on commit", "provider_id", p.ID, "name", p.Name)
	}
	inv.ProviderName = p.Name
	return p.ID, nil
}

func (r *invoiceRepository) commitItem(ctx context.Context, tx dialect.Tx, d string, inv *entity.Invoice, pos int, it CommitItem) (entity.InvoiceItem, error) {
	b := entsql.Dialect(d)
	item := entity.InvoiceItem{
		ID:           uuid.New(),
		InvoiceID:    inv.ID,
		ProductID:    it.ProductID,
		ProductName:  strings.TrimSpace(it.ProductName),
		Quantity:     it.Quantity,
		UnitPrice:    it.UnitPrice,
		TotalPrice:   it.Quantity.Mul(it.UnitPrice),
		StockUpdated: true,
		CreatedNew:   it.CreateNew,
	}

	if item.ProductID == uuid.Nil {
		prod, err := insertProduct(ctx, tx, d, &CreateProductRequest{Name: item.ProductName, ProviderID: &inv.ProviderID})
		if err != nil {
			return item, fmt.Errorf("create product: %w", err)
		}
		item.ProductID = prod.ID
	}

	ins := b.Insert(InvoiceItemsTable.Name).
		Columns("id", "product_name", "quantity", "unit_price", "total_price", "stock_updated", "created_new", "position", "invoice_id", "product_id").
		Values(item.ID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice, item.StockUpdated, item.CreatedNew, pos, item.InvoiceID, item.ProductID)
	if err := exec(ctx, tx, ins); err != nil {
		return item, fmt.Errorf("insert item: %w", err)
	}

	mv := b.Insert(StockMovementsTable.Name).
		Columns("id", "type", "quantity", "created_at", "invoice_id", "product_id").
		Values(uuid.New(), string(constants.MovementIn), item.Quantity, inv.CreatedAt, inv.ID, item.ProductID)
	if err := exec(ctx, tx, mv); err != nil {
		return item, fmt.Errorf("insert stock movement: %w", err)
	}

	upd := b.Update(ProductsTable.Name).
		Add("current_stock", item.Quantity).
		Where(entsql.EQ("id", item.ProductID))
	stmt, args := upd.Query()
	var res sql.Result
	if err := tx.Exec(ctx, stmt, args, &res); err != nil {
		return item, fmt.Errorf("update stock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return item, common.NotFound(fmt.Sprintf("product %s does not exist", item.ProductID))
	}

	if it.CreateNew {
		dis := b.Insert(DiscrepanciesTable.Name).
			Columns("id", "product_name", "type", "created_at", "invoice_id", "product_id").
			Values(uuid.New(), item.ProductName, string(constants.DiscrepancyCreateNew), inv.CreatedAt, inv.ID, item.ProductID)
		if err := exec(ctx, tx, dis); err != nil {
			return item, fmt.Errorf("insert discrepancy: %w", err)
		}
	}
	return item, nil
}

func (r *invoiceRepository) ListInvoices(ctx context.Context, fromDate, toDate *time.Time) ([]*entity.Invoice, error) {
	d := r.db.Dialect()
	b := entsql.Dialect(d)
	i := b.Table(InvoicesTable.Name).As("i")
	p := b.Table(ProvidersTable.Name).As("p")
	sel := b.Select(
		i.C("id"), i.C("invoice_number"), i.C("invoice_date"), i.C("subtotal"), i.C("tax"), i.C("total"),
		i.C("status"), i.C("ocr_text"), i.C("ocr_confidence"), i.C("recognition_path"), i.C("created_at"),
		i.C("provider_id"), p.C("name"),
	).
		From(i).
		Join(p).On(i.C("provider_id"), p.C("id")).
		OrderBy(i.C("invoice_date"), i.C("invoice_number"))

	var preds []*entsql.Predicate
	if fromDate != nil {
		preds = append(preds, entsql.GTE(i.C("invoice_date"), dateOf(*fromDate)))
	}
	if toDate != nil {
		preds = append(preds, entsql.LTE(i.C("invoice_date"), dateOf(*toDate)))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}

	var out []*entity.Invoice
	var ids []any
	byID := map[uuid.UUID]*entity.Invoice{}
	err := query(ctx, r.db.Driver, sel, func(rows *entsql.Rows) error {
		var (
			inv     entity.Invoice
			status  string
			path    string
			ocrText sql.NullString
		)
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.Subtotal, &inv.Tax, &inv.Total,
			&status, &ocrText, &inv.OCRConfidence, &path, &inv.CreatedAt, &inv.ProviderID, &inv.ProviderName); err != nil {
			return err
		}
		inv.Status = constants.InvoiceStatus(status)
		inv.RecognitionPath = constants.RecognitionPath(path)
		inv.OCRText = ocrText.String
		out = append(out, &inv)
		byID[inv.ID] = &inv
		ids = append(ids, inv.ID)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list invoices", "error", err)
		return nil, common.WrapError(err, "list invoices")
	}
	if len(ids) == 0 {
		return out, nil
	}

	items := b.Select("id", "invoice_id", "product_id", "product_name", "quantity", "unit_price", "total_price", "stock_updated", "created_new").
		From(b.Table(InvoiceItemsTable.Name)).
		Where(entsql.In("invoice_id", ids...)).
		OrderBy("invoice_id", "position")
	err = query(ctx, r.db.Driver, items, func(rows *entsql.Rows) error {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice,
			&it.TotalPrice, &it.StockUpdated, &it.CreatedNew); err != nil {
			return err
		}
		inv, ok := byID[it.InvoiceID]
		if !ok {
			return errors.New("item references an invoice outside the result")
		}
		inv.Items = append(inv.Items, it)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list invoice items", "error", err)
		return nil, common.WrapError(err, "list invoice items")
	}
	return out, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

var (
	money    = map[string]string{dialect.Postgres: "numeric(14,2)"}
	quantity = map[string]string{dialect.Postgres: "numeric(14,3)"}
	dateOnly = map[string]string{dialect.Postgres: "date"}
	longText = map[string]string{dialect.Postgres: "text"}
)

var (
	// CategoriesColumns holds the columns for the "categories" table.
	CategoriesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Unique: true},
	}
	CategoriesTable = &schema.Table{
		Name:       "categories",
		Columns:    CategoriesColumns,
		PrimaryKey: []*schema.Column{CategoriesColumns[0]},
	}

	// ProvidersColumns holds the columns for the "providers" table.
	ProvidersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	ProvidersTable = &schema.Table{
		Name:       "providers",
		Columns:    ProvidersColumns,
		PrimaryKey: []*schema.Column{ProvidersColumns[0]},
	}

	// ProductsColumns holds the columns for the "products" table.
	ProductsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString},
		{Name: "unit", Type: field.TypeString},
		{Name: "current_stock", Type: field.TypeFloat64, SchemaType: quantity},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "category_id", Type: field.TypeUUID, Nullable: true},
		{Name: "provider_id", Type: field.TypeUUID, Nullable: true},
	}
	ProductsTable = &schema.Table{
		Name:       "products",
		Columns:    ProductsColumns,
		PrimaryKey: []*schema.Column{ProductsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "products_categories_products",
				Columns:    []*schema.Column{ProductsColumns[5]},
				RefColumns: []*schema.Column{CategoriesColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "products_providers_products",
				Columns:    []*schema.Column{ProductsColumns[6]},
				RefColumns: []*schema.Column{ProvidersColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "product_name", Unique: false, Columns: []*schema.Column{ProductsColumns[1]}},
		},
	}

	// InvoicesColumns holds the columns for the "invoices" table.
	InvoicesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "invoice_number", Type: field.TypeString},
		{Name: "invoice_date", Type: field.TypeTime, SchemaType: dateOnly},
		{Name: "subtotal", Type: field.TypeFloat64, SchemaType: money},
		{Name: "tax", Type: field.TypeFloat64, SchemaType: money},
		{Name: "total", Type: field.TypeFloat64, SchemaType: money},
		{Name: "status", Type: field.TypeString},
		{Name: "ocr_text", Type: field.TypeString, Nullable: true, SchemaType: longText},
		{Name: "ocr_confidence", Type: field.TypeFloat64},
		{Name: "recognition_path", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "provider_id", Type: field.TypeUUID},
	}
	InvoicesTable = &schema.Table{
		Name:       "invoices",
		Columns:    InvoicesColumns,
		PrimaryKey: []*schema.Column{InvoicesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "invoices_providers_invoices",
				Columns:    []*schema.Column{InvoicesColumns[11]},
				RefColumns: []*schema.Column{ProvidersColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "invoice_provider_id_invoice_number", Unique: true, Columns: []*schema.Column{InvoicesColumns[11], InvoicesColumns[1]}},
			{Name: "invoice_invoice_date", Unique: false, Columns: []*schema.Column{InvoicesColumns[2]}},
		},
	}

	// InvoiceItemsColumns holds the columns for the "invoice_items" table.
	InvoiceItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "product_name", Type: field.TypeString},
		{Name: "quantity", Type: field.TypeFloat64, SchemaType: quantity},
		{Name: "unit_price", Type: field.TypeFloat64, SchemaType: money},
		{Name: "total_price", Type: field.TypeFloat64, SchemaType: money},
		{Name: "stock_updated", Type: field.TypeBool},
		{Name: "created_new", Type: field.TypeBool},
		{Name: "position", Type: field.TypeInt},
		{Name: "invoice_id", Type: field.TypeUUID},
		{Name: "product_id", Type: field.TypeUUID},
	}
	InvoiceItemsTable = &schema.Table{
		Name:       "invoice_items",
		Columns:    InvoiceItemsColumns,
		PrimaryKey: []*schema.Column{InvoiceItemsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "invoice_items_invoices_items",
				Columns:    []*schema.Column{InvoiceItemsColumns[8]},
				RefColumns: []*schema.Column{InvoicesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "invoice_items_products_invoice_items",
				Columns:    []*schema.Column{InvoiceItemsColumns[9]},
				RefColumns: []*schema.Column{ProductsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}

	// StockMovementsColumns holds the columns for the "stock_movements" table.
	StockMovementsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "type", Type: field.TypeString},
		{Name: "quantity", Type: field.TypeFloat64, SchemaType: quantity},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "invoice_id", Type: field.TypeUUID},
		{Name: "product_id", Type: field.TypeUUID},
	}
	StockMovementsTable = &schema.Table{
		Name:       "stock_movements",
		Columns:    StockMovementsColumns,
		PrimaryKey: []*schema.Column{StockMovementsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "stock_movements_invoices_movements",
				Columns:    []*schema.Column{StockMovementsColumns[4]},
				RefColumns: []*schema.Column{InvoicesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "stock_movements_products_movements",
				Columns:    []*schema.Column{StockMovementsColumns[5]},
				RefColumns: []*schema.Column{ProductsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}

	// DiscrepanciesColumns holds the columns for the "discrepancies" table.
	DiscrepanciesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "product_name", Type: field.TypeString},
		{Name: "type", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "invoice_id", Type: field.TypeUUID},
		{Name: "product_id", Type: field.TypeUUID, Nullable: true},
	}
	DiscrepanciesTable = &schema.Table{
		Name:       "discrepancies",
		Columns:    DiscrepanciesColumns,
		PrimaryKey: []*schema.Column{DiscrepanciesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "discrepancies_invoices_discrepancies",
				Columns:    []*schema.Column{DiscrepanciesColumns[4]},
				RefColumns: []*schema.Column{InvoicesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "discrepancies_products_discrepancies",
				Columns:    []*schema.Column{DiscrepanciesColumns[5]},
				RefColumns: []*schema.Column{ProductsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
	}

	// Tables holds all the tables in the schema, parents first.
	Tables = []*schema.Table{
		CategoriesTable,
		ProvidersTable,
		ProductsTable,
		InvoicesTable,
		InvoiceItemsTable,
		StockMovementsTable,
		DiscrepanciesTable,
	}
)

func init() {
	ProductsTable.ForeignKeys[0].RefTable = CategoriesTable
	ProductsTable.ForeignKeys[1].RefTable = ProvidersTable
	InvoicesTable.ForeignKeys[0].RefTable = ProvidersTable
	InvoiceItemsTable.ForeignKeys[0].RefTable = InvoicesTable
	InvoiceItemsTable.ForeignKeys[1].RefTable = ProductsTable
	StockMovementsTable.ForeignKeys[0].RefTable = InvoicesTable
	StockMovementsTable.ForeignKeys[1].RefTable = ProductsTable
	DiscrepanciesTable.ForeignKeys[0].RefTable = InvoicesTable
	DiscrepanciesTable.ForeignKeys[1].RefTable = ProductsTable
}

// Migrate creates or updates the schema. It never drops columns or indexes.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema migrated", "tables", len(Tables))
	return nil
}

// SeedCategories makes sure every default category exists. Existing rows are
// left alone, so it is safe to run on every start.
func SeedCategories(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	catalog := NewCatalogRepository(db, logger)
	names := constants.AsStringSlice()
	for _, name := range names {
		if _, err := catalog.EnsureCategory(ctx, name); err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	logger.Info("categories seeded", "count", len(names))
	return nil
}

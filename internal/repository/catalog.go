package repository

import (
	"context"
	"database/sql"
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

const defaultUnit = "unidad"

// CreateProductRequest wraps parameters for creating a catalog product.
type CreateProductRequest struct {
	Name       string
	Unit       string
	CategoryID *uuid.UUID
	ProviderID *uuid.UUID
}

type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]entity.Product, error)
	CreateProduct(ctx context.Context, request *CreateProductRequest) (*entity.Product, error)
	ListProviders(ctx context.Context) ([]entity.Provider, error)
	CreateProvider(ctx context.Context, name string) (*entity.Provider, error)
	ListCategories(ctx context.Context) ([]entity.Category, error)
	EnsureCategory(ctx context.Context, name string) (*entity.Category, error)
}

type catalogRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCatalogRepository(db *DB, logger *slog.Logger) CatalogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &catalogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *catalogRepository) ListProducts(ctx context.Context) ([]entity.Product, error) {
	b := entsql.Dialect(r.db.Dialect())
	// Both sides carry an explicit alias so column references match the join.
	p := b.Table(ProductsTable.Name).As("p")
	c := b.Table(CategoriesTable.Name).As("c")
	sel := b.Select(
		p.C("id"), p.C("name"), p.C("unit"), p.C("current_stock"), p.C("created_at"),
		p.C("category_id"), p.C("provider_id"), c.C("name"),
	).
		From(p).
		LeftJoin(c).On(p.C("category_id"), c.C("id")).
		OrderBy(p.C("name"))

	var out []entity.Product
	err := query(ctx, r.db.Driver, sel, func(rows *entsql.Rows) error {
		var (
			prod       entity.Product
			categoryID uuid.NullUUID
			providerID uuid.NullUUID
			category   sql.NullString
		)
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Unit, &prod.CurrentStock, &prod.CreatedAt, &categoryID, &providerID, &category); err != nil {
			return err
		}
		if categoryID.Valid {
			prod.CategoryID = &categoryID.UUID
		}
		if providerID.Valid {
			prod.ProviderID = &providerID.UUID
		}
		prod.CategoryName = category.String
		out = append(out, prod)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list products", "error", err)
		return nil, common.WrapError(err, "list products")
	}
	return out, nil
}

func (r *catalogRepository) CreateProduct(ctx context.Context, request *CreateProductRequest) (*entity.Product, error) {
	v := common.NewValidator().
		Field("name", request.Name, common.Required, common.MaxLen(200))
	if err := v.Error(); err != nil {
		return nil, err
	}
	prod, err := insertProduct(ctx, r.db.Driver, r.db.Dialect(), request)
	if err != nil {
		r.logger.Error("failed to create product", "name", request.Name, "error", err)
		return nil, common.WrapError(err, "create product")
	}
	r.logger.Info("product created", "product_id", prod.ID, "name", prod.Name)
	return prod, nil
}

func (r *catalogRepository) ListProviders(ctx context.Context) ([]entity.Provider, error) {
	b := entsql.Dialect(r.db.Dialect())
	sel := b.Select("id", "name", "created_at").
		From(b.Table(ProvidersTable.Name)).
		OrderBy("created_at", "name")

	var out []entity.Provider
	err := query(ctx, r.db.Driver, sel, func(rows *entsql.Rows) error {
		var p entity.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list providers", "error", err)
		return nil, common.WrapError(err, "list providers")
	}
	return out, nil
}

func (r *catalogRepository) CreateProvider(ctx context.Context, name string) (*entity.Provider, error) {
	name = strings.TrimSpace(name)
	if err := common.NewValidator().Field("name", name, common.Required, common.MaxLen(200)).Error(); err != nil {
		return nil, err
	}
	p, err := insertProvider(ctx, r.db.Driver, r.db.Dialect(), name)
	if err != nil {
		r.logger.Error("failed to create provider", "name", name, "error", err)
		return nil, common.WrapError(err, "create provider")
	}
	r.logger.Info("provider created", "provider_id", p.ID, "name", p.Name)
	return p, nil
}

func (r *catalogRepository) ListCategories(ctx context.Context) ([]entity.Category, error) {
	b := entsql.Dialect(r.db.Dialect())
	sel := b.Select("id", "name").From(b.Table(CategoriesTable.Name)).OrderBy("name")

	var out []entity.Category
	err := query(ctx, r.db.Driver, sel, func(rows *entsql.Rows) error {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, common.WrapError(err, "list categories")
	}
	return out, nil
}

// EnsureCategory maps name onto a known category (synonyms included) and
// returns its row, creating it on first use.
func (r *catalogRepository) EnsureCategory(ctx context.Context, name string) (*entity.Category, error) {
	canonical, ok := constants.Canonicalize(name)
	if !ok {
		r.logger.Debug("category not recognized; using default", "input", name, "category", canonical)
	}

	b := entsql.Dialect(r.db.Dialect())
	sel := b.Select("id", "name").
		From(b.Table(CategoriesTable.Name)).
		Where(entsql.EQ("name", string(canonical)))

	var found *entity.Category
	err := query(ctx, r.db.Driver, sel, func(rows *entsql.Rows) error {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		found = &c
		return nil
	})
	if err != nil {
		return nil, common.WrapError(err, "find category")
	}
	if found != nil {
		return found, nil
	}

	c := &entity.Category{ID: uuid.New(), Name: string(canonical)}
	ins := b.Insert(CategoriesTable.Name).Columns("id", "name").Values(c.ID, c.Name)
	if err := exec(ctx, r.db.Driver, ins); err != nil {
		return nil, common.WrapError(err, "create category")
	}
	return c, nil
}

func insertProduct(ctx context.Context, ex dialect.ExecQuerier, d string, request *CreateProductRequest) (*entity.Product, error) {
	unit := strings.TrimSpace(request.Unit)
	if unit == "" {
		unit = defaultUnit
	}
	p := &entity.Product{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(request.Name),
		Unit:         unit,
		CategoryID:   request.CategoryID,
		ProviderID:   request.ProviderID,
		CurrentStock: decimal.Zero,
		CreatedAt:    now(),
	}
	ins := entsql.Dialect(d).Insert(ProductsTable.Name).
		Columns("id", "name", "unit", "current_stock", "created_at", "category_id", "provider_id").
		Values(p.ID, p.Name, p.Unit, p.CurrentStock, p.CreatedAt, nullUUID(p.CategoryID), nullUUID(p.ProviderID))
	if err := exec(ctx, ex, ins); err != nil {
		return nil, err
	}
	return p, nil
}

func insertProvider(ctx context.Context, ex dialect.ExecQuerier, d string, name string) (*entity.Provider, error) {
	p := &entity.Provider{ID: uuid.New(), Name: name, CreatedAt: now()}
	ins := entsql.Dialect(d).Insert(ProvidersTable.Name).
		Columns("id", "name", "created_at").
		Values(p.ID, p.Name, p.CreatedAt)
	if err := exec(ctx, ex, ins); err != nil {
		return nil, err
	}
	return p, nil
}

// findProviderByName matches case-insensitively; nil when absent.
func findProviderByName(ctx context.Context, ex dialect.ExecQuerier, d string, name string) (*entity.Provider, error) {
	return findProvider(ctx, ex, d, entsql.EqualFold("name", name))
}

// findProviderByID returns nil when no provider has id.
func findProviderByID(ctx context.Context, ex dialect.ExecQuerier, d string, id uuid.UUID) (*entity.Provider, error) {
	return findProvider(ctx, ex, d, entsql.EQ("id", id))
}

func findProvider(ctx context.Context, ex dialect.ExecQuerier, d string, where *entsql.Predicate) (*entity.Provider, error) {
	b := entsql.Dialect(d)
	sel := b.Select("id", "name", "created_at").
		From(b.Table(ProvidersTable.Name)).
		Where(where).
		Limit(1)
	var found *entity.Provider
	err := query(ctx, ex, sel, func(rows *entsql.Rows) error {
		var p entity.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return err
		}
		found = &p
		return nil
	})
	return found, err
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

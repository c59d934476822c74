package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

var (
	_ contractx.CatalogStore = (*PostgresStore)(nil)
	_ contractx.OrderStore   = (*PostgresStore)(nil)
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// PostgresStore implements both stores on one bun.DB handle.
type PostgresStore struct {
	db   *bun.DB
	opts options
}

func NewPostgresStore(db *bun.DB, opts ...Option) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{
		db:   db,
		opts: buildOptions(opts),
	}, nil
}

/* ------------------------------- Catalog -------------------------------- */

func (s *PostgresStore) CreateProduct(ctx context.Context, in models.NewProduct) (*models.Product, error) {
	now := s.opts.now().UTC()
	p := &models.Product{
		ID:          s.opts.newID(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.db.NewInsert().Model(p).Returning("*").Exec(ctx); err != nil {
		return nil, classify(err, fmt.Sprintf("create product %q", in.Name))
	}
	return p, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	p := new(models.Product)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(p).Where("p.id = ?", id).For("UPDATE").Scan(ctx); err != nil {
			return classify(err, fmt.Sprintf("product %q", id))
		}

		patch.Apply(p)
		p.UpdatedAt = s.opts.now().UTC()

		_, err := tx.NewUpdate().
			Model(p).
			Column("name", "description", "price", "stock", "image_url", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return classify(err, fmt.Sprintf("update product %q", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*models.Product)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return classify(err, fmt.Sprintf("delete product %q", id))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: product %q", contractx.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	p := new(models.Product)
	if err := s.db.NewSelect().Model(p).Where("p.id = ?", id).Scan(ctx); err != nil {
		return nil, classify(err, fmt.Sprintf("product %q", id))
	}
	return p, nil
}

func (s *PostgresStore) ProductByName(ctx context.Context, name string) (*models.Product, error) {
	p := new(models.Product)
	if err := s.db.NewSelect().Model(p).Where("p.name = ?", name).Limit(1).Scan(ctx); err != nil {
		return nil, classify(err, fmt.Sprintf("product named %q", name))
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := make([]models.Product, 0)
	if err := s.db.NewSelect().Model(&products).Order("p.name ASC").Scan(ctx); err != nil {
		return nil, classify(err, "list products")
	}
	return products, nil
}

/* -------------------------------- Orders -------------------------------- */

func (s *PostgresStore) CreateOrder(ctx context.Context, in models.NewOrder) (*models.Order, error) {
	order := &models.Order{
		ID:          s.opts.newID(),
		UserDetails: in.UserDetails,
		TotalPrice:  in.TotalPrice,
		CreatedAt:   s.opts.now().UTC(),
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		lines, err := resolveLines(ctx, tx, order.ID, in.Lines)
		if err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return classify(err, "insert order")
		}
		if len(lines) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
			return classify(err, "insert order lines")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orderByID(ctx, order.ID)
}

func (s *PostgresStore) LatestOrderForUser(ctx context.Context, userDetails string) (*models.Order, error) {
	o := new(models.Order)
	err := s.selectOrders(s.db, o).
		Where("o.user_details = ?", userDetails).
		OrderExpr("o.created_at DESC, o.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("order for %q", userDetails))
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	err := s.selectOrders(s.db, &orders).
		OrderExpr("o.created_at DESC, o.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, classify(err, "list orders")
	}
	return orders, nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(models.Order)
		if err := tx.NewSelect().Model(current).Where("o.id = ?", id).For("UPDATE").Scan(ctx); err != nil {
			return classify(err, fmt.Sprintf("order %q", id))
		}

		if patch.TotalPrice != nil {
			current.TotalPrice = *patch.TotalPrice
			if _, err := tx.NewUpdate().Model(current).Column("total_price").WherePK().Exec(ctx); err != nil {
				return classify(err, fmt.Sprintf("update order %q", id))
			}
		}

		if patch.Lines == nil {
			return nil
		}
		lines, err := resolveLines(ctx, tx, id, patch.Lines)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.OrderLine)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return classify(err, fmt.Sprintf("clear lines of order %q", id))
		}
		if len(lines) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
			return classify(err, fmt.Sprintf("insert lines of order %q", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orderByID(ctx, id)
}

func (s *PostgresStore) DeleteLatestOrderForUser(ctx context.Context, userDetails string) (bool, error) {
	deleted := false

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var id string
		err := tx.NewSelect().
			Model((*models.Order)(nil)).
			Column("o.id").
			Where("o.user_details = ?", userDetails).
			OrderExpr("o.created_at DESC, o.id DESC").
			Limit(1).
			For("UPDATE").
			Scan(ctx, &id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return classify(err, fmt.Sprintf("order for %q", userDetails))
		}

		// order_lines go with it through ON DELETE CASCADE
		if _, err := tx.NewDelete().Model((*models.Order)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return classify(err, fmt.Sprintf("delete order %q", id))
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *PostgresStore) orderByID(ctx context.Context, id string) (*models.Order, error) {
	o := new(models.Order)
	if err := s.selectOrders(s.db, o).Where("o.id = ?", id).Scan(ctx); err != nil {
		return nil, classify(err, fmt.Sprintf("order %q", id))
	}
	return o, nil
}

func (s *PostgresStore) selectOrders(db bun.IDB, model any) *bun.SelectQuery {
	return db.NewSelect().
		Model(model).
		Relation("Lines").
		Relation("Lines.Product")
}

// resolveLines maps product names to ids inside tx. Any unknown name aborts the transaction.
func resolveLines(ctx context.Context, tx bun.Tx, orderID string, reqs []models.LineRequest) ([]*models.OrderLine, error) {
	merged := models.MergeLines(reqs)
	if len(merged) == 0 {
		return []*models.OrderLine{}, nil
	}

	names := make([]string, 0, len(merged))
	for _, r := range merged {
		names = append(names, r.ProductName)
	}

	var products []models.Product
	err := tx.NewSelect().
		Model(&products).
		Column("p.id", "p.name").
		Where("p.name IN (?)", bun.In(names)).
		For("SHARE").
		Scan(ctx)
	if err != nil {
		return nil, classify(err, "resolve order products")
	}

	byName := make(map[string]string, len(products))
	for _, p := range products {
		byName[p.Name] = p.ID
	}

	lines := make([]*models.OrderLine, 0, len(merged))
	for _, r := range merged {
		productID, ok := byName[r.ProductName]
		if !ok {
			return nil, fmt.Errorf("%w: product named %q", contractx.ErrNotFound, r.ProductName)
		}
		lines = append(lines, &models.OrderLine{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  r.Quantity,
		})
	}
	return lines, nil
}

// classify maps driver errors onto the store error taxonomy.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contractx.ErrNotFound) || errors.Is(err, contractx.ErrConflict) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", contractx.ErrNotFound, what)
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %s: %s", contractx.ErrConflict, what, uniqueViolationDetail(pgErr))
		case sqlStateForeignKeyViolation:
			return fmt.Errorf("%w: %s: referenced entity is gone", contractx.ErrNotFound, what)
		}
	}
	return fmt.Errorf("%w: %s: %v", contractx.ErrStore, what, err)
}

func uniqueViolationDetail(pgErr pgdriver.Error) string {
	if detail := pgErr.Field('D'); detail != "" {
		return detail
	}
	return "value already exists"
}

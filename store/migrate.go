package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

// Migrate creates the commerce tables and indexes when they are missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	logger := zerolog.Ctx(ctx)

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*models.Product)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create products table: %w", err)
		}

		if _, err := tx.NewCreateTable().
			Model((*models.Order)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create orders table: %w", err)
		}

		if _, err := tx.NewCreateIndex().
			Model((*models.Order)(nil)).
			Index("orders_user_details_created_at_idx").
			Column("user_details", "created_at").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create orders user index: %w", err)
		}

		if _, err := tx.NewCreateTable().
			Model((*models.OrderLine)(nil)).
			IfNotExists().
			ForeignKey(`("order_id") REFERENCES "orders" ("id") ON DELETE CASCADE`).
			ForeignKey(`("product_id") REFERENCES "products" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return fmt.Errorf("create order_lines table: %w", err)
		}

		logger.Info().Str("component", "store").Msg("schema is up to date")
		return nil
	})
}

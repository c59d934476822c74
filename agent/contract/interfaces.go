package contract

import (
	"context"

	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

// CatalogStore owns products. Lookups of absent products return ErrNotFound;
// a name collision on create or rename returns ErrConflict.
type CatalogStore interface {
	CreateProduct(ctx context.Context, in models.NewProduct) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	ProductByName(ctx context.Context, name string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// OrderStore owns orders and their lines. CreateOrder and UpdateOrder are atomic:
// an unknown product name aborts the whole write with ErrNotFound.
type OrderStore interface {
	CreateOrder(ctx context.Context, in models.NewOrder) (*models.Order, error)
	LatestOrderForUser(ctx context.Context, userDetails string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)
	// DeleteLatestOrderForUser reports false, nil when the user has no order.
	DeleteLatestOrderForUser(ctx context.Context, userDetails string) (bool, error)
}

// Dispatcher is the single entry point for tool invocations.
type Dispatcher interface {
	Dispatch(ctx context.Context, tool string, args map[string]any, caller CallerContext) Envelope
}

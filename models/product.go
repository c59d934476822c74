package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

func init() {
	// Prices travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. Name is unique across the catalog.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p" json:"-"`

	ID          string          `bun:"id,pk" json:"id" validate:"required"`
	Name        string          `bun:"name,notnull,unique" json:"name" validate:"required"`
	Description *string         `bun:"description" json:"description"`
	Price       decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price" validate:"gte=0"`
	Stock       *int            `bun:"stock" json:"stock" validate:"omitempty,gte=0"`
	ImageURL    string          `bun:"image_url,notnull" json:"imageUrl" validate:"required"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// NewProduct holds the fields supplied when a product is created.
type NewProduct struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       *int
	ImageURL    string
}

// ProductPatch is a partial update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Stock == nil && p.ImageURL == nil
}

// Apply copies the set fields of the patch onto p.
func (p ProductPatch) Apply(dst *Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = p.Description
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Stock != nil {
		dst.Stock = p.Stock
	}
	if p.ImageURL != nil {
		dst.ImageURL = *p.ImageURL
	}
}

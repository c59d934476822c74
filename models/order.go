package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order belongs to the caller identified by UserDetails. A user may hold many orders.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o" json:"-"`

	ID          string          `bun:"id,pk" json:"id" validate:"required"`
	UserDetails string          `bun:"user_details,notnull" json:"userDetails" validate:"required"`
	TotalPrice  decimal.Decimal `bun:"total_price,type:numeric(12,2),notnull" json:"totalPrice" validate:"gte=0"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Lines []*OrderLine `bun:"rel:has-many,join:id=order_id" json:"orderLines" validate:"dive,required"`
}

// OrderLine links an order to one product with a quantity.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines,alias:ol" json:"-"`

	OrderID   string `bun:"order_id,pk" json:"orderId" validate:"required"`
	ProductID string `bun:"product_id,pk" json:"productId" validate:"required"`
	Quantity  int    `bun:"quantity,notnull" json:"quantity" validate:"gte=1"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
}

// LineRequest names a product by its unique name.
type LineRequest struct {
	ProductName string
	Quantity    int
}

type NewOrder struct {
	UserDetails string
	TotalPrice  decimal.Decimal
	Lines       []LineRequest
}

// OrderPatch updates an order in place. A nil Lines keeps the current lines;
// a non-nil Lines replaces them.
type OrderPatch struct {
	TotalPrice *decimal.Decimal
	Lines      []LineRequest
}

func (p OrderPatch) Empty() bool {
	return p.TotalPrice == nil && p.Lines == nil
}

// MergeLines folds repeated product names into one line each, keeping first-seen order.
func MergeLines(lines []LineRequest) []LineRequest {
	out := make([]LineRequest, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductName]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductName] = len(out)
		out = append(out, l)
	}
	return out
}

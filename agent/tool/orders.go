package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

const (
	orderDeletedMessage       = "Order deleted successfully"
	orderAlreadyAbsentMessage = "Order already absent"
)

type OrderLineInput struct {
	ProductName string `json:"productName" validate:"required,notblank"`
	Quantity    *int   `json:"quantity" validate:"required,min=1"`
}

type CreateOrderInput struct {
	UserDetails string           `json:"userDetails" validate:"required,notblank"`
	TotalPrice  *float64         `json:"totalPrice" validate:"required,gte=0,lte=9999999999.99"`
	OrderLines  []OrderLineInput `json:"orderLines" validate:"required,min=1,dive"`
}

func (in CreateOrderInput) NewOrder() models.NewOrder {
	return models.NewOrder{
		UserDetails: strings.TrimSpace(in.UserDetails),
		TotalPrice:  money(*in.TotalPrice),
		Lines:       lineRequests(in.OrderLines),
	}
}

// UpdateOrderInput backs PATCH /orders/{id}. A present orderLines replaces every line.
type UpdateOrderInput struct {
	ID         string           `json:"id" validate:"required,notblank"`
	TotalPrice *float64         `json:"totalPrice,omitempty" validate:"omitnil,gte=0,lte=9999999999.99"`
	OrderLines []OrderLineInput `json:"orderLines,omitempty" validate:"omitnil,min=1,dive"`
}

func (in UpdateOrderInput) Validate() error {
	if in.Patch().Empty() {
		return contractx.NewValidationError(contractx.FieldError{
			Rule:    "min_fields",
			Message: "at least one of totalPrice, orderLines must be provided",
		})
	}
	return nil
}

func (in UpdateOrderInput) Patch() models.OrderPatch {
	var patch models.OrderPatch
	if in.TotalPrice != nil {
		total := money(*in.TotalPrice)
		patch.TotalPrice = &total
	}
	if in.OrderLines != nil {
		patch.Lines = lineRequests(in.OrderLines)
	}
	return patch
}

type UserDetailsInput struct {
	UserDetails string `json:"userDetails" validate:"required,notblank"`
}

type IDResult struct {
	ID string `json:"id" validate:"required,uuid"`
}

// OrderLookup is the result of a lookup; Order is null when the user has none.
type OrderLookup struct {
	Order *models.Order `json:"order"`
}

type OrderMutation struct {
	Success bool          `json:"success"`
	Order   *models.Order `json:"order" validate:"required"`
}

type OrderList struct {
	Orders []models.Order `json:"orders" validate:"required,dive"`
}

func GenerateIDTool() *Tool {
	return New(ToolGenerateID,
		"Generate a random UUID.",
		contractx.PrivilegeStandard,
		nil,
		func(_ context.Context, _ EmptyInput) (IDResult, error) {
			return IDResult{ID: uuid.NewString()}, nil
		},
	)
}

func OrderTools(orders contractx.OrderStore) []*Tool {
	return []*Tool{
		New(ToolCreateOrder,
			"Create an order for a user. Every line names an existing product; if any product is unknown nothing is written. totalPrice is rounded to 2 decimal places.",
			contractx.PrivilegeStandard,
			map[string]*schema.ParameterInfo{
				"userDetails": {Type: schema.String, Desc: "Caller identity, usually a phone number", Required: true},
				"totalPrice":  {Type: schema.Number, Desc: "Order total from 0 to 9999999999.99, rounded to 2 decimal places", Required: true},
				"orderLines": {
					Type:     schema.Array,
					Desc:     "At least one line",
					Required: true,
					ElemInfo: &schema.ParameterInfo{
						Type: schema.Object,
						SubParams: map[string]*schema.ParameterInfo{
							"productName": {Type: schema.String, Desc: "Exact product name", Required: true},
							"quantity":    {Type: schema.Integer, Desc: "Units, one or more", Required: true},
						},
					},
				},
			},
			func(ctx context.Context, in CreateOrderInput) (OrderMutation, error) {
				o, err := orders.CreateOrder(ctx, in.NewOrder())
				if err != nil {
					return OrderMutation{}, err
				}
				return OrderMutation{Success: true, Order: o}, nil
			},
		),
		New(ToolGetOrder,
			"Fetch the most recent order of a user. Returns order=null when the user has none.",
			contractx.PrivilegeStandard,
			userDetailsParams(),
			func(ctx context.Context, in UserDetailsInput) (OrderLookup, error) {
				o, err := orders.LatestOrderForUser(ctx, strings.TrimSpace(in.UserDetails))
				if errors.Is(err, contractx.ErrNotFound) {
					return OrderLookup{}, nil
				}
				if err != nil {
					return OrderLookup{}, err
				}
				return OrderLookup{Order: o}, nil
			},
		),
		New(ToolListOrders,
			"List every order, newest first.",
			contractx.PrivilegeStandard,
			nil,
			func(ctx context.Context, _ EmptyInput) (OrderList, error) {
				all, err := orders.ListOrders(ctx)
				if err != nil {
					return OrderList{}, err
				}
				return OrderList{Orders: all}, nil
			},
		),
		New(ToolDeleteOrder,
			"Delete the most recent order of a user. Deleting when there is no order succeeds and says so.",
			contractx.PrivilegeStandard,
			userDetailsParams(),
			func(ctx context.Context, in UserDetailsInput) (DeletionResult, error) {
				deleted, err := orders.DeleteLatestOrderForUser(ctx, strings.TrimSpace(in.UserDetails))
				if err != nil {
					return DeletionResult{}, err
				}
				if !deleted {
					return DeletionResult{Success: true, Message: orderAlreadyAbsentMessage}, nil
				}
				return DeletionResult{Success: true, Message: orderDeletedMessage}, nil
			},
		),
	}
}

func userDetailsParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"userDetails": {Type: schema.String, Desc: "Caller identity, usually a phone number", Required: true},
	}
}

func lineRequests(lines []OrderLineInput) []models.LineRequest {
	out := make([]models.LineRequest, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.LineRequest{
			ProductName: strings.TrimSpace(l.ProductName),
			Quantity:    *l.Quantity,
		})
	}
	return out
}

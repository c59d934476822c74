package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

const productDeletedMessage = "Product deleted successfully"

type CreateProductInput struct {
	Name        string   `json:"name" validate:"required,notblank,trimmin=2"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price" validate:"required,gte=0,lte=9999999999.99"`
	Stock       *int     `json:"stock,omitempty" validate:"omitnil,gte=0"`
	ImageURL    string   `json:"imageUrl" validate:"required,url"`
}

func (in CreateProductInput) NewProduct() models.NewProduct {
	return models.NewProduct{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       money(*in.Price),
		Stock:       in.Stock,
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
}

type UpdateProductInput struct {
	ID          string   `json:"id" validate:"required,notblank"`
	Name        *string  `json:"name,omitempty" validate:"omitnil,notblank,trimmin=2"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitnil,gte=0,lte=9999999999.99"`
	Stock       *int     `json:"stock,omitempty" validate:"omitnil,gte=0"`
	ImageURL    *string  `json:"imageUrl,omitempty" validate:"omitnil,url"`
}

// Validate requires at least one field to change.
func (in UpdateProductInput) Validate() error {
	if in.Patch().Empty() {
		return contractx.NewValidationError(contractx.FieldError{
			Rule:    "min_fields",
			Message: "at least one of name, description, price, stock, imageUrl must be provided",
		})
	}
	return nil
}

func (in UpdateProductInput) Patch() models.ProductPatch {
	patch := models.ProductPatch{
		Description: in.Description,
		Stock:       in.Stock,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		patch.Name = &name
	}
	if in.Price != nil {
		price := money(*in.Price)
		patch.Price = &price
	}
	if in.ImageURL != nil {
		url := strings.TrimSpace(*in.ImageURL)
		patch.ImageURL = &url
	}
	return patch
}

type ProductIDInput struct {
	ID string `json:"id" validate:"required,notblank"`
}

type ProductNameInput struct {
	Name string `json:"name" validate:"required,notblank"`
}

type EmptyInput struct{}

// ProductLookup is the result of a lookup; Product is null when nothing matched.
type ProductLookup struct {
	Product *models.Product `json:"product"`
}

type ProductMutation struct {
	Success bool            `json:"success"`
	Product *models.Product `json:"product" validate:"required"`
}

type ProductList struct {
	Products []models.Product `json:"products" validate:"required,dive"`
}

type DeletionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message" validate:"required"`
}

func CatalogTools(catalog contractx.CatalogStore) []*Tool {
	return []*Tool{
		New(ToolGetProductByName,
			"Fetch one product by its exact name. Returns product=null when no product has that name.",
			contractx.PrivilegeStandard,
			map[string]*schema.ParameterInfo{
				"name": {Type: schema.String, Desc: "Exact product name", Required: true},
			},
			func(ctx context.Context, in ProductNameInput) (ProductLookup, error) {
				return lookupProduct(catalog.ProductByName(ctx, strings.TrimSpace(in.Name)))
			},
		),
		New(ToolGetProductByID,
			"Fetch one product by its id. Returns product=null when the id is unknown.",
			contractx.PrivilegeStandard,
			map[string]*schema.ParameterInfo{
				"id": {Type: schema.String, Desc: "Product id", Required: true},
			},
			func(ctx context.Context, in ProductIDInput) (ProductLookup, error) {
				return lookupProduct(catalog.ProductByID(ctx, strings.TrimSpace(in.ID)))
			},
		),
		New(ToolListProducts,
			"List every product in the catalog.",
			contractx.PrivilegeStandard,
			nil,
			func(ctx context.Context, _ EmptyInput) (ProductList, error) {
				products, err := catalog.ListProducts(ctx)
				if err != nil {
					return ProductList{}, err
				}
				return ProductList{Products: products}, nil
			},
		),
		New(ToolCreateProduct,
			"Create a catalog product. Requires elevated privilege. Product names are unique. Prices are rounded to 2 decimal places.",
			contractx.PrivilegeElevated,
			productParams(true),
			func(ctx context.Context, in CreateProductInput) (ProductMutation, error) {
				p, err := catalog.CreateProduct(ctx, in.NewProduct())
				if err != nil {
					return ProductMutation{}, err
				}
				return ProductMutation{Success: true, Product: p}, nil
			},
		),
		New(ToolUpdateProduct,
			"Update some fields of a product by id. Requires elevated privilege. Prices are rounded to 2 decimal places.",
			contractx.PrivilegeElevated,
			withParam(productParams(false), "id", &schema.ParameterInfo{Type: schema.String, Desc: "Product id", Required: true}),
			func(ctx context.Context, in UpdateProductInput) (ProductMutation, error) {
				p, err := catalog.UpdateProduct(ctx, strings.TrimSpace(in.ID), in.Patch())
				if err != nil {
					return ProductMutation{}, err
				}
				return ProductMutation{Success: true, Product: p}, nil
			},
		),
		New(ToolDeleteProduct,
			"Permanently delete a product by id, together with the order lines that reference it. Requires elevated privilege.",
			contractx.PrivilegeElevated,
			map[string]*schema.ParameterInfo{
				"id": {Type: schema.String, Desc: "Product id", Required: true},
			},
			func(ctx context.Context, in ProductIDInput) (DeletionResult, error) {
				if err := catalog.DeleteProduct(ctx, strings.TrimSpace(in.ID)); err != nil {
					return DeletionResult{}, err
				}
				return DeletionResult{Success: true, Message: productDeletedMessage}, nil
			},
		),
	}
}

func productParams(create bool) map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"name":        {Type: schema.String, Desc: "Unique product name, at least 2 characters after trimming", Required: create},
		"description": {Type: schema.String, Desc: "Free-text description"},
		"price":       {Type: schema.Number, Desc: "Unit price from 0 to 9999999999.99, rounded to 2 decimal places", Required: create},
		"stock":       {Type: schema.Integer, Desc: "Units in stock, zero or more"},
		"imageUrl":    {Type: schema.String, Desc: "Absolute URL of the product image", Required: create},
	}
}

func withParam(params map[string]*schema.ParameterInfo, name string, p *schema.ParameterInfo) map[string]*schema.ParameterInfo {
	params[name] = p
	return params
}

func lookupProduct(p *models.Product, err error) (ProductLookup, error) {
	if errors.Is(err, contractx.ErrNotFound) {
		return ProductLookup{}, nil
	}
	if err != nil {
		return ProductLookup{}, err
	}
	return ProductLookup{Product: p}, nil
}

// money keeps two decimal places, matching the numeric(12,2) columns.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

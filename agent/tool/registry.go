package tool

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
)

const (
	ToolGenerateID       = "generate-id"
	ToolCreateOrder      = "create-order"
	ToolGetOrder         = "get-order"
	ToolListOrders       = "list-orders"
	ToolDeleteOrder      = "delete-order"
	ToolGetProductByName = "get-product-by-name"
	ToolGetProductByID   = "get-product-by-id"
	ToolListProducts     = "list-products"
	ToolCreateProduct    = "create-product"
	ToolUpdateProduct    = "update-product"
	ToolDeleteProduct    = "delete-product"
)

// Registry is the fixed name -> tool table. It is immutable after construction.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]*Tool, len(tools)),
		order: make([]string, 0, len(tools)),
	}
	for _, t := range tools {
		if t == nil || t.Name == "" {
			return nil, fmt.Errorf("registry: tool without a name")
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate tool %q", t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// NewCommerceRegistry registers every catalog and order tool against the given stores.
func NewCommerceRegistry(catalog contractx.CatalogStore, orders contractx.OrderStore) (*Registry, error) {
	if catalog == nil || orders == nil {
		return nil, fmt.Errorf("registry: catalog and order stores are required")
	}

	tools := []*Tool{GenerateIDTool()}
	tools = append(tools, OrderTools(orders)...)
	tools = append(tools, CatalogTools(catalog)...)
	return NewRegistry(tools...)
}

func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Info())
	}
	return out
}

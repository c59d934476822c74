package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

var (
	_ contractx.CatalogStore = (*MemoryStore)(nil)
	_ contractx.OrderStore   = (*MemoryStore)(nil)
)

// MemoryStore keeps the catalog and orders in process memory.
// Every write holds the lock for its whole duration, so multi-entity writes are atomic.
type MemoryStore struct {
	mu sync.RWMutex

	products    map[string]models.Product
	productName map[string]string // name -> id
	orders      map[string]*models.Order

	opts options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		products:    make(map[string]models.Product),
		productName: make(map[string]string),
		orders:      make(map[string]*models.Order),
		opts:        buildOptions(opts),
	}
}

/* ------------------------------- Catalog -------------------------------- */

func (s *MemoryStore) CreateProduct(ctx context.Context, in models.NewProduct) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.productName[in.Name]; taken {
		return nil, fmt.Errorf("%w: product name %q already exists", contractx.ErrConflict, in.Name)
	}

	now := s.opts.now().UTC()
	p := models.Product{
		ID:          s.opts.newID(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.products[p.ID] = p
	s.productName[p.Name] = p.ID

	return cloneProduct(p), nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %q", contractx.ErrNotFound, id)
	}
	if patch.Name != nil && *patch.Name != p.Name {
		if _, taken := s.productName[*patch.Name]; taken {
			return nil, fmt.Errorf("%w: product name %q already exists", contractx.ErrConflict, *patch.Name)
		}
	}

	oldName := p.Name
	patch.Apply(&p)
	p.UpdatedAt = s.opts.now().UTC()

	delete(s.productName, oldName)
	s.productName[p.Name] = p.ID
	s.products[id] = p

	return cloneProduct(p), nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: product %q", contractx.ErrNotFound, id)
	}
	delete(s.products, id)
	delete(s.productName, p.Name)

	// cascade to order lines
	for _, o := range s.orders {
		kept := o.Lines[:0]
		for _, l := range o.Lines {
			if l.ProductID != id {
				kept = append(kept, l)
			}
		}
		o.Lines = kept
	}
	return nil
}

func (s *MemoryStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %q", contractx.ErrNotFound, id)
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) ProductByName(ctx context.Context, name string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productName[name]
	if !ok {
		return nil, fmt.Errorf("%w: product named %q", contractx.ErrNotFound, name)
	}
	return cloneProduct(s.products[id]), nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

/* -------------------------------- Orders -------------------------------- */

func (s *MemoryStore) CreateOrder(ctx context.Context, in models.NewOrder) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orderID := s.opts.newID()
	lines, err := s.resolveLines(orderID, in.Lines)
	if err != nil {
		return nil, err
	}

	o := &models.Order{
		ID:          orderID,
		UserDetails: in.UserDetails,
		TotalPrice:  in.TotalPrice,
		CreatedAt:   s.opts.now().UTC(),
		Lines:       lines,
	}
	s.orders[o.ID] = o

	return s.hydrate(o), nil
}

func (s *MemoryStore) LatestOrderForUser(ctx context.Context, userDetails string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := s.latestFor(userDetails)
	if o == nil {
		return nil, fmt.Errorf("%w: no order for %q", contractx.ErrNotFound, userDetails)
	}
	return s.hydrate(o), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		all = append(all, o)
	}
	sortNewestFirst(all)

	out := make([]models.Order, 0, len(all))
	for _, o := range all {
		out = append(out, *s.hydrate(o))
	}
	return out, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %q", contractx.ErrNotFound, id)
	}

	// resolve before touching the order so a bad name leaves it unchanged
	var lines []*models.OrderLine
	if patch.Lines != nil {
		resolved, err := s.resolveLines(o.ID, patch.Lines)
		if err != nil {
			return nil, err
		}
		lines = resolved
	}

	if patch.TotalPrice != nil {
		o.TotalPrice = *patch.TotalPrice
	}
	if patch.Lines != nil {
		o.Lines = lines
	}
	return s.hydrate(o), nil
}

func (s *MemoryStore) DeleteLatestOrderForUser(ctx context.Context, userDetails string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.latestFor(userDetails)
	if o == nil {
		return false, nil
	}
	delete(s.orders, o.ID)
	return true, nil
}

// resolveLines must run under the write lock.
func (s *MemoryStore) resolveLines(orderID string, reqs []models.LineRequest) ([]*models.OrderLine, error) {
	merged := models.MergeLines(reqs)
	lines := make([]*models.OrderLine, 0, len(merged))
	for _, r := range merged {
		productID, ok := s.productName[r.ProductName]
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

func (s *MemoryStore) latestFor(userDetails string) *models.Order {
	var matches []*models.Order
	for _, o := range s.orders {
		if o.UserDetails == userDetails {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sortNewestFirst(matches)
	return matches[0]
}

// hydrate returns a deep copy of o with each line's product attached.
func (s *MemoryStore) hydrate(o *models.Order) *models.Order {
	out := *o
	out.Lines = make([]*models.OrderLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		line := *l
		if p, ok := s.products[l.ProductID]; ok {
			line.Product = cloneProduct(p)
		}
		out.Lines = append(out.Lines, &line)
	}
	return &out
}

func sortNewestFirst(orders []*models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

func cloneProduct(p models.Product) *models.Product {
	out := p
	if p.Description != nil {
		d := *p.Description
		out.Description = &d
	}
	if p.Stock != nil {
		st := *p.Stock
		out.Stock = &st
	}
	return &out
}

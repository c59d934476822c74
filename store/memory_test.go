package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/models"
)

// steppingClock advances one second per call so orders get distinct timestamps.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(WithClock(steppingClock()))
}

func seedProduct(t *testing.T, s *MemoryStore, name string) *models.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), models.NewProduct{
		Name:     name,
		Price:    decimal.RequireFromString("10.50"),
		ImageURL: "https://img.example.com/" + name + ".png",
	})
	require.NoError(t, err)
	return p
}

func TestMemoryStoreProductNameIsUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "Widget")

	_, err := s.CreateProduct(ctx, models.NewProduct{Name: "Widget", ImageURL: "https://x.io/w.png"})
	require.ErrorIs(t, err, contractx.ErrConflict)

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestMemoryStoreRenameCollision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "Widget")
	gadget := seedProduct(t, s, "Gadget")

	taken := "Widget"
	_, err := s.UpdateProduct(ctx, gadget.ID, models.ProductPatch{Name: &taken})
	require.ErrorIs(t, err, contractx.ErrConflict)

	renamed := "Gizmo"
	updated, err := s.UpdateProduct(ctx, gadget.ID, models.ProductPatch{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Gizmo", updated.Name)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = s.ProductByName(ctx, "Gadget")
	require.ErrorIs(t, err, contractx.ErrNotFound)

	byName, err := s.ProductByName(ctx, "Gizmo")
	require.NoError(t, err)
	assert.Equal(t, gadget.ID, byName.ID)
}

func TestMemoryStoreCreateOrderIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "A")

	_, err := s.CreateOrder(ctx, models.NewOrder{
		UserDetails: "u1",
		TotalPrice:  decimal.NewFromInt(10),
		Lines: []models.LineRequest{
			{ProductName: "A", Quantity: 1},
			{ProductName: "Missing", Quantity: 1},
		},
	})
	require.ErrorIs(t, err, contractx.ErrNotFound)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = s.LatestOrderForUser(ctx, "u1")
	require.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestMemoryStoreCreateOrderMergesRepeatedNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	a := seedProduct(t, s, "A")

	o, err := s.CreateOrder(ctx, models.NewOrder{
		UserDetails: "u1",
		TotalPrice:  decimal.RequireFromString("31.50"),
		Lines: []models.LineRequest{
			{ProductName: "A", Quantity: 1},
			{ProductName: "A", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 3, o.Lines[0].Quantity)
	assert.Equal(t, a.ID, o.Lines[0].ProductID)
	require.NotNil(t, o.Lines[0].Product)
	assert.Equal(t, "A", o.Lines[0].Product.Name)
	assert.True(t, decimal.RequireFromString("31.5").Equal(o.TotalPrice))
}

func TestMemoryStoreLatestOrderWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "A")

	var ids []string
	for i := 1; i <= 3; i++ {
		o, err := s.CreateOrder(ctx, models.NewOrder{
			UserDetails: "u1",
			TotalPrice:  decimal.NewFromInt(int64(i)),
			Lines:       []models.LineRequest{{ProductName: "A", Quantity: i}},
		})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	latest, err := s.LatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)

	all, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	deleted, err := s.DeleteLatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, deleted)

	latest, err = s.LatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ids[1], latest.ID)
}

func TestMemoryStoreDeleteOrderIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "A")

	_, err := s.CreateOrder(ctx, models.NewOrder{
		UserDetails: "u1",
		Lines:       []models.LineRequest{{ProductName: "A", Quantity: 1}},
	})
	require.NoError(t, err)

	first, err := s.DeleteLatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.DeleteLatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, second)

	never, err := s.DeleteLatestOrderForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, never)
}

func TestMemoryStoreDeleteProductCascadesToLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	a := seedProduct(t, s, "A")
	seedProduct(t, s, "B")

	_, err := s.CreateOrder(ctx, models.NewOrder{
		UserDetails: "u1",
		Lines: []models.LineRequest{
			{ProductName: "A", Quantity: 1},
			{ProductName: "B", Quantity: 4},
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProduct(ctx, a.ID))
	require.ErrorIs(t, s.DeleteProduct(ctx, a.ID), contractx.ErrNotFound)

	o, err := s.LatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "B", o.Lines[0].Product.Name)

	// the freed name can be reused
	seedProduct(t, s, "A")
}

func TestMemoryStoreUpdateOrderLeavesOrderOnBadName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "A")
	seedProduct(t, s, "B")

	o, err := s.CreateOrder(ctx, models.NewOrder{
		UserDetails: "u1",
		TotalPrice:  decimal.NewFromInt(5),
		Lines:       []models.LineRequest{{ProductName: "A", Quantity: 1}},
	})
	require.NoError(t, err)

	total := decimal.NewFromInt(99)
	_, err = s.UpdateOrder(ctx, o.ID, models.OrderPatch{
		TotalPrice: &total,
		Lines:      []models.LineRequest{{ProductName: "Nope", Quantity: 1}},
	})
	require.ErrorIs(t, err, contractx.ErrNotFound)

	unchanged, err := s.LatestOrderForUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(unchanged.TotalPrice))
	require.Len(t, unchanged.Lines, 1)
	assert.Equal(t, "A", unchanged.Lines[0].Product.Name)

	updated, err := s.UpdateOrder(ctx, o.ID, models.OrderPatch{
		TotalPrice: &total,
		Lines:      []models.LineRequest{{ProductName: "B", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, total.Equal(updated.TotalPrice))
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, "B", updated.Lines[0].Product.Name)

	_, err = s.UpdateOrder(ctx, "missing", models.OrderPatch{TotalPrice: &total})
	require.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "A")

	p.Name = "mutated"
	got, err := s.ProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}

func TestMemoryStoreConcurrentCreatesKeepNamesUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateProduct(ctx, models.NewProduct{Name: "Same", ImageURL: "https://x.io/s.png"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case contractx.KindOf(err) == contractx.KindConflict:
				conflicts++
			default:
				panic(fmt.Sprintf("unexpected error: %v", err))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateProduct(ctx, models.NewProduct{Name: "A", ImageURL: "https://x.io/a.png"})
	require.ErrorIs(t, err, contractx.ErrStore)
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authx "github.com/tanpawarit/Chative-Commerce-Tools/agent/auth"
	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
	"github.com/tanpawarit/Chative-Commerce-Tools/models"
	"github.com/tanpawarit/Chative-Commerce-Tools/store"
)

var (
	standard = contractx.CallerContext{Text: "add a mug please", CallerID: "+100"}
	elevated = contractx.CallerContext{Text: "JESUS add a mug please", CallerID: "+100"}
)

// countingCatalog records how many writes reach the store.
type countingCatalog struct {
	contractx.CatalogStore
	writes atomic.Int32
}

func (c *countingCatalog) CreateProduct(ctx context.Context, in models.NewProduct) (*models.Product, error) {
	c.writes.Add(1)
	return c.CatalogStore.CreateProduct(ctx, in)
}

func (c *countingCatalog) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	c.writes.Add(1)
	return c.CatalogStore.UpdateProduct(ctx, id, patch)
}

func (c *countingCatalog) DeleteProduct(ctx context.Context, id string) error {
	c.writes.Add(1)
	return c.CatalogStore.DeleteProduct(ctx, id)
}

type brokenOrders struct {
	contractx.OrderStore
}

func (brokenOrders) ListOrders(context.Context) ([]models.Order, error) {
	return nil, errors.New("pq: connection reset by peer at 10.0.0.7:5432")
}

type fixture struct {
	d       *Dispatcher
	mem     *store.MemoryStore
	catalog *countingCatalog
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemoryStore()
	catalog := &countingCatalog{CatalogStore: mem}
	registry, err := toolx.NewCommerceRegistry(catalog, mem)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	metrics, err := NewMetrics(promReg)
	require.NoError(t, err)

	d, err := New(registry, authx.NewKeywordGate(authx.DefaultElevationToken), WithMetrics(metrics))
	require.NoError(t, err)

	return &fixture{d: d, mem: mem, catalog: catalog, reg: promReg}
}

func (f *fixture) call(t *testing.T, tool string, args map[string]any, caller contractx.CallerContext) contractx.Envelope {
	t.Helper()
	return f.d.Dispatch(context.Background(), tool, args, caller)
}

func (f *fixture) seed(t *testing.T, name string) {
	t.Helper()
	env := f.call(t, toolx.ToolCreateProduct, map[string]any{
		"name": name, "price": 10, "imageUrl": "https://img.example.com/p.png",
	}, elevated)
	require.True(t, env.OK(), "seed %s: %s", name, env.Message)
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	env := f.call(t, "drop-tables", nil, elevated)

	assert.Equal(t, contractx.StatusError, env.Status)
	assert.Equal(t, contractx.KindUnknownTool, env.Kind)
	assert.Contains(t, env.Message, "unknown tool")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.d.metrics.calls.WithLabelValues(unknownToolLabel, string(contractx.KindUnknownTool))))
}

func TestDispatchSchemaGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "Alpha")
	writesBefore := f.catalog.writes.Load()

	malformed := []struct {
		tool string
		args map[string]any
	}{
		{toolx.ToolCreateProduct, map[string]any{"price": 1, "imageUrl": "https://x/y.png"}},
		{toolx.ToolCreateProduct, map[string]any{"name": "Mug", "price": -1, "imageUrl": "https://x/y.png"}},
		{toolx.ToolCreateProduct, map[string]any{"name": "Mug", "price": 1, "imageUrl": "mug.png"}},
		{toolx.ToolCreateOrder, map[string]any{"userDetails": "+1", "totalPrice": 1, "orderLines": []any{map[string]any{"productName": "Alpha", "quantity": 0}}}},
		{toolx.ToolCreateOrder, map[string]any{"userDetails": "+1", "orderLines": []any{map[string]any{"productName": "Alpha", "quantity": 1}}}},
		{toolx.ToolUpdateProduct, map[string]any{"id": "whatever"}},
		{toolx.ToolDeleteOrder, map[string]any{}},
	}

	for _, tc := range malformed {
		env := f.call(t, tc.tool, tc.args, elevated)
		assert.Equal(t, contractx.StatusError, env.Status, "tool=%s args=%v", tc.tool, tc.args)
		assert.Equal(t, contractx.KindValidation, env.Kind, "tool=%s args=%v", tc.tool, tc.args)
	}

	assert.Equal(t, writesBefore, f.catalog.writes.Load())
	orders, err := f.mem.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestDispatchAuthorizationGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "Alpha")
	a, err := f.mem.ProductByName(context.Background(), "Alpha")
	require.NoError(t, err)
	writesBefore := f.catalog.writes.Load()

	calls := []struct {
		tool string
		args map[string]any
	}{
		{toolx.ToolCreateProduct, map[string]any{"name": "Mug", "price": 3, "imageUrl": "https://x/mug.png"}},
		{toolx.ToolUpdateProduct, map[string]any{"id": a.ID, "price": 1}},
		{toolx.ToolDeleteProduct, map[string]any{"id": a.ID}},
	}

	for _, c := range calls {
		env := f.call(t, c.tool, c.args, standard)
		assert.Equal(t, contractx.KindForbidden, env.Kind, "tool=%s", c.tool)
		assert.Contains(t, env.Message, "forbidden")
	}
	assert.Equal(t, writesBefore, f.catalog.writes.Load(), "forbidden calls must not reach the store")

	products, err := f.mem.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Alpha", products[0].Name)

	for _, c := range calls {
		env := f.call(t, c.tool, c.args, elevated)
		assert.True(t, env.OK(), "tool=%s: %s", c.tool, env.Message)
	}
}

func TestDispatchAtomicOrderCreation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "Alpha")

	env := f.call(t, toolx.ToolCreateOrder, map[string]any{
		"userDetails": "+1",
		"totalPrice":  20,
		"orderLines":  []any{map[string]any{"productName": "Alpha", "quantity": 2}},
	}, standard)
	require.True(t, env.OK(), env.Message)
	order := env.Data.(toolx.OrderMutation).Order
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Quantity)

	env = f.call(t, toolx.ToolCreateOrder, map[string]any{
		"userDetails": "+2",
		"totalPrice":  20,
		"orderLines": []any{
			map[string]any{"productName": "Alpha", "quantity": 2},
			map[string]any{"productName": "Zeta", "quantity": 1},
		},
	}, standard)
	assert.Equal(t, contractx.KindNotFound, env.Kind)

	orders, err := f.mem.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "+1", orders[0].UserDetails)
}

func TestDispatchIdempotentDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	for i := 0; i < 2; i++ {
		env := f.call(t, toolx.ToolDeleteOrder, map[string]any{"userDetails": "+nobody"}, standard)
		require.True(t, env.OK(), env.Message)
		res := env.Data.(toolx.DeletionResult)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "already absent")
	}
}

func TestDispatchUniqueness(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	args := map[string]any{"name": "USB Cable", "price": 4.5, "imageUrl": "https://x/usb.png"}

	first := f.call(t, toolx.ToolCreateProduct, args, elevated)
	require.True(t, first.OK(), first.Message)
	original := first.Data.(toolx.ProductMutation).Product

	second := f.call(t, toolx.ToolCreateProduct, args, elevated)
	assert.Equal(t, contractx.KindConflict, second.Kind)

	got, err := f.mem.ProductByName(context.Background(), "USB Cable")
	require.NoError(t, err)
	assert.Equal(t, original.ID, got.ID)
	assert.True(t, original.Price.Equal(got.Price))
}

func TestDispatchHidesStoreFailures(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	registry, err := toolx.NewCommerceRegistry(mem, brokenOrders{OrderStore: mem})
	require.NoError(t, err)
	d, err := New(registry, authx.NewKeywordGate(""))
	require.NoError(t, err)

	env := d.Dispatch(context.Background(), toolx.ToolListOrders, nil, standard)
	assert.Equal(t, contractx.KindInternal, env.Kind)
	assert.NotContains(t, env.Message, "10.0.0.7")
}

func TestDispatchRecoversPanicsAndBadOutput(t *testing.T) {
	t.Parallel()

	registry, err := toolx.NewRegistry(
		toolx.New("explode", "panics", contractx.PrivilegeStandard, nil,
			func(context.Context, toolx.EmptyInput) (toolx.IDResult, error) {
				panic("boom")
			},
		),
		toolx.New("lie", "returns a non-uuid id", contractx.PrivilegeStandard, nil,
			func(context.Context, toolx.EmptyInput) (toolx.IDResult, error) {
				return toolx.IDResult{ID: "not-a-uuid"}, nil
			},
		),
	)
	require.NoError(t, err)
	d, err := New(registry, authx.NewKeywordGate(""))
	require.NoError(t, err)

	for _, name := range []string{"explode", "lie"} {
		env := d.Dispatch(context.Background(), name, nil, standard)
		assert.Equal(t, contractx.StatusError, env.Status, name)
		assert.Equal(t, contractx.KindInternal, env.Kind, name)
		assert.Equal(t, "internal error", env.Message, name)
	}
}

func TestDispatchEnvelopeShape(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	ok, err := json.Marshal(f.call(t, toolx.ToolGetOrder, map[string]any{"userDetails": "+1"}, standard))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","data":{"order":null}}`, string(ok))

	failed, err := json.Marshal(f.call(t, toolx.ToolDeleteProduct, map[string]any{"id": "x"}, standard))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(failed, &body))
	assert.Len(t, body, 2)
	assert.Equal(t, "error", body["status"])
	assert.True(t, strings.HasPrefix(body["message"].(string), "forbidden"))
}

func TestDispatchEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	env := f.call(t, toolx.ToolCreateProduct, map[string]any{
		"name": "Laptop Stand", "price": 15, "imageUrl": "https://x/y.png",
	}, elevated)
	require.True(t, env.OK(), env.Message)
	stand := env.Data.(toolx.ProductMutation).Product

	env = f.call(t, toolx.ToolCreateOrder, map[string]any{
		"userDetails": "+263999",
		"totalPrice":  15,
		"orderLines":  []any{map[string]any{"productName": "Laptop Stand", "quantity": 1}},
	}, standard)
	require.True(t, env.OK(), env.Message)
	order := env.Data.(toolx.OrderMutation).Order
	require.Len(t, order.Lines, 1)
	assert.Equal(t, stand.ID, order.Lines[0].ProductID)

	env = f.call(t, toolx.ToolDeleteOrder, map[string]any{"userDetails": "+263999"}, standard)
	require.True(t, env.OK(), env.Message)
	assert.Contains(t, env.Data.(toolx.DeletionResult).Message, "deleted")

	env = f.call(t, toolx.ToolDeleteOrder, map[string]any{"userDetails": "+263999"}, standard)
	require.True(t, env.OK(), env.Message)
	assert.Contains(t, env.Data.(toolx.DeletionResult).Message, "already absent")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.d.metrics.calls.WithLabelValues(toolx.ToolDeleteOrder, contractx.StatusSuccess)))
	count, err := testutil.GatherAndCount(f.reg, metricsNamespace+"_tool_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	second.calls.WithLabelValues("x", "success").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.calls.WithLabelValues("x", "success")))
}

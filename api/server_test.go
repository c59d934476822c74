package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/Chative-Commerce-Tools/agent/assistant"
	authx "github.com/tanpawarit/Chative-Commerce-Tools/agent/auth"
	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/agent/dispatch"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
	"github.com/tanpawarit/Chative-Commerce-Tools/store"
)

type stubReplier struct {
	reply string
	err   error
}

func (s stubReplier) Reply(_ context.Context, _, _ string) (string, error) {
	return s.reply, s.err
}

func newTestServer(t *testing.T, replier Replier) http.Handler {
	t.Helper()

	mem := store.NewMemoryStore()
	registry, err := toolx.NewCommerceRegistry(mem, mem)
	require.NoError(t, err)
	d, err := dispatch.New(registry, authx.NewKeywordGate(authx.DefaultElevationToken))
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Catalog:    mem,
		Orders:     mem,
		Registry:   registry,
		Dispatcher: d,
		Assistant:  replier,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestProductLifecycle(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, nil)

	rec, created := do(t, h, http.MethodPost, "/products", map[string]any{
		"name": "Laptop Stand", "price": 15, "imageUrl": "https://x/y.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, 15.0, created["price"])

	rec, _ = do(t, h, http.MethodPost, "/products", map[string]any{
		"name": "Laptop Stand", "price": 20, "imageUrl": "https://x/z.png",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, patched := do(t, h, http.MethodPatch, "/products/"+id, map[string]any{"stock": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4.0, patched["stock"])

	rec, got := do(t, h, http.MethodGet, "/products/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Laptop Stand", got["name"])

	rec, deleted := do(t, h, http.MethodDelete, "/products/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product deleted successfully", deleted["message"])

	rec, _ = do(t, h, http.MethodGet, "/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, h, http.MethodDelete, "/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationFailuresCarryFieldDetails(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodPost, "/products", map[string]any{"name": "X", "price": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])

	details, ok := body["details"].([]any)
	require.True(t, ok, "details missing: %v", body)
	fields := map[string]bool{}
	for _, d := range details {
		fields[d.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["price"])
	assert.True(t, fields["imageUrl"])

	rec, _ = do(t, h, http.MethodPatch, "/products/any-id", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{"userDetails":`))
	raw := httptest.NewRecorder()
	h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestOrderRoutes(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, nil)

	rec, _ := do(t, h, http.MethodPost, "/products", map[string]any{
		"name": "Mug", "price": 4.5, "imageUrl": "https://x/mug.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/orders", map[string]any{
		"userDetails": "+1", "totalPrice": 9,
		"orderLines": []any{map[string]any{"productName": "Ghost", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, order := do(t, h, http.MethodPost, "/orders", map[string]any{
		"userDetails": "+1", "totalPrice": 9,
		"orderLines": []any{map[string]any{"productName": "Mug", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := order["id"].(string)

	rec, patched := do(t, h, http.MethodPatch, "/orders/"+orderID, map[string]any{"totalPrice": 8.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 8.5, patched["totalPrice"])

	rec, latest := do(t, h, http.MethodGet, "/orders/+1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, latest["id"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	rec, msg := do(t, h, http.MethodDelete, "/orders/+1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order deleted successfully", msg["message"])

	rec, msg = do(t, h, http.MethodDelete, "/orders/+1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order already absent", msg["message"])

	rec, _ = do(t, h, http.MethodGet, "/orders/+1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolRouteWalksTheOrderScenario(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, nil)

	rec, product := do(t, h, http.MethodPost, "/products", map[string]any{
		"name": "Laptop Stand", "price": 15, "imageUrl": "https://x/y.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/tools/create-order", map[string]any{
		"arguments": map[string]any{
			"userDetails": "+263999",
			"totalPrice":  15,
			"orderLines":  []any{map[string]any{"productName": "Laptop Stand", "quantity": 1}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", env["status"], env)
	order := env["data"].(map[string]any)["order"].(map[string]any)
	lines := order["orderLines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, product["id"], lines[0].(map[string]any)["productId"])

	deleteArgs := map[string]any{"arguments": map[string]any{"userDetails": "+263999"}}
	_, env = do(t, h, http.MethodPost, "/tools/delete-order", deleteArgs)
	require.Equal(t, "success", env["status"])
	assert.Equal(t, "Order deleted successfully", env["data"].(map[string]any)["message"])

	_, env = do(t, h, http.MethodPost, "/tools/delete-order", deleteArgs)
	require.Equal(t, "success", env["status"])
	assert.Equal(t, "Order already absent", env["data"].(map[string]any)["message"])
}

func TestToolRouteEnvelopesFailures(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, nil)

	rec, env := do(t, h, http.MethodPost, "/tools/delete-product", map[string]any{
		"arguments":  map[string]any{"id": "p1"},
		"callerText": "please remove it",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", env["status"])
	assert.NotContains(t, env, "data")

	_, env = do(t, h, http.MethodPost, "/tools/launch-rockets", map[string]any{})
	assert.Equal(t, "error", env["status"])

	_, env = do(t, h, http.MethodPost, "/tools/list-products", map[string]any{"arguments": "nope"})
	assert.Equal(t, "error", env["status"])

	_, env = do(t, h, http.MethodPost, "/tools/delete-product", map[string]any{
		"arguments":  map[string]any{"id": "p1"},
		"callerText": "JESUS remove it",
	})
	assert.Equal(t, "error", env["status"])
	assert.Contains(t, env["message"], "not found")
}

func TestListTools(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tools := body["tools"].([]any)
	require.Len(t, tools, 11)

	privileges := map[string]string{}
	for _, raw := range tools {
		tool := raw.(map[string]any)
		privileges[tool["name"].(string)] = tool["privilege"].(string)
		assert.Equal(t, "object", tool["inputSchema"].(map[string]any)["type"])
	}
	assert.Equal(t, "elevated", privileges["create-product"])
	assert.Equal(t, "standard", privileges["create-order"])
}

func TestAgentMessages(t *testing.T) {
	t.Parallel()

	rec, _ := do(t, newTestServer(t, nil), http.MethodPost, "/agent/messages", map[string]any{"from": "+1", "body": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body := do(t, newTestServer(t, stubReplier{reply: "hello"}), http.MethodPost, "/agent/messages",
		map[string]any{"from": "+1", "body": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", body["reply"])

	rec, _ = do(t, newTestServer(t, stubReplier{err: errors.Join(assistant.ErrModelInvoke, errors.New("429"))}),
		http.MethodPost, "/agent/messages", map[string]any{"from": "+1", "body": "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec, _ = do(t, newTestServer(t, stubReplier{err: contractx.ErrValidation}),
		http.MethodPost, "/agent/messages", map[string]any{"body": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndRecovery(t *testing.T) {
	t.Parallel()

	rec, body := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	panicking := logRequests(recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec = httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

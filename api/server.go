// Package api exposes the stores, the tool dispatcher and the assistant over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

// Replier answers one chat message. *assistant.Assistant satisfies it.
type Replier interface {
	Reply(ctx context.Context, userDetails, text string) (string, error)
}

type Deps struct {
	Catalog    contractx.CatalogStore
	Orders     contractx.OrderStore
	Registry   *toolx.Registry
	Dispatcher contractx.Dispatcher

	// Assistant is optional; without it /agent/messages answers 503.
	Assistant Replier
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health is polled by /healthz when set.
	Health func(ctx context.Context) error
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Catalog == nil || deps.Orders == nil {
		return nil, errors.New("catalog and order stores are required")
	}
	if deps.Registry == nil || deps.Dispatcher == nil {
		return nil, errors.New("tool registry and dispatcher are required")
	}

	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /products", s.handleCreateProduct)
	s.mux.HandleFunc("GET /products", s.handleListProducts)
	s.mux.HandleFunc("GET /products/{id}", s.handleGetProduct)
	s.mux.HandleFunc("PATCH /products/{id}", s.handleUpdateProduct)
	s.mux.HandleFunc("DELETE /products/{id}", s.handleDeleteProduct)

	s.mux.HandleFunc("POST /orders", s.handleCreateOrder)
	s.mux.HandleFunc("GET /orders", s.handleListOrders)
	s.mux.HandleFunc("GET /orders/{userDetails}", s.handleGetOrder)
	s.mux.HandleFunc("PATCH /orders/{id}", s.handleUpdateOrder)
	s.mux.HandleFunc("DELETE /orders/{userDetails}", s.handleDeleteOrder)

	s.mux.HandleFunc("GET /tools", s.handleListTools)
	s.mux.HandleFunc("POST /tools/{name}", s.handleDispatchTool)
	s.mux.HandleFunc("POST /agent/messages", s.handleAgentMessage)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

// Handler returns the mux wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(recoverPanics(s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

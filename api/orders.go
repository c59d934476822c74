package api

import (
	"net/http"
	"strings"

	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[toolx.CreateOrderInput](r, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Orders.CreateOrder(r.Context(), in.NewOrder())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Orders.ListOrders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// handleGetOrder answers with the caller's most recent order.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	in, err := userDetailsFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Orders.LatestOrderForUser(r.Context(), in.UserDetails)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[toolx.UpdateOrderInput](r, map[string]any{"id": r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Orders.UpdateOrder(r.Context(), in.ID, in.Patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleDeleteOrder is idempotent: a user without orders still gets 200.
func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	in, err := userDetailsFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.deps.Orders.DeleteLatestOrderForUser(r.Context(), in.UserDetails)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Order deleted successfully"
	if !deleted {
		msg = "Order already absent"
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func userDetailsFromPath(r *http.Request) (toolx.UserDetailsInput, error) {
	in, err := toolx.DecodeInput[toolx.UserDetailsInput](map[string]any{"userDetails": r.PathValue("userDetails")})
	if err != nil {
		return in, err
	}
	in.UserDetails = strings.TrimSpace(in.UserDetails)
	return in, nil
}

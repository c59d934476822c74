package api

import (
	"net/http"

	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[toolx.CreateProductInput](r, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Catalog.CreateProduct(r.Context(), in.NewProduct())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	in, err := toolx.DecodeInput[toolx.ProductIDInput](map[string]any{"id": r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Catalog.ProductByID(r.Context(), in.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[toolx.UpdateProductInput](r, map[string]any{"id": r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Catalog.UpdateProduct(r.Context(), in.ID, in.Patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	in, err := toolx.DecodeInput[toolx.ProductIDInput](map[string]any{"id": r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Catalog.DeleteProduct(r.Context(), in.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Product deleted successfully"})
}

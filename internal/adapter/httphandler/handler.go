package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/internal/core/selector"
)

// GET    v1/state                full state
// GET    v1/products             visible products (filters applied)
// GET    v1/categories           distinct categories
// GET    v1/summary              catalog summary
// POST   v1/products/fetch       reload from the remote catalog (?ifEmpty=true)
// POST   v1/products             JSON draft (201 Created, 400, 502)
// PUT    v1/products/{id}        JSON draft (200 OK, 400, 502)
// DELETE v1/products/{id}        (204 No content, 400, 502)
// PUT    v1/filters              JSON [FiltersRequest] (200 OK, 400)
// DELETE v1/error                (204 No content)

type ProductsHandler struct {
	store port.ProductsStore
}

func RegisterProducts(mux *http.ServeMux, store port.ProductsStore) {
	h := ProductsHandler{store}
	mux.HandleFunc("GET /v1/state", h.GetState)
	mux.HandleFunc("GET /v1/products", h.GetProducts)
	mux.HandleFunc("GET /v1/categories", h.GetCategories)
	mux.HandleFunc("GET /v1/summary", h.GetSummary)
	mux.HandleFunc("POST /v1/products/fetch", h.PostFetch)
	mux.HandleFunc("POST /v1/products", h.PostProduct)
	mux.HandleFunc("PUT /v1/products/{id}", h.PutProduct)
	mux.HandleFunc("DELETE /v1/products/{id}", h.DeleteProduct)
	mux.HandleFunc("PUT /v1/filters", h.PutFilters)
	mux.HandleFunc("DELETE /v1/error", h.DeleteError)
}

func (h ProductsHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.State())
}

func (h ProductsHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	visible := selector.VisibleProducts(h.store.State())
	writeJSON(w, http.StatusOK, ProductsResponse{
		Count:    len(visible),
		Products: toViews(visible),
	})
}

func (h ProductsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	cs := selector.Categories(h.store.State().Products)
	writeJSON(w, http.StatusOK, CategoriesResponse{cs})
}

func (h ProductsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, selector.Summarize(h.store.State().Products))
}

func (h ProductsHandler) PostFetch(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PostFetch"

	fetch := h.store.FetchAll
	if ifEmpty, _ := strconv.ParseBool(r.URL.Query().Get("ifEmpty")); ifEmpty {
		fetch = h.store.EnsureLoaded
	}

	if err := fetch(r.Context()); err != nil {
		h.upstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.store.State())
}

func (h ProductsHandler) PostProduct(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PostProduct"
	log := slog.With("op", op)

	d, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	if d.Rating == (domain.Rating{}) {
		d.Rating = domain.DefaultRating
	}

	p, err := h.store.Create(r.Context(), d)
	if err != nil {
		h.upstreamError(w, op, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
	log.Info("product created", "id", p.ID)
}

func (h ProductsHandler) PutProduct(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PutProduct"

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	p, err := h.store.Update(r.Context(), d.WithID(id))
	if err != nil {
		h.upstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h ProductsHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.DeleteProduct"

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Remove(r.Context(), id); err != nil {
		h.upstreamError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h ProductsHandler) PutFilters(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PutFilters"
	log := slog.With("op", op)

	var req FiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	var (
		sortBy    domain.SortKey
		sortOrder domain.SortOrder
		err       error
	)
	if req.SortBy != nil {
		if sortBy, err = domain.ParseSortKey(*req.SortBy); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.SortOrder != nil {
		if sortOrder, err = domain.ParseSortOrder(*req.SortOrder); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if req.SearchTerm != nil {
		h.store.SetSearchTerm(*req.SearchTerm)
	}
	if req.SelectedCategory != nil {
		h.store.SetSelectedCategory(*req.SelectedCategory)
	}
	if req.SortBy != nil {
		h.store.SetSortBy(sortBy)
	}
	if req.SortOrder != nil {
		h.store.SetSortOrder(sortOrder)
	}

	writeJSON(w, http.StatusOK, h.store.State())
}

func (h ProductsHandler) DeleteError(w http.ResponseWriter, r *http.Request) {
	h.store.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// upstreamError answers with the message the store recorded for the failed
// operation.
func (h ProductsHandler) upstreamError(w http.ResponseWriter, op string, err error) {
	slog.Error("operation failed", "op", op, "err", err)

	msg := domain.RejectionMessage(err)
	if msg == "" {
		msg = "upstream request failed"
	}
	writeError(w, http.StatusBadGateway, msg)
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (domain.ProductDraft, bool) {
	var d domain.ProductDraft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return domain.ProductDraft{}, false
	}
	if err := d.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.ProductDraft{}, false
	}
	return d, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		if !errors.Is(err, http.ErrHandlerTimeout) {
			slog.Error("failed to write response body", "err", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{msg})
}

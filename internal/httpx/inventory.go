package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/service"
)

type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/products", h.products)
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *InventoryHandler) products(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Products(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *InventoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int64           `json:"product_id"`
		Stocks    decimal.Decimal `json:"stocks"`
		Size      string          `json:"size"`
		Type      string          `json:"type"`
		Freshness string          `json:"freshness"`
		Class     string          `json:"item_class"`
		Price     decimal.Decimal `json:"price"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), ActorFrom(r.Context()), service.CreateInventoryInput{
		ProductID: body.ProductID,
		Stocks:    body.Stocks,
		Size:      body.Size,
		Type:      body.Type,
		Freshness: body.Freshness,
		Class:     body.Class,
		Price:     body.Price,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.List(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.svc.Get(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *InventoryHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var upd market.InventoryUpdate
	if err := decode(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	inv, err := h.svc.Update(r.Context(), ActorFrom(r.Context()), id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), ActorFrom(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

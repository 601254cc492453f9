package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/redisx"
	"github.com/katuparan/farm2stall/internal/service"
)

// DemandsHandler owns the demand routes. A nil cache skips the status-cache
// invalidation on completion; the projector covers it from the event stream.
type DemandsHandler struct {
	svc   *service.DemandService
	cache *redisx.StatusCache
	log   *zap.Logger
}

func NewDemandsHandler(svc *service.DemandService, cache *redisx.StatusCache, log *zap.Logger) *DemandsHandler {
	return &DemandsHandler{svc: svc, cache: cache, log: log}
}

func (h *DemandsHandler) Register(r chi.Router) {
	r.Route("/demands", func(r chi.Router) {
		r.Post("/", h.upsert)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/complete", h.complete)
	})
}

func (h *DemandsHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int64           `json:"product_id"`
		Weight    decimal.Decimal `json:"weight"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.svc.Upsert(r.Context(), ActorFrom(r.Context()), body.ProductID, body.Weight)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *DemandsHandler) list(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.List(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *DemandsHandler) get(w http.ResponseWriter, r *http.Request) {
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

func (h *DemandsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Weight decimal.Decimal `json:"weight"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.svc.UpdateWeight(r.Context(), ActorFrom(r.Context()), id, body.Weight)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DemandsHandler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	completed, err := h.svc.Complete(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.cache != nil {
		// Completion flips requests in bulk; drop their cached status so the
		// fast path does not serve the pre-completion state.
		for _, reqID := range completed {
			if err := h.cache.DeleteRequest(r.Context(), reqID); err != nil {
				h.log.Warn("request status cache delete failed", zap.Int64("request_id", reqID), zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"completed_requests": len(completed)})
}

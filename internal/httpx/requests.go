package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/redisx"
	"github.com/katuparan/farm2stall/internal/service"
)

// RequestsHandler serves supplies and requests, with a redis write-through
// cache on the request status fast path. A nil cache disables the fast path.
type RequestsHandler struct {
	svc    *service.RequestService
	cache  *redisx.StatusCache
	stalls service.StallResolver
	log    *zap.Logger
}

func NewRequestsHandler(svc *service.RequestService, cache *redisx.StatusCache, stalls service.StallResolver, log *zap.Logger) *RequestsHandler {
	return &RequestsHandler{svc: svc, cache: cache, stalls: stalls, log: log}
}

func (h *RequestsHandler) Register(r chi.Router) {
	r.Route("/supplies", func(r chi.Router) {
		r.Post("/", h.createSupply)
		r.Get("/", h.listSupplies)
	})
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.bindSupply)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Patch("/{id}", h.updateStatus)
		r.Delete("/{id}", h.delete)
	})
}

func (h *RequestsHandler) cacheStatus(r *http.Request, v market.RequestView) {
	if h.cache == nil {
		return
	}
	err := h.cache.SetRequest(r.Context(), v.ID, redisx.RequestStatus{
		Status:   string(v.Status),
		FarmerID: v.Farm.FarmerID,
		StallID:  v.Stall.StallID,
	})
	if err != nil {
		h.log.Warn("request status cache write failed", zap.Int64("request_id", v.ID), zap.Error(err))
	}
}

func (h *RequestsHandler) createSupply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int64           `json:"product_id"`
		Weight    decimal.Decimal `json:"weight"`
		DemandID  int64           `json:"demand_id"`
		Price     decimal.Decimal `json:"price"`
		Method    string          `json:"method"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	method, err := market.ParseMethod(body.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	sr, err := h.svc.CreateWithSupply(r.Context(), ActorFrom(r.Context()), service.CreateSupplyInput{
		ProductID: body.ProductID,
		Weight:    body.Weight,
		DemandID:  body.DemandID,
		Price:     body.Price,
		Method:    method,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, sr.Request)
	writeJSON(w, http.StatusCreated, sr)
}

func (h *RequestsHandler) listSupplies(w http.ResponseWriter, r *http.Request) {
	ss, err := h.svc.Supplies(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (h *RequestsHandler) bindSupply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SupplyID int64           `json:"supply_id"`
		DemandID int64           `json:"demand_id"`
		Price    decimal.Decimal `json:"price"`
		Method   string          `json:"method"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	method, err := market.ParseMethod(body.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.svc.BindSupply(r.Context(), ActorFrom(r.Context()), service.BindSupplyInput{
		SupplyID: body.SupplyID,
		DemandID: body.DemandID,
		Price:    body.Price,
		Method:   method,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, v)
	writeJSON(w, http.StatusCreated, v)
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.List(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *RequestsHandler) get(w http.ResponseWriter, r *http.Request) {
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

// status serves the cached status when present, falling back to the database
// view. The cached record carries the owner ids, so a hit is authorized
// without touching postgres.
func (h *RequestsHandler) status(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := ActorFrom(r.Context())
	if h.cache != nil {
		rec, ok, err := h.cache.GetRequest(r.Context(), id)
		if err != nil {
			h.log.Warn("request status cache read failed", zap.Int64("request_id", id), zap.Error(err))
		}
		if ok {
			if h.authorizeRequest(r, actor, rec) {
				writeJSON(w, http.StatusOK, map[string]string{"status": rec.Status})
				return
			}
			writeError(w, market.ErrNotFound)
			return
		}
	}
	v, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, v)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(v.Status)})
}

func (h *RequestsHandler) authorizeRequest(r *http.Request, actor market.Actor, rec redisx.RequestStatus) bool {
	switch actor.Role {
	case market.RoleFarmer:
		return rec.FarmerID == actor.ID
	case market.RoleDisposer:
		stall, err := h.stalls.StallForUser(r.Context(), actor.ID)
		if err != nil {
			if !errors.Is(err, market.ErrNotFound) {
				h.log.Warn("stall lookup failed", zap.Int64("user_id", actor.ID), zap.Error(err))
			}
			return false
		}
		return stall.ID == rec.StallID
	default:
		return false
	}
}

func (h *RequestsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	to, err := market.ParseRequestStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.svc.UpdateStatus(r.Context(), ActorFrom(r.Context()), id, to)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, v)
	writeJSON(w, http.StatusOK, v)
}

func (h *RequestsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), ActorFrom(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.DeleteRequest(r.Context(), id); err != nil {
			h.log.Warn("request status cache delete failed", zap.Int64("request_id", id), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

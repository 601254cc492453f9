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

type OrdersHandler struct {
	svc    *service.OrderService
	cache  *redisx.StatusCache
	stalls service.StallResolver
	log    *zap.Logger
}

func NewOrdersHandler(svc *service.OrderService, cache *redisx.StatusCache, stalls service.StallResolver, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{svc: svc, cache: cache, stalls: stalls, log: log}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Patch("/{id}", h.updateStatus)
		r.Post("/{id}/receive", h.receive)
		r.Delete("/{id}", h.delete)
	})
}

func (h *OrdersHandler) cacheStatus(r *http.Request, v market.OrderView) {
	if h.cache == nil {
		return
	}
	err := h.cache.SetOrder(r.Context(), v.ID, redisx.OrderStatus{
		Status:     string(v.Status),
		ConsumerID: v.ConsumerID,
		StallID:    v.Item.StallID,
	})
	if err != nil {
		h.log.Warn("order status cache write failed", zap.Int64("order_id", v.ID), zap.Error(err))
	}
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StallInventoryID int64           `json:"stall_inventory_id"`
		Amount           decimal.Decimal `json:"amount"`
		Method           string          `json:"method"`
		Weight           decimal.Decimal `json:"weight"`
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
	v, err := h.svc.Create(r.Context(), ActorFrom(r.Context()), service.CreateOrderInput{
		StallInventoryID: body.StallInventoryID,
		Amount:           body.Amount,
		Method:           method,
		Weight:           body.Weight,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, v)
	writeJSON(w, http.StatusCreated, v)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.List(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
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

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := ActorFrom(r.Context())
	if h.cache != nil {
		rec, ok, err := h.cache.GetOrder(r.Context(), id)
		if err != nil {
			h.log.Warn("order status cache read failed", zap.Int64("order_id", id), zap.Error(err))
		}
		if ok {
			if h.authorizeOrder(r, actor, rec) {
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

func (h *OrdersHandler) authorizeOrder(r *http.Request, actor market.Actor, rec redisx.OrderStatus) bool {
	switch actor.Role {
	case market.RoleConsumer:
		return rec.ConsumerID == actor.ID
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

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
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
	to, err := market.ParseOrderStatus(body.Status)
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

func (h *OrdersHandler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.svc.Receive(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, v)
	writeJSON(w, http.StatusOK, v)
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
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
		if err := h.cache.DeleteOrder(r.Context(), id); err != nil {
			h.log.Warn("order status cache delete failed", zap.Int64("order_id", id), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

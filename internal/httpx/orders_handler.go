package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/checkout"
	"github.com/ariefcatur/go-checkout/internal/observability"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/redisx"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (checkout.Confirmation, error)
	AdvanceStatus(ctx context.Context, orderID int64, to orders.Status) (orders.Order, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (orders.OrderDetail, error)
}

type IdempotencyGuard interface {
	Begin(ctx context.Context, key string) (orderID int64, done bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Abort(ctx context.Context, key string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID int64) (orders.Status, bool, error)
	Set(ctx context.Context, orderID int64, s orders.Status) error
}

// OrdersHandler serves checkout and order lookups. Idem and Cache are optional.
type OrdersHandler struct {
	Orders OrderService
	Reader OrderReader
	Idem   IdempotencyGuard
	Cache  StatusCache
	Log    *zap.Logger
}

type PurchaseResp struct {
	Message  string `json:"message"`
	OrderID  int64  `json:"orderId"`
	Replayed bool   `json:"replayed,omitempty"`
}

const purchaseOK = "Purchase completed successfully"

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/compra", h.purchase)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) purchase(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	log := observability.WithTrace(ctx, h.Log)

	// Idempotency-Key opsional; kalau Redis bermasalah, lanjut tanpa guard
	key := r.Header.Get("Idempotency-Key")
	guarded := false
	if key != "" && h.Idem != nil {
		orderID, done, err := h.Idem.Begin(ctx, key)
		switch {
		case errors.Is(err, redisx.ErrRequestInFlight):
			writeError(w, http.StatusConflict, "request_in_progress", err.Error())
			return
		case err != nil:
			log.Warn("idempotency guard unavailable", zap.Error(err))
		case done:
			writeJSON(w, http.StatusOK, PurchaseResp{Message: purchaseOK, OrderID: orderID, Replayed: true})
			return
		default:
			guarded = true
		}
	}

	conf, err := h.Orders.PlaceOrder(ctx, req)
	if err != nil {
		if guarded {
			if aerr := h.Idem.Abort(context.WithoutCancel(ctx), key); aerr != nil {
				log.Warn("release idempotency key", zap.Error(aerr))
			}
		}
		h.writePurchaseError(w, log, err)
		return
	}

	if guarded {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), key, conf.OrderID); err != nil {
			log.Warn("record idempotency key", zap.Int64("order_id", conf.OrderID), zap.Error(err))
		}
	}
	h.cacheStatus(ctx, log, conf.OrderID, conf.Status)
	writeJSON(w, http.StatusOK, PurchaseResp{Message: purchaseOK, OrderID: conf.OrderID})
}

func (h *OrdersHandler) writePurchaseError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, checkout.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, orders.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "insufficient_stock", err.Error())
	case errors.Is(err, orders.ErrInventoryNotFound):
		writeError(w, http.StatusNotFound, "inventory_not_found", err.Error())
	default:
		log.Error("purchase failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "transaction_failed", "the purchase could not be completed, please try again")
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Reader.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
		return
	}
	if err != nil {
		h.Log.Error("get order", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load order")
		return
	}
	h.cacheStatus(ctx, h.Log, id, d.Status)
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		if s, hit, err := h.Cache.Get(ctx, id); err == nil && hit {
			writeJSON(w, http.StatusOK, map[string]any{"orderId": id, "status": s, "cached": true})
			return
		}
	}

	// 2) fallback DB
	d, err := h.Reader.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
		return
	}
	if err != nil {
		h.Log.Error("get order status", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load order")
		return
	}
	h.cacheStatus(ctx, h.Log, id, d.Status)
	writeJSON(w, http.StatusOK, map[string]any{"orderId": id, "status": d.Status, "cached": false})
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	to, ok := orders.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "unknown status "+strconv.Quote(req.Status))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	o, err := h.Orders.AdvanceStatus(ctx, id, to)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case err != nil:
		h.Log.Error("update order status", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not update order")
	default:
		h.cacheStatus(ctx, h.Log, id, o.Status)
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, log *zap.Logger, id int64, s orders.Status) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, id, s); err != nil {
		log.Debug("cache order status", zap.Int64("order_id", id), zap.Error(err))
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid "+name)
		return 0, false
	}
	return id, true
}

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/redisx"
)

type InventoryLister interface {
	ListInventory(ctx context.Context) ([]orders.InventoryRecord, error)
}

type StockAdjuster interface {
	AdjustStock(ctx context.Context, rec orders.InventoryRecord) (orders.InventoryRecord, error)
}

type LowStockBoard interface {
	List(ctx context.Context) ([]redisx.LowStockEntry, error)
}

type InventoryHandler struct {
	Lister   InventoryLister
	Adjuster StockAdjuster
	Board    LowStockBoard // nil when Redis is not configured
	Log      *zap.Logger
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/inventory", h.list)
	r.Get("/inventory/low", h.low)
	r.Put("/inventory/{productId}", h.put)
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	recs, err := h.Lister.ListInventory(ctx)
	if err != nil {
		h.Log.Error("list inventory", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list inventory")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *InventoryHandler) low(w http.ResponseWriter, r *http.Request) {
	if h.Board == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "low-stock board is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, err := h.Board.List(ctx)
	if err != nil {
		h.Log.Error("list low stock", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not read low-stock board")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type stockReq struct {
	Quantity *int `json:"quantity"`
	MinStock int  `json:"minStock"`
}

func (h *InventoryHandler) put(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req stockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "quantity is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rec, err := h.Adjuster.AdjustStock(ctx, orders.InventoryRecord{ProductID: id, Quantity: *req.Quantity, MinStock: req.MinStock})
	switch {
	case errors.Is(err, orders.ErrInvalidInventory):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, orders.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", err.Error())
	case err != nil:
		h.Log.Error("adjust stock", zap.Int64("product_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not update inventory")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

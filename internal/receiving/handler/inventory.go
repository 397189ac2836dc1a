package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/repository"
	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
)

// InventoryHandler exposes the inventory ledger and batch catalog
type InventoryHandler struct {
	inventory *repository.InventoryRepository
	batches   *repository.BatchRepository
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory *repository.InventoryRepository, batches *repository.BatchRepository) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, batches: batches}
}

// Routes returns the inventory routes
func (h *InventoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/warehouses/{warehouseID}/stock", h.ListStock)
	r.Get("/batches", h.ListBatches)
	r.Get("/batches/{id}", h.GetBatch)

	return r
}

// ListStock handles GET /inventory/warehouses/{warehouseID}/stock
func (h *InventoryHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.inventory.ListByWarehouse(r.Context(), chi.URLParam(r, "warehouseID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// ListBatches handles GET /inventory/batches
func (h *InventoryHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.batches.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// GetBatch handles GET /inventory/batches/{id}
func (h *InventoryHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmflow/pharmflow-backend/internal/catalog/repository"
	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
)

// CatalogHandler exposes the organizational reference data over HTTP
type CatalogHandler struct {
	repo *repository.CatalogRepository
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(repo *repository.CatalogRepository) *CatalogHandler {
	return &CatalogHandler{repo: repo}
}

// Routes returns the catalog routes
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/chains", h.ListChains)
	r.Post("/chains", h.CreateChain)
	r.Get("/chains/{id}", h.GetChain)

	r.Get("/pharmacies", h.ListPharmacies)
	r.Post("/pharmacies", h.CreatePharmacy)
	r.Get("/pharmacies/{id}", h.GetPharmacy)
	r.Get("/pharmacies/{id}/warehouses", h.ListWarehouses)

	r.Post("/warehouses", h.CreateWarehouse)
	r.Get("/warehouses/{id}", h.GetWarehouse)

	r.Get("/counterparties", h.ListCounterparties)
	r.Post("/counterparties", h.CreateCounterparty)
	r.Get("/counterparties/{id}", h.GetCounterparty)

	return r
}

type createChainRequest struct {
	Name      string  `json:"name" validate:"required"`
	LegalName *string `json:"legal_name,omitempty"`
	TaxNumber *string `json:"tax_number,omitempty"`
}

func (h *CatalogHandler) CreateChain(w http.ResponseWriter, r *http.Request) {
	var req createChainRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	chain := &repository.PharmacyChain{
		Name:      req.Name,
		LegalName: req.LegalName,
		TaxNumber: req.TaxNumber,
	}
	if err := h.repo.CreateChain(r.Context(), chain); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, chain)
}

func (h *CatalogHandler) GetChain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.repo.GetChain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, chain)
}

func (h *CatalogHandler) ListChains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.repo.ListChains(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, chains)
}

type createPharmacyRequest struct {
	ChainID string  `json:"chain_id" validate:"required,uuid"`
	Name    string  `json:"name" validate:"required"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

func (h *CatalogHandler) CreatePharmacy(w http.ResponseWriter, r *http.Request) {
	var req createPharmacyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	pharmacy := &repository.Pharmacy{
		ChainID: req.ChainID,
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
	}
	if err := h.repo.CreatePharmacy(r.Context(), pharmacy); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, pharmacy)
}

func (h *CatalogHandler) GetPharmacy(w http.ResponseWriter, r *http.Request) {
	pharmacy, err := h.repo.GetPharmacy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, pharmacy)
}

func (h *CatalogHandler) ListPharmacies(w http.ResponseWriter, r *http.Request) {
	pharmacies, err := h.repo.ListPharmacies(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, pharmacies)
}

type createWarehouseRequest struct {
	PharmacyID string `json:"pharmacy_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required"`
}

func (h *CatalogHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req createWarehouseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	warehouse := &repository.Warehouse{
		PharmacyID: req.PharmacyID,
		Name:       req.Name,
	}
	if err := h.repo.CreateWarehouse(r.Context(), warehouse); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, warehouse)
}

func (h *CatalogHandler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	warehouse, err := h.repo.GetWarehouse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, warehouse)
}

func (h *CatalogHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.repo.ListWarehouses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, warehouses)
}

type createCounterpartyRequest struct {
	Name         string  `json:"name" validate:"required"`
	Type         string  `json:"type" validate:"omitempty,oneof=supplier buyer other"`
	TaxNumber    *string `json:"tax_number,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

func (h *CatalogHandler) CreateCounterparty(w http.ResponseWriter, r *http.Request) {
	var req createCounterpartyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	counterparty := &repository.Counterparty{
		Name:         req.Name,
		Type:         req.Type,
		TaxNumber:    req.TaxNumber,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
	if err := h.repo.CreateCounterparty(r.Context(), counterparty); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, counterparty)
}

func (h *CatalogHandler) GetCounterparty(w http.ResponseWriter, r *http.Request) {
	counterparty, err := h.repo.GetCounterparty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, counterparty)
}

func (h *CatalogHandler) ListCounterparties(w http.ResponseWriter, r *http.Request) {
	counterparties, err := h.repo.ListCounterparties(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, counterparties)
}

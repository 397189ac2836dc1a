package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmflow/pharmflow-backend/internal/catalog/repository"
	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
)

// ProductHandler exposes the medical product catalog over HTTP
type ProductHandler struct {
	repo *repository.ProductRepository
}

// NewProductHandler creates a new product handler
func NewProductHandler(repo *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{repo: repo}
}

// Routes returns the product routes
func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/barcode/{barcode}", h.GetByBarcode)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	return r
}

type productRequest struct {
	Name           string  `json:"name" validate:"required"`
	Manufacturer   *string `json:"manufacturer,omitempty"`
	Barcode        *string `json:"barcode,omitempty"`
	IsPrescription bool    `json:"is_prescription"`
	RetailPrice    float64 `json:"retail_price" validate:"gte=0"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	product := &repository.MedicalProduct{
		Name:           req.Name,
		Manufacturer:   req.Manufacturer,
		Barcode:        req.Barcode,
		IsPrescription: req.IsPrescription,
		RetailPrice:    req.RetailPrice,
	}
	if err := h.repo.Create(r.Context(), product); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, product)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, product)
}

func (h *ProductHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := h.repo.GetByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, product)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	product := &repository.MedicalProduct{
		ID:             chi.URLParam(r, "id"),
		Name:           req.Name,
		Manufacturer:   req.Manufacturer,
		Barcode:        req.Barcode,
		IsPrescription: req.IsPrescription,
		RetailPrice:    req.RetailPrice,
	}
	if err := h.repo.Update(r.Context(), product); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

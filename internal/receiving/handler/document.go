package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/repository"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/service"
	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
	"github.com/pharmflow/pharmflow-backend/pkg/permissions"
)

// DocumentHandler exposes the goods-receipt reconciliation engine over HTTP
type DocumentHandler struct {
	service *service.ReconciliationService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(svc *service.ReconciliationService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Routes returns the document routes
func (h *DocumentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	write := httputil.RequirePermission(permissions.PermReceivingWrite)
	scan := httputil.RequirePermission(permissions.PermReceivingScan)
	complete := httputil.RequirePermission(permissions.PermReceivingClose)

	r.Get("/", h.List)
	r.With(write).Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.With(scan).Post("/{id}/validate-scan", h.ValidateScan)
	r.With(scan).Post("/{id}/items/{itemID}/accept", h.AcceptItem)
	r.Get("/{id}/discrepancies", h.ListDiscrepancies)
	r.With(write).Post("/{id}/items/{itemID}/discrepancies", h.RegisterDiscrepancy)
	r.With(write).Delete("/{id}/discrepancies/{discrepancyID}", h.CancelDiscrepancy)
	r.With(complete).Post("/{id}/complete", h.Complete)
	r.With(write).Post("/{id}/return", h.CreateReturn)

	return r
}

// Create handles POST /documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateDocumentInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	doc, err := h.service.CreateDocument(r.Context(), httputil.GetUserID(r.Context()), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, doc)
}

// List handles GET /documents
// Accepts either ?view=<named view> or the raw type/status/has_discrepancy
// filters.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	if view := r.URL.Query().Get("view"); view != "" {
		docs, err := h.service.ListView(r.Context(), view)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, docs)
		return
	}

	var filter repository.DocumentFilter
	if t := r.URL.Query().Get("type"); t != "" {
		filter.Type = &t
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = &s
	}
	if d := r.URL.Query().Get("has_discrepancy"); d != "" {
		has := d == "true"
		filter.HasDiscrepancy = &has
	}

	docs, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, docs)
}

// Get handles GET /documents/{id}
// An optional ?view= narrows the lookup to a named view's predicates.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	var (
		doc *repository.Document
		err error
	)
	if view := r.URL.Query().Get("view"); view != "" {
		doc, err = h.service.GetView(r.Context(), view, chi.URLParam(r, "id"))
	} else {
		doc, err = h.service.Get(r.Context(), chi.URLParam(r, "id"))
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, doc)
}

type validateScanRequest struct {
	BatchNumber string `json:"batch_number" validate:"required"`
}

// ValidateScan handles POST /documents/{id}/validate-scan
func (h *DocumentHandler) ValidateScan(w http.ResponseWriter, r *http.Request) {
	var req validateScanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.ValidateScannedProduct(r.Context(), chi.URLParam(r, "id"), req.BatchNumber)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// AcceptItem handles POST /documents/{id}/items/{itemID}/accept
func (h *DocumentHandler) AcceptItem(w http.ResponseWriter, r *http.Request) {
	var input service.AcceptItemInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.AcceptScannedItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// ListDiscrepancies handles GET /documents/{id}/discrepancies
func (h *DocumentHandler) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListDiscrepancies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// RegisterDiscrepancy handles POST /documents/{id}/items/{itemID}/discrepancies
func (h *DocumentHandler) RegisterDiscrepancy(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterDiscrepancyInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	d, err := h.service.RegisterDiscrepancy(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, d)
}

// CancelDiscrepancy handles DELETE /documents/{id}/discrepancies/{discrepancyID}
func (h *DocumentHandler) CancelDiscrepancy(w http.ResponseWriter, r *http.Request) {
	err := h.service.CancelDiscrepancy(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "discrepancyID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Complete handles POST /documents/{id}/complete
func (h *DocumentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.CompleteIncomingDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, doc)
}

// CreateReturn handles POST /documents/{id}/return
func (h *DocumentHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CreateReturnDocument(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
	"github.com/pharmflow/pharmflow-backend/pkg/permissions"
)

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		permission string
		wantStatus int
	}{
		{"admin can complete", "admin", permissions.PermReceivingClose, http.StatusOK},
		{"manager can complete", "manager", permissions.PermReceivingClose, http.StatusOK},
		{"pharmacist cannot complete", "pharmacist", permissions.PermReceivingClose, http.StatusForbidden},
		{"pharmacist can scan", "pharmacist", permissions.PermReceivingScan, http.StatusOK},
		{"unknown role gets nothing", "intern", permissions.PermCatalogRead, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := httputil.RequirePermission(tt.permission)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(httputil.WithUserContext(req.Context(), "user-1", "u@x.test", tt.role))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var captured string
	handler := httputil.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = httputil.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", captured)
}

package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess(t *testing.T) {
	resp, err := Success(map[string]any{"mensagem": "Olá <b>"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "Content-Type", resp.Headers["Access-Control-Allow-Headers"])
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	assert.Equal(t, `{"mensagem":"Olá <b>"}`, resp.Body)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        errs.New(errs.ErrValidation, errs.WithMsg("cliente name is required")),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"cliente name is required"}`,
		},
		{
			name:       "not found",
			err:        errs.New(errs.ErrNotFound, errs.WithMsg("order not found")),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"order not found"}`,
		},
		{
			name:       "store error hides detail",
			err:        errs.New(errs.ErrStore, errs.WithMsg("dial tcp: refused")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal error"}`,
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := FromError(tt.err, "internal error")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
		})
	}
}

func TestHandle(t *testing.T) {
	h := Handle("internal error while creating order", func(*http.Request) (Response, error) {
		return Response{}, errors.New("secret detail")
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"internal error while creating order"}`, rec.Body.String())
}

package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"slug": "acme-corp"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"slug":"acme-corp"}`, rec.Body.String())
}

func TestWriteErrorCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorCode(rec, http.StatusConflict, "conflict", "slug taken")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"slug taken","code":"conflict"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes a valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme"}`))
		var p payload
		require.NoError(t, DecodeJSON(req, &p))
		assert.Equal(t, "Acme", p.Name)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme","extra":1}`))
		var p payload
		assert.Error(t, DecodeJSON(req, &p))
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var p payload
		assert.Error(t, DecodeJSON(req, &p))
	})
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x", nil)

	assert.Equal(t, 25, QueryInt(req, "limit", 50))
	assert.Equal(t, 50, QueryInt(req, "missing", 50))
	assert.Equal(t, 50, QueryInt(req, "bad", 50))
}

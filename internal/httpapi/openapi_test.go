package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/config"
)

func TestBuildOpenAPI(t *testing.T) {
	doc := BuildOpenAPI(testCatalog(t), "Sales API", "http://localhost:8080/")

	assert.Equal(t, "3.0.0", doc.OpenAPI)
	assert.Equal(t, "Sales API", doc.Info.Title)
	require.Len(t, doc.Paths, 3)

	op := doc.Paths["/monthly-sales"]["get"]
	assert.Equal(t, "monthly-sales", op.OperationID)
	assert.Equal(t, "Sales per month", op.Summary)
	assert.Equal(t, []map[string][]string{}, op.Security, "public resources override global security")
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, Parameter{
		Name:        "month",
		In:          "query",
		Description: "Month to show",
		Schema:      Schema{Type: "string", Enum: []string{"jan", "feb"}},
	}, op.Parameters[0])

	top := doc.Paths["/top"]["get"].Parameters[0]
	assert.True(t, top.Required)
	assert.Equal(t, "number", top.Schema.Type)

	assert.Nil(t, doc.Paths["/regional"]["get"].Security)
	assert.Equal(t, "bearer", doc.Components.SecuritySchemes["BearerAuth"].Scheme)
}

func TestSwaggerEndpoint(t *testing.T) {
	s := newTestServer(t, Options{Docs: config.DocsConfig{Enabled: true, Title: "Sales API"}})

	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	req.Host = "api.example.com"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, []any{map[string]any{"url": "http://api.example.com/"}}, doc["servers"])
	assert.Contains(t, doc["paths"], "/regional")

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger")
}

func TestSwaggerDisabled(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/resource"
)

// OpenAPI is the subset of an OpenAPI 3.0 document generated for a catalog.
type OpenAPI struct {
	OpenAPI    string                          `json:"openapi"`
	Info       OpenAPIInfo                     `json:"info"`
	Servers    []OpenAPIServer                 `json:"servers,omitempty"`
	Paths      map[string]map[string]Operation `json:"paths"`
	Components Components                      `json:"components"`
	Security   []map[string][]string           `json:"security"`
}

type OpenAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type OpenAPIServer struct {
	URL string `json:"url"`
}

// Operation documents one method on one resource path.
type Operation struct {
	OperationID string                `json:"operationId"`
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	Parameters  []Parameter           `json:"parameters"`
	Responses   map[string]Response   `json:"responses"`
	Security    []map[string][]string `json:"security,omitempty"`
}

type Parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Schema      Schema `json:"schema"`
}

type Schema struct {
	Type    string   `json:"type"`
	Format  string   `json:"format,omitempty"`
	Default any      `json:"default,omitempty"`
	Enum    []string `json:"enum,omitempty"`
}

type Response struct {
	Description string `json:"description"`
}

type Components struct {
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes"`
}

type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme"`
	BearerFormat string `json:"bearerFormat"`
}

const bearerScheme = "BearerAuth"

// BuildOpenAPI documents every resource in c as a GET operation on its path.
// serverURL may be empty.
func BuildOpenAPI(c *resource.Catalog, title, serverURL string) OpenAPI {
	doc := OpenAPI{
		OpenAPI: "3.0.0",
		Info:    OpenAPIInfo{Title: title, Version: ir.Version},
		Paths:   make(map[string]map[string]Operation, c.Len()),
		Components: Components{SecuritySchemes: map[string]SecurityScheme{
			bearerScheme: {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		}},
		Security: []map[string][]string{{bearerScheme: {}}},
	}
	if serverURL != "" {
		doc.Servers = []OpenAPIServer{{URL: serverURL}}
	}

	for _, r := range c.Resources() {
		op := Operation{
			OperationID: r.ID(),
			Summary:     r.Summary(),
			Description: r.Description(),
			Parameters:  parameters(r),
			Responses: map[string]Response{
				"200": {Description: "A JSON document in the " + r.FormatterName() + " format"},
				"400": {Description: "Invalid parameter"},
				"401": {Description: "Authentication required"},
				"403": {Description: "Forbidden by an authorization rule"},
			},
		}
		if !r.RequiresAuthentication() {
			op.Security = []map[string][]string{}
		}
		doc.Paths[r.Path()] = map[string]Operation{"get": op}
	}
	return doc
}

func parameters(r *resource.Resource) []Parameter {
	docs := r.Parameters()
	out := make([]Parameter, 0, len(docs))
	for _, d := range docs {
		p := Parameter{
			Name:        d.Name,
			In:          "query",
			Description: d.Description,
			Required:    d.Mandatory,
			Schema:      Schema{Type: d.Type, Format: d.Format, Default: d.Default, Enum: d.ValidValues},
		}
		out = append(out, p)
	}
	return out
}

// serverURL reconstructs the externally visible base URL of r.
func serverURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(proto)
	}
	return scheme + "://" + r.Host + "/"
}

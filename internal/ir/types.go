package ir

// Object kinds accepted in definition files.
const (
	KindResource   = "resource"
	KindSnippet    = "snippet"
	KindDatasource = "datasource"
)

// DefaultEngineName names the engine used by resources without a datasource.
const DefaultEngineName = "__default__"

// ResourceSpec represents a compiled resource definition.
type ResourceSpec struct {
	ID                     string         `json:"id"`
	Path                   string         `json:"path"`
	Summary                string         `json:"summary,omitempty"`
	Description            string         `json:"description,omitempty"`
	Query                  string         `json:"query"`
	Datasource             string         `json:"datasource,omitempty"`
	Formatter              string         `json:"formatter"`
	RequiresAuthentication bool           `json:"requires_authentication"`
	Authorization          []AuthzRule    `json:"authorization,omitempty"`
	Parameters             []ParamSpec    `json:"parameters,omitempty"`
	Config                 map[string]any `json:"config,omitempty"`
	Source                 string         `json:"source,omitempty"` // file the definition came from
}

// AuthzRule is a named SQL predicate. The request is allowed only if the
// rendered predicate returns at least one row.
type AuthzRule struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// ParamSpec declares a typed request parameter.
type ParamSpec struct {
	Kind        string   `json:"kind"` // "String", "Number", "Date", "DateTime"
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Mandatory   bool     `json:"mandatory"`
	Default     any      `json:"default_value,omitempty"`
	ValidValues []string `json:"valid_values,omitempty"`
	Format      string   `json:"format,omitempty"` // Date/DateTime only
}

// SnippetSpec is a named template fragment includable from resource queries.
type SnippetSpec struct {
	ID       string `json:"id"`
	Template string `json:"template"`
	Source   string `json:"source,omitempty"`
}

// DatasourceSpec describes how to open an engine.
type DatasourceSpec struct {
	ID        string   `json:"id"`
	Driver    string   `json:"driver"` // "sqlite", "postgres", "mysql"
	URL       string   `json:"url"`
	BindStyle string   `json:"bind_style,omitempty"` // empty = driver default
	Init      []string `json:"init,omitempty"`       // statements run once on open
	Source    string   `json:"source,omitempty"`
}

// Definitions is the full set of compiled objects loaded from a directory.
type Definitions struct {
	Resources   []ResourceSpec   `json:"resources"`
	Snippets    []SnippetSpec    `json:"snippets"`
	Datasources []DatasourceSpec `json:"datasources"`
}

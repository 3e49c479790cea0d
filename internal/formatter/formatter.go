// Package formatter reshapes a query result Table into a response document.
package formatter

import (
	"fmt"
	"strings"

	"github.com/imgaoyue/squealy/internal/ir"
)

// Formatter converts a Table into a caller-facing document.
// Implementations are stateless and safe for concurrent use.
type Formatter interface {
	Name() string
	Format(t *ir.Table) (any, error)
}

// Canonical formatter names.
const (
	NameSimple       = "SimpleFormatter"
	NameJSON         = "JsonFormatter"
	NameSeries       = "SeriesFormatter"
	NameGoogleCharts = "GoogleChartsFormatter"
)

// New returns the formatter registered under name. An empty name selects
// Simple. Unknown names are configuration errors.
func New(name string) (Formatter, error) {
	switch strings.TrimSpace(name) {
	case "", "Simple", NameSimple:
		return Simple{}, nil
	case "Json", "JSON", NameJSON:
		return JSON{}, nil
	case "Series", NameSeries:
		return Series{}, nil
	case "GoogleCharts", NameGoogleCharts:
		return GoogleCharts{}, nil
	default:
		return nil, fmt.Errorf("unknown formatter %q (want one of %s, %s, %s, %s)",
			name, NameSimple, NameJSON, NameSeries, NameGoogleCharts)
	}
}

// SimpleDoc is {"columns": [...], "data": [[...]]}.
type SimpleDoc struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// Simple returns columns and rows verbatim.
type Simple struct{}

func (Simple) Name() string { return NameSimple }

func (Simple) Format(t *ir.Table) (any, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	rows := t.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return SimpleDoc{Columns: t.Columns, Data: rows}, nil
}

// JSONDoc is {"data": [{col: value, ...}, ...]}.
type JSONDoc struct {
	Data []*Object `json:"data"`
}

// JSON zips each row with the column names. Row and column order are kept.
type JSON struct{}

func (JSON) Name() string { return NameJSON }

func (JSON) Format(t *ir.Table) (any, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	data := make([]*Object, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := NewObject(len(t.Columns))
		for i, c := range t.Columns {
			obj.Set(c, row[i])
		}
		data = append(data, obj)
	}
	return JSONDoc{Data: data}, nil
}

// SeriesDoc is {"data": {col: [v1, v2, ...], ...}}.
type SeriesDoc struct {
	Data *Object `json:"data"`
}

// Series transposes the table into one array per column.
type Series struct{}

func (Series) Name() string { return NameSeries }

func (Series) Format(t *ir.Table) (any, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	obj := NewObject(len(t.Columns))
	for _, c := range t.Columns {
		col, _ := t.Column(c)
		obj.Set(c, col)
	}
	return SeriesDoc{Data: obj}, nil
}

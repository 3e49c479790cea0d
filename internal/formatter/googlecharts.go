package formatter

import "github.com/imgaoyue/squealy/internal/ir"

// GoogleChartsDoc is the Google Visualization DataTable literal.
type GoogleChartsDoc struct {
	Cols []ChartCol `json:"cols"`
	Rows []ChartRow `json:"rows"`
}

// ChartCol describes one column.
type ChartCol struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"` // "number" or "string"
}

// ChartRow is {"c": [{"v": value}, ...]}.
type ChartRow struct {
	C []ChartCell `json:"c"`
}

// ChartCell wraps one value.
type ChartCell struct {
	V any `json:"v"`
}

// GoogleCharts infers column types from the first row only: a column is
// "number" when its first-row cell is an integer or float, else "string".
// With no rows every column is "string".
type GoogleCharts struct{}

func (GoogleCharts) Name() string { return NameGoogleCharts }

func (GoogleCharts) Format(t *ir.Table) (any, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	cols := make([]ChartCol, len(t.Columns))
	for i, c := range t.Columns {
		typ := "string"
		if len(t.Rows) > 0 && isNumber(t.Rows[0][i]) {
			typ = "number"
		}
		cols[i] = ChartCol{ID: c, Label: c, Type: typ}
	}
	rows := make([]ChartRow, len(t.Rows))
	for r, row := range t.Rows {
		cells := make([]ChartCell, len(row))
		for i, v := range row {
			cells[i] = ChartCell{V: v}
		}
		rows[r] = ChartRow{C: cells}
	}
	return GoogleChartsDoc{Cols: cols, Rows: rows}, nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

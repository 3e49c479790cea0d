package ir

import "fmt"

// Table is the normalized in-memory result of a query.
// Columns are in SQL result order; every row is aligned to Columns.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable creates a table and validates row widths.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	t := &Table{Columns: columns, Rows: rows}
	if t.Columns == nil {
		t.Columns = []string{}
	}
	if t.Rows == nil {
		t.Rows = [][]any{}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that column names are unique and that every row has
// exactly len(Columns) cells.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the values of the named column, in row order.
func (t *Table) Column(name string) ([]any, bool) {
	for i, c := range t.Columns {
		if c == name {
			out := make([]any, len(t.Rows))
			for r, row := range t.Rows {
				out[r] = row[i]
			}
			return out, true
		}
	}
	return nil, false
}

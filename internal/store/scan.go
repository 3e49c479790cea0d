package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imgaoyue/squealy/internal/ir"
)

// numericTypes are database type names whose text values are parsed back
// into numbers.
var numericTypes = map[string]bool{
	"INT": true, "INTEGER": true, "TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "BIGINT": true,
	"INT2": true, "INT4": true, "INT8": true,
	"DECIMAL": true, "NUMERIC": true, "FLOAT": true, "DOUBLE": true, "REAL": true,
	"FLOAT4": true, "FLOAT8": true,
	"UNSIGNED INT": true, "UNSIGNED BIGINT": true, "UNSIGNED TINYINT": true, "UNSIGNED SMALLINT": true,
}

// scanTable reads every row. Returns an empty table (not nil rows) when the
// result set is empty. With numericText set, text values of numeric columns
// are parsed into numbers.
func scanTable(rows *sql.Rows, numericText bool) (*ir.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	numeric := make([]bool, len(columns))
	if numericText {
		if types, err := rows.ColumnTypes(); err == nil {
			for i, ct := range types {
				if ct != nil && i < len(numeric) {
					numeric[i] = numericTypes[strings.ToUpper(ct.DatabaseTypeName())]
				}
			}
		}
	}

	data := [][]any{}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range cells {
			cells[i] = normalizeValue(v, numeric[i])
		}
		data = append(data, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return ir.NewTable(columns, data)
}

// normalizeValue maps driver values onto the Table cell types.
func normalizeValue(v any, numeric bool) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeText(string(x), numeric)
	case string:
		return normalizeText(x, numeric)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return uint64ToCell(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return uint64ToCell(x)
	case float32:
		return float64(x)
	case float64, bool, time.Time:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func normalizeText(s string, numeric bool) any {
	if !numeric {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func uint64ToCell(u uint64) any {
	if u <= 1<<63-1 {
		return int64(u)
	}
	return float64(u)
}

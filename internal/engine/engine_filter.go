package engine

import (
	"fmt"
	"pagedb/internal/sql"
)

// filterRowsWhere filters rows according to a WHERE expression, supporting
// the same comparison operators as UPDATE/DELETE (see conditionMatches).
func filterRowsWhere(cols []string, rows []sql.Row, where *sql.WhereExpr) ([]sql.Row, error) {
	// Map column name -> index
	colIndex := make(map[string]int, len(cols))
	for i, name := range cols {
		colIndex[name] = i
	}

	idx, ok := colIndex[where.Column]
	if !ok {
		return nil, fmt.Errorf("SELECT: unknown column %q in WHERE", where.Column)
	}

	var out []sql.Row
	for _, row := range rows {
		if idx < 0 || idx >= len(row) {
			continue
		}
		if conditionMatches(row[idx], where.Op, where.Value) {
			out = append(out, row)
		}
	}

	return out, nil
}

package engine

import (
	"fmt"
	"pagedb/internal/sql"
)

// projectColumns narrows a rowset down to the named columns, in the order
// requested by a SELECT's column list.
func projectColumns(cols []string, rows []sql.Row, selectCols []string) ([]string, []sql.Row, error) {
	colIndex := make(map[string]int, len(cols))
	for i, name := range cols {
		colIndex[name] = i
	}

	idxs := make([]int, len(selectCols))
	for i, name := range selectCols {
		idx, ok := colIndex[name]
		if !ok {
			return nil, nil, fmt.Errorf("SELECT: unknown column %q", name)
		}
		idxs[i] = idx
	}

	projRows := make([]sql.Row, len(rows))
	for i, row := range rows {
		newRow := make(sql.Row, len(idxs))
		for j, idx := range idxs {
			newRow[j] = row[idx]
		}
		projRows[i] = newRow
	}

	return selectCols, projRows, nil
}

package engine

import (
	"fmt"
	"pagedb/internal/sql"
)

// compareValues returns -1, 0, or 1 comparing a against b. Both values must
// share the same DataType; mixed-type comparisons are rejected rather than
// coerced.
func compareValues(a, b sql.Value) (int, error) {
	if a.Type != b.Type {
		return 0, fmt.Errorf("cannot compare values of different types (%v vs %v)", a.Type, b.Type)
	}

	switch a.Type {
	case sql.TypeInt:
		switch {
		case a.I64 < b.I64:
			return -1, nil
		case a.I64 > b.I64:
			return 1, nil
		default:
			return 0, nil
		}
	case sql.TypeFloat:
		switch {
		case a.F64 < b.F64:
			return -1, nil
		case a.F64 > b.F64:
			return 1, nil
		default:
			return 0, nil
		}
	case sql.TypeString:
		switch {
		case a.S < b.S:
			return -1, nil
		case a.S > b.S:
			return 1, nil
		default:
			return 0, nil
		}
	case sql.TypeBool:
		if a.B == b.B {
			return 0, nil
		}
		if !a.B && b.B {
			return -1, nil
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported value type for comparison: %v", a.Type)
	}
}

// conditionMatches evaluates "value op cmp" for a WHERE clause. Comparison
// errors (type mismatches) are treated as non-matches rather than surfaced,
// since a WHERE clause against a mistyped column should filter out the row,
// not abort the whole statement.
func conditionMatches(value sql.Value, op string, cmp sql.Value) bool {
	c, err := compareValues(value, cmp)
	if err != nil {
		return false
	}

	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

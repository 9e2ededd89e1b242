package engine

import (
	"pagedb/internal/sql"
	"pagedb/internal/storage/memstore"
	"testing"
)

// TestEngineCreateInsertSelectAll checks the engine API end-to-end
// using the in-memory storage engine.
func TestEngineCreateInsertSelectAll(t *testing.T) {
	// 1. Set up engine with memstore.
	store := memstore.New()
	eng := New(store)

	if err := eng.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 2. Create table "users".
	if err := eng.CreateTable("users", []sql.Column{
		{Name: "id", Type: sql.TypeInt},
		{Name: "name", Type: sql.TypeString},
		{Name: "active", Type: sql.TypeBool},
	}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	// 3. Insert two rows via engine API.
	row1 := sql.Row{
		{Type: sql.TypeInt, I64: 1},
		{Type: sql.TypeString, S: "Alice"},
		{Type: sql.TypeBool, B: true},
	}
	row2 := sql.Row{
		{Type: sql.TypeInt, I64: 2},
		{Type: sql.TypeString, S: "Bob"},
		{Type: sql.TypeBool, B: false},
	}

	if err := eng.InsertRow("users", row1); err != nil {
		t.Fatalf("InsertRow row1 failed: %v", err)
	}
	if err := eng.InsertRow("users", row2); err != nil {
		t.Fatalf("InsertRow row2 failed: %v", err)
	}

	// 4. SelectAll and assert results.
	cols, rows, err := eng.SelectAll("users")
	if err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}

	// Check columns
	expectedCols := []string{"id", "name", "active"}
	if len(cols) != len(expectedCols) {
		t.Fatalf("expected %d columns, got %d", len(expectedCols), len(cols))
	}
	for i, want := range expectedCols {
		if cols[i] != want {
			t.Fatalf("column %d: expected %q, got %q", i, want, cols[i])
		}
	}

	// Check rows
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	checkRow := func(row sql.Row, id int64, name string, active bool) {
		if len(row) != 3 {
			t.Fatalf("expected 3 values in row, got %d", len(row))
		}
		if row[0].Type != sql.TypeInt || row[0].I64 != id {
			t.Fatalf("id: expected %d, got (type=%v, value=%d)", id, row[0].Type, row[0].I64)
		}
		if row[1].Type != sql.TypeString || row[1].S != name {
			t.Fatalf("name: expected %q, got (type=%v, value=%q)", name, row[1].Type, row[1].S)
		}
		if row[2].Type != sql.TypeBool || row[2].B != active {
			t.Fatalf("active: expected %v, got (type=%v, value=%v)", active, row[2].Type, row[2].B)
		}
	}

	checkRow(rows[0], 1, "Alice", true)
	checkRow(rows[1], 2, "Bob", false)
}

// TestEngineExecuteDispatch checks that Execute correctly routes every
// statement kind through to its handler, including the ones that used to be
// unreachable before the statement parser was wired up.
func TestEngineExecuteDispatch(t *testing.T) {
	store := memstore.NewWithDir(t.TempDir())
	eng := New(store)

	if err := eng.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mustExecute := func(stmt sql.Statement) ([]string, []sql.Row) {
		t.Helper()
		cols, rows, err := eng.Execute(stmt)
		if err != nil {
			t.Fatalf("Execute(%T) failed: %v", stmt, err)
		}
		return cols, rows
	}

	mustExecute(&sql.CreateTableStmt{
		TableName: "users",
		Columns: []sql.Column{
			{Name: "id", Type: sql.TypeInt},
			{Name: "name", Type: sql.TypeString},
		},
	})

	mustExecute(&sql.InsertStmt{
		TableName: "users",
		Values:    sql.Row{{Type: sql.TypeInt, I64: 1}, {Type: sql.TypeString, S: "Alice"}},
	})
	mustExecute(&sql.InsertStmt{
		TableName: "users",
		Values:    sql.Row{{Type: sql.TypeInt, I64: 2}, {Type: sql.TypeString, S: "Bob"}},
	})

	mustExecute(&sql.CreateIndexStmt{IndexName: "idx_id", TableName: "users", ColumnName: "id"})

	_, rows := mustExecute(&sql.SelectStmt{
		TableName: "users",
		Where:     &sql.WhereExpr{Column: "id", Op: ">", Value: sql.Value{Type: sql.TypeInt, I64: 1}},
	})
	if len(rows) != 1 || rows[0][1].S != "Bob" {
		t.Fatalf("expected 1 row for Bob, got %+v", rows)
	}

	mustExecute(&sql.UpdateStmt{
		TableName:   "users",
		Assignments: []sql.Assignment{{Column: "name", Value: sql.Value{Type: sql.TypeString, S: "Bobby"}}},
		Where:       &sql.WhereExpr{Column: "id", Op: "=", Value: sql.Value{Type: sql.TypeInt, I64: 2}},
	})

	_, rows = mustExecute(&sql.SelectStmt{TableName: "users"})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after update, got %d", len(rows))
	}

	mustExecute(&sql.DeleteStmt{
		TableName: "users",
		Where:     &sql.WhereExpr{Column: "id", Op: "=", Value: sql.Value{Type: sql.TypeInt, I64: 1}},
	})

	_, rows = mustExecute(&sql.SelectStmt{TableName: "users"})
	if len(rows) != 1 || rows[0][1].S != "Bobby" {
		t.Fatalf("expected only the renamed Bobby row, got %+v", rows)
	}

	mustExecute(&sql.BeginTxStmt{})
	mustExecute(&sql.CommitTxStmt{})
}

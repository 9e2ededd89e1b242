package engine

import (
	"fmt"
	"pagedb/internal/sql"
)

// CreateTable creates a new table in the underlying storage engine.
func (e *DBEngine) CreateTable(name string, cols []sql.Column) error {
	if !e.started {
		return fmt.Errorf("engine not started")
	}
	return e.store.CreateTable(name, cols)
}

// CreateIndex builds a secondary B-Tree index on tableName.columnName.
func (e *DBEngine) CreateIndex(indexName, tableName, columnName string) error {
	if !e.started {
		return fmt.Errorf("engine not started")
	}
	return e.store.CreateIndex(indexName, tableName, columnName)
}

// ListTables returns the names of every table known to the engine.
func (e *DBEngine) ListTables() ([]string, error) {
	if !e.started {
		return nil, fmt.Errorf("engine not started")
	}
	return e.store.ListTables()
}

// TableSchema returns the column definitions for a known table.
func (e *DBEngine) TableSchema(name string) ([]sql.Column, error) {
	if !e.started {
		return nil, fmt.Errorf("engine not started")
	}
	return e.store.TableSchema(name)
}

// Package table defines the in-memory tabular structure exchanged between
// decode, transform and encode stages.
//
// A Table has ordered, uniquely named columns and rows of heterogeneous
// cell values. Every row holds exactly one cell per column; a nil cell is
// a missing value.
package table

import (
	"fmt"

	"github.com/koustreak/xetra/internal/errs"
)

// Table is an ordered set of named columns and their rows.
// It is not safe for concurrent mutation.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New creates an empty table with the given columns.
// Column names must be unique.
func New(columns ...string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, errs.New(errs.ErrKindInvalidInput, "duplicate column name").WithSubject(c)
		}
		index[c] = i
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, index: index}, nil
}

// MustNew is like New but panics on duplicate columns.
// Intended for fixed, compile-time column sets.
func MustNew(columns ...string) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	i, ok := t.index[name]
	if !ok {
		return -1
	}
	return i
}

// HasColumn reports whether the table has a column with that name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Append adds a row. The number of cells must match the number of columns.
func (t *Table) Append(cells ...any) error {
	if len(cells) != len(t.columns) {
		return errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("row has %d cells, table has %d columns", len(cells), len(t.columns)))
	}
	row := make([]any, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// Row returns the cells of row i. The slice is shared with the table.
func (t *Table) Row(i int) []any {
	return t.rows[i]
}

// Rows returns all rows. The slices are shared with the table.
func (t *Table) Rows() [][]any {
	return t.rows
}

// Value returns the cell at row i under the named column.
func (t *Table) Value(i int, column string) (any, bool) {
	j, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.rows) {
		return nil, false
	}
	return t.rows[i][j], true
}

// Column returns a copy of every cell in the named column.
func (t *Table) Column(name string) ([]any, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// Select returns a new table holding only the named columns, in the order given.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for k, c := range columns {
		j, ok := t.index[c]
		if !ok {
			return nil, errs.New(errs.ErrKindInvalidInput, "unknown column").WithSubject(c)
		}
		idx[k] = j
	}
	out, err := New(columns...)
	if err != nil {
		return nil, err
	}
	out.rows = make([][]any, len(t.rows))
	for i, row := range t.rows {
		sel := make([]any, len(idx))
		for k, j := range idx {
			sel[k] = row[j]
		}
		out.rows[i] = sel
	}
	return out, nil
}

// Concat appends the rows of other. Both tables must have the same
// columns in the same order. A table with no columns adopts other's columns.
func (t *Table) Concat(other *Table) error {
	if other == nil {
		return nil
	}
	if len(t.columns) == 0 && len(t.rows) == 0 {
		t.columns = other.Columns()
		t.index = make(map[string]int, len(t.columns))
		for i, c := range t.columns {
			t.index[c] = i
		}
	}
	if !sameColumns(t.columns, other.columns) {
		return errs.New(errs.ErrKindInvalidInput, "cannot concatenate tables with different columns")
	}
	for _, row := range other.rows {
		cp := make([]any, len(row))
		copy(cp, row)
		t.rows = append(t.rows, cp)
	}
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

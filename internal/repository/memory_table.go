package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryTable is an in-process Table. It backs STORE_DRIVER=memory and tests.
type MemoryTable struct {
	mu   sync.Mutex
	rows [][]string
}

// NewMemoryTable creates a table holding a copy of the given rows.
func NewMemoryTable(rows ...[]string) *MemoryTable {
	t := &MemoryTable{}
	for _, r := range rows {
		t.rows = append(t.rows, append([]string(nil), r...))
	}
	return t
}

func (t *MemoryTable) Row(_ context.Context, row int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row < 1 || row > len(t.rows) {
		return []string{}, nil
	}
	return append([]string(nil), t.rows[row-1]...), nil
}

func (t *MemoryTable) WriteRow(_ context.Context, row int, values []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}
	t.grow(row)
	r := t.rows[row-1]
	for len(r) < len(values) {
		r = append(r, "")
	}
	copy(r, values)
	t.rows[row-1] = r
	return nil
}

func (t *MemoryTable) Append(_ context.Context, values []any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := make([]string, len(values))
	for i, v := range values {
		r[i] = fmt.Sprint(v)
	}
	t.rows = append(t.rows, r)
	return nil
}

func (t *MemoryTable) Rows(_ context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (t *MemoryTable) Cell(_ context.Context, row, col int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row < 1 || row > len(t.rows) {
		return "", nil
	}
	r := t.rows[row-1]
	if col < 1 || col > len(r) {
		return "", nil
	}
	return r[col-1], nil
}

func (t *MemoryTable) SetCell(_ context.Context, row, col int, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d:%d", row, col)
	}
	t.grow(row)
	r := t.rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	t.rows[row-1] = r
	return nil
}

func (t *MemoryTable) Resize(_ context.Context, rows int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rows < len(t.rows) {
		t.rows = t.rows[:rows]
	}
	return nil
}

// grow extends the table with empty rows so that row exists. Caller holds mu.
func (t *MemoryTable) grow(row int) {
	for len(t.rows) < row {
		t.rows = append(t.rows, []string{})
	}
}

package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/stemsi/help-queue/internal/model"
)

// HelpRequestRepository maps queue operations onto the rows of a Table.
// Columns follow model.Header; row 1 is the header and data starts at row 2.
type HelpRequestRepository struct {
	table Table
}

// NewHelpRequestRepository creates a new HelpRequestRepository.
func NewHelpRequestRepository(table Table) *HelpRequestRepository {
	return &HelpRequestRepository{table: table}
}

// EnsureHeaders overwrites row 1 unless it already equals model.Header.
func (r *HelpRequestRepository) EnsureHeaders(ctx context.Context) error {
	existing, err := r.table.Row(ctx, 1)
	if err != nil {
		return err
	}
	if slices.Equal(existing, model.Header) {
		return nil
	}
	return r.table.WriteRow(ctx, 1, model.Header)
}

// AppendRow appends one data row. Id uniqueness is not checked here.
func (r *HelpRequestRepository) AppendRow(ctx context.Context, fields []any) error {
	return r.table.Append(ctx, fields)
}

// ListRows returns every data row keyed by column name, in store order.
// Short rows are padded with empty strings.
func (r *HelpRequestRepository) ListRows(ctx context.Context) ([]map[string]string, error) {
	rows, err := r.table.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return []map[string]string{}, nil
	}

	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(model.Header))
		for i, col := range model.Header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateCell overwrites one cell. rowIndex is 1-based with the header at 1.
func (r *HelpRequestRepository) UpdateCell(ctx context.Context, rowIndex int, column, value string) error {
	col, err := columnIndex(column)
	if err != nil {
		return err
	}
	if rowIndex < 2 {
		return fmt.Errorf("row %d is not a data row", rowIndex)
	}
	return r.table.SetCell(ctx, rowIndex, col, value)
}

// ReadCell reads one cell. rowIndex is 1-based with the header at 1.
func (r *HelpRequestRepository) ReadCell(ctx context.Context, rowIndex int, column string) (string, error) {
	col, err := columnIndex(column)
	if err != nil {
		return "", err
	}
	return r.table.Cell(ctx, rowIndex, col)
}

// Truncate removes every data row, keeping only row 1.
func (r *HelpRequestRepository) Truncate(ctx context.Context) error {
	return r.table.Resize(ctx, 1)
}

// DataRowIndex converts a 0-based ListRows position to a sheet row number.
func DataRowIndex(pos int) int {
	return pos + 2
}

func columnIndex(column string) (int, error) {
	i := slices.Index(model.Header, column)
	if i < 0 {
		return 0, fmt.Errorf("unknown column %q", column)
	}
	return i + 1, nil
}

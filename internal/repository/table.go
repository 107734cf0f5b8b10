package repository

import "context"

// Table is raw, 1-based row/column access to a single spreadsheet tab.
// Row 1 is the header row. Implementations perform one round trip per call
// and keep no copy of row contents between calls.
type Table interface {
	// Row returns the cells of one row; a missing row is an empty slice.
	Row(ctx context.Context, row int) ([]string, error)
	// WriteRow overwrites the first len(values) cells of a row.
	WriteRow(ctx context.Context, row int, values []string) error
	// Append adds one row after the last non-empty row.
	Append(ctx context.Context, values []any) error
	// Rows returns every row, header included, top to bottom.
	Rows(ctx context.Context) ([][]string, error)
	// Cell reads one cell; an empty or missing cell is "".
	Cell(ctx context.Context, row, col int) (string, error)
	// SetCell overwrites one cell.
	SetCell(ctx context.Context, row, col int, value string) error
	// Resize keeps only the first rows rows.
	Resize(ctx context.Context, rows int) error
}

// columnLetter converts a 1-based column index to A1 notation (1 → A, 27 → AA).
func columnLetter(col int) string {
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}

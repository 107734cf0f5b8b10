package repository

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"

	"github.com/stemsi/help-queue/internal/database"
	"github.com/stemsi/help-queue/internal/model"
)

const (
	valueInputRaw       = "RAW"
	insertDataOverwrite = "OVERWRITE"
)

// SheetTable is a Table backed by one Google Sheets tab.
type SheetTable struct {
	conn  *database.SheetConnector
	width int
}

// NewSheetTable creates a SheetTable spanning width columns.
func NewSheetTable(conn *database.SheetConnector, width int) *SheetTable {
	return &SheetTable{conn: conn, width: width}
}

func (t *SheetTable) Row(ctx context.Context, row int) ([]string, error) {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rng := a1(h.SheetName, fmt.Sprintf("A%d:%s%d", row, columnLetter(t.width), row))
	vr, err := h.Service.Spreadsheets.Values.Get(h.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrConnection, rng, err)
	}
	if len(vr.Values) == 0 {
		return []string{}, nil
	}
	return toStrings(vr.Values[0]), nil
}

func (t *SheetTable) WriteRow(ctx context.Context, row int, values []string) error {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return err
	}
	rng := a1(h.SheetName, fmt.Sprintf("A%d:%s%d", row, columnLetter(len(values)), row))
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	_, err = h.Service.Spreadsheets.Values.Update(h.SpreadsheetID, rng, &sheets.ValueRange{
		Values: [][]any{cells},
	}).ValueInputOption(valueInputRaw).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrConnection, rng, err)
	}
	return nil
}

func (t *SheetTable) Append(ctx context.Context, values []any) error {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return err
	}
	rng := a1(h.SheetName, "A1")
	_, err = h.Service.Spreadsheets.Values.Append(h.SpreadsheetID, rng, &sheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption(valueInputRaw).InsertDataOption(insertDataOverwrite).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: append to %s: %w", model.ErrConnection, h.SheetName, err)
	}
	return nil
}

func (t *SheetTable) Rows(ctx context.Context) ([][]string, error) {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rng := a1(h.SheetName, "A:"+columnLetter(t.width))
	vr, err := h.Service.Spreadsheets.Values.Get(h.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrConnection, rng, err)
	}
	rows := make([][]string, len(vr.Values))
	for i, r := range vr.Values {
		rows[i] = toStrings(r)
	}
	return rows, nil
}

func (t *SheetTable) Cell(ctx context.Context, row, col int) (string, error) {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return "", err
	}
	rng := a1(h.SheetName, fmt.Sprintf("%s%d", columnLetter(col), row))
	vr, err := h.Service.Spreadsheets.Values.Get(h.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", model.ErrConnection, rng, err)
	}
	if len(vr.Values) == 0 || len(vr.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(vr.Values[0][0]), nil
}

func (t *SheetTable) SetCell(ctx context.Context, row, col int, value string) error {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return err
	}
	rng := a1(h.SheetName, fmt.Sprintf("%s%d", columnLetter(col), row))
	_, err = h.Service.Spreadsheets.Values.Update(h.SpreadsheetID, rng, &sheets.ValueRange{
		Values: [][]any{{value}},
	}).ValueInputOption(valueInputRaw).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrConnection, rng, err)
	}
	return nil
}

func (t *SheetTable) Resize(ctx context.Context, rows int) error {
	h, err := t.conn.Handle(ctx)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					// The first tab has id 0, which omitempty would drop.
					SheetId:         h.SheetID,
					ForceSendFields: []string{"SheetId"},
					GridProperties:  &sheets.GridProperties{RowCount: int64(rows)},
				},
				Fields: "gridProperties.rowCount",
			},
		}},
	}
	if _, err := h.Service.Spreadsheets.BatchUpdate(h.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: resize %s to %d rows: %w", model.ErrConnection, h.SheetName, rows, err)
	}
	return nil
}

// a1 builds a quoted A1 range for a tab.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func toStrings(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprint(c)
	}
	return out
}

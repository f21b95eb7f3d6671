package store

import "context"

// Table is a positional row store: row 1 holds the header, data starts at row 2.
// Positions passed to UpdateRow and DeleteRow are 1-based sheet rows.
type Table interface {
	Name() string
	Rows(ctx context.Context) ([][]string, error)
	Append(ctx context.Context, row []string) error
	UpdateRow(ctx context.Context, position int, row []string) error
	DeleteRow(ctx context.Context, position int) error
	// Replace clears every data row and writes rows starting at row 2.
	Replace(ctx context.Context, rows [][]string) error
}

// FirstDataRow is the sheet row of the first record.
const FirstDataRow = 2

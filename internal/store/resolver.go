package store

import (
	"context"
	"fmt"

	"nahueltrek/api/internal/apperr"
)

// Resolve finds the current sheet row of id by scanning column A of a fresh read.
// Positions shift whenever an earlier row is deleted, so callers resolve again before each write.
func Resolve(ctx context.Context, table Table, id string) (int, []string, error) {
	rows, err := table.Rows(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", table.Name(), err)
	}
	for i, row := range rows {
		if len(row) > 0 && row[0] == id {
			return i + FirstDataRow, row, nil
		}
	}
	return 0, nil, apperr.NotFound(table.Name(), id)
}

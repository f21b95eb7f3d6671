package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"nahueltrek/api/internal/apperr"
)

// valueInputOption stores cells exactly as sent. Customer text such as "=IMPORTXML(...)" or
// "+56912345678" must never be parsed into a formula or a number.
const valueInputOption = "RAW"

// ClientSource hands out an authorized HTTP client and forgets the credential once the API rejects it.
type ClientSource interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
	Invalidate(ctx context.Context) error
}

type SheetsConfig struct {
	SpreadsheetID string
	Sheet         string
	Columns       int
	// SheetGID is the numeric tab id used by row deletion. A negative value looks it up by title.
	SheetGID int64
	Options  []option.ClientOption
}

type SheetsTable struct {
	clients ClientSource
	cfg     SheetsConfig

	gidMu sync.Mutex
	gid   *int64
}

func NewSheetsTable(clients ClientSource, cfg SheetsConfig) *SheetsTable {
	t := &SheetsTable{clients: clients, cfg: cfg}
	if cfg.SheetGID >= 0 {
		gid := cfg.SheetGID
		t.gid = &gid
	}
	return t
}

func (t *SheetsTable) Name() string { return t.cfg.Sheet }

func (t *SheetsTable) lastColumn() string { return ColumnLetter(t.cfg.Columns) }

// DataRange is e.g. "Actividades!A2:K".
func (t *SheetsTable) DataRange() string {
	return fmt.Sprintf("%s!A%d:%s", t.cfg.Sheet, FirstDataRow, t.lastColumn())
}

func (t *SheetsTable) appendRange() string {
	return fmt.Sprintf("%s!A:%s", t.cfg.Sheet, t.lastColumn())
}

func (t *SheetsTable) rowRange(position int) string {
	return fmt.Sprintf("%s!A%d:%s%d", t.cfg.Sheet, position, t.lastColumn(), position)
}

func (t *SheetsTable) service(ctx context.Context) (*sheets.Service, error) {
	client, err := t.clients.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, t.cfg.Options...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return srv, nil
}

func (t *SheetsTable) Rows(ctx context.Context) ([][]string, error) {
	srv, err := t.service(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Spreadsheets.Values.Get(t.cfg.SpreadsheetID, t.DataRange()).Context(ctx).Do()
	if err != nil {
		return nil, t.apiError(ctx, "read", err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		rows = append(rows, stringCells(values))
	}
	return rows, nil
}

func (t *SheetsTable) Append(ctx context.Context, row []string) error {
	srv, err := t.service(ctx)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{interfaceCells(row)}}
	_, err = srv.Spreadsheets.Values.Append(t.cfg.SpreadsheetID, t.appendRange(), vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return t.apiError(ctx, "append", err)
	}
	return nil
}

func (t *SheetsTable) UpdateRow(ctx context.Context, position int, row []string) error {
	srv, err := t.service(ctx)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{interfaceCells(row)}}
	_, err = srv.Spreadsheets.Values.Update(t.cfg.SpreadsheetID, t.rowRange(position), vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return t.apiError(ctx, "update", err)
	}
	return nil
}

func (t *SheetsTable) DeleteRow(ctx context.Context, position int) error {
	srv, err := t.service(ctx)
	if err != nil {
		return err
	}
	gid, err := t.sheetGID(ctx, srv)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    gid,
					Dimension:  "ROWS",
					StartIndex: int64(position - 1),
					EndIndex:   int64(position),
					// SheetId 0 and StartIndex 0 are meaningful and must not be omitted.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := srv.Spreadsheets.BatchUpdate(t.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return t.apiError(ctx, "delete", err)
	}
	return nil
}

func (t *SheetsTable) Replace(ctx context.Context, rows [][]string) error {
	srv, err := t.service(ctx)
	if err != nil {
		return err
	}
	if _, err := srv.Spreadsheets.Values.Clear(t.cfg.SpreadsheetID, t.DataRange(), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return t.apiError(ctx, "clear", err)
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, interfaceCells(row))
	}
	_, err = srv.Spreadsheets.Values.Update(t.cfg.SpreadsheetID, t.DataRange(), &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return t.apiError(ctx, "replace", err)
	}
	return nil
}

func (t *SheetsTable) sheetGID(ctx context.Context, srv *sheets.Service) (int64, error) {
	t.gidMu.Lock()
	defer t.gidMu.Unlock()
	if t.gid != nil {
		return *t.gid, nil
	}
	book, err := srv.Spreadsheets.Get(t.cfg.SpreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, t.apiError(ctx, "lookup sheet id", err)
	}
	for _, sh := range book.Sheets {
		if sh.Properties != nil && sh.Properties.Title == t.cfg.Sheet {
			gid := sh.Properties.SheetId
			t.gid = &gid
			return gid, nil
		}
	}
	return 0, fmt.Errorf("sheet tab %q: %w", t.cfg.Sheet, apperr.ErrNotFound)
}

// apiError drops the credential on 401/403 so the next call reports NotInitialized.
func (t *SheetsTable) apiError(ctx context.Context, op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		_ = t.clients.Invalidate(ctx)
		return fmt.Errorf("sheets %s %s: %w: %v", op, t.cfg.Sheet, apperr.ErrUnauthorized, err)
	}
	return fmt.Errorf("sheets %s %s: %w", op, t.cfg.Sheet, err)
}

func stringCells(values []interface{}) []string {
	row := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			row[i] = s
			continue
		}
		row[i] = fmt.Sprint(v)
	}
	return row
}

func interfaceCells(row []string) []interface{} {
	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}
	return values
}

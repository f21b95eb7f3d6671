package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/auth"
	"nahueltrek/api/internal/calendar"
	"nahueltrek/api/internal/email"
	"nahueltrek/api/internal/export"
	"nahueltrek/api/internal/logger"
	"nahueltrek/api/internal/media"
	"nahueltrek/api/internal/search"
	"nahueltrek/api/internal/session"
	"nahueltrek/api/internal/store"
)

type calendarMirror interface {
	Ready() bool
	Location() *time.Location
	PublicURL() string
	CreateActivityEvent(ctx context.Context, a store.Activity, lugar string, day time.Time) (calendar.EventRef, error)
	UpdateActivityEvent(ctx context.Context, eventID string, a store.Activity, lugar string, day time.Time) (calendar.EventRef, error)
	DeleteEvent(ctx context.Context, eventID string) error
	CreateReservationEvent(ctx context.Context, r store.Reservation, a store.Activity, day time.Time) (calendar.EventRef, error)
	Events(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
	Availability(ctx context.Context, day time.Time) (calendar.Availability, error)
}

type mailer interface {
	IsConfigured() bool
	SendBookingNotification(draft email.BookingDraft) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Check is one readiness probe reported by /api/ready.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps are the collaborators built in main. Nil optional fields disable the feature.
type Deps struct {
	Activities    *store.Gateway[store.Activity]
	Places        *store.Gateway[store.Place]
	Reservations  store.Reservations
	Images        media.ImageStore
	ImageMaxBytes int64
	Calendar      calendarMirror
	Mailer        mailer
	BookingEmail  string
	Search        *search.Service
	Export        exporter
	Admin         *auth.Admin
	Google        *session.Registry
	Checks        []Check
	Logger        *logger.Logger
}

type Service struct {
	activities    *store.Gateway[store.Activity]
	places        *store.Gateway[store.Place]
	reservations  store.Reservations
	images        media.ImageStore
	imageMaxBytes int64
	calendar      calendarMirror
	mailer        mailer
	bookingEmail  string
	search        *search.Service
	export        exporter
	admin         *auth.Admin
	google        *session.Registry
	checks        []Check
	log           *logger.Logger
	now           func() time.Time
}

func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	admin := deps.Admin
	if admin == nil {
		admin = auth.NewAdmin("", "", 0)
	}
	bookingEmail := deps.BookingEmail
	if bookingEmail == "" {
		bookingEmail = email.DefaultBookingAddress
	}
	svc := &Service{
		activities:    deps.Activities,
		places:        deps.Places,
		reservations:  deps.Reservations,
		images:        deps.Images,
		imageMaxBytes: deps.ImageMaxBytes,
		calendar:      deps.Calendar,
		mailer:        deps.Mailer,
		bookingEmail:  bookingEmail,
		search:        deps.Search,
		export:        deps.Export,
		admin:         admin,
		google:        deps.Google,
		checks:        deps.Checks,
		log:           log,
		now:           time.Now,
	}
	if svc.search == nil {
		svc.search = search.NewService(nil, search.NewLocal(deps.Activities, deps.Places), log)
	}
	return svc
}

// Bootstrap initializes the Google credential managers and pushes the catalog
// to the search index. Failures are logged; the API starts regardless.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.google != nil {
		for sub, err := range s.google.InitializeAll(ctx) {
			if err != nil {
				s.log.Warn("google credential initialization failed", "subsystem", sub, "error", err)
			}
		}
		for _, st := range s.google.Status() {
			s.log.Info("google subsystem", "subsystem", st.Subsystem, "state", st.State, "ready", st.Ready)
		}
	}
	s.search.ReindexAll(ctx)
}

func (s *Service) Ready(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.checks))
	for _, check := range s.checks {
		results[check.Name] = check.Fn(ctx)
	}
	return results
}

// location is the zone used to interpret customer-facing dates.
func (s *Service) location() *time.Location {
	if s.calendar != nil {
		return s.calendar.Location()
	}
	return time.UTC
}

// parseFecha accepts YYYY-MM-DD in the calendar zone. Empty means no date.
func (s *Service) parseFecha(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, s.location())
	if err != nil {
		return time.Time{}, apperr.Validation(field, "expected a date as YYYY-MM-DD")
	}
	return t, nil
}

func (s *Service) calendarReady() bool {
	return s.calendar != nil && s.calendar.Ready()
}

func (s *Service) lugarTitulo(ctx context.Context, lugarID string) string {
	if lugarID == "" {
		return ""
	}
	p, err := s.places.Get(ctx, lugarID)
	if err != nil {
		return ""
	}
	return p.Titulo
}

// Activities

func (s *Service) ListActivities(ctx context.Context, destacadas bool) ([]store.Activity, error) {
	if destacadas {
		return s.activities.Filter(ctx, func(a store.Activity) bool { return a.Destacado })
	}
	return s.activities.List(ctx)
}

func (s *Service) GetActivity(ctx context.Context, id string) (store.Activity, error) {
	return s.activities.Get(ctx, id)
}

// ActivityResult is returned by create; Evento is set when the activity was mirrored to the calendar.
type ActivityResult struct {
	Actividad store.Activity      `json:"actividad"`
	Evento    *calendar.EventRef `json:"evento,omitempty"`
}

// CreateActivity stores the activity and, given a date, mirrors it as a calendar event.
func (s *Service) CreateActivity(ctx context.Context, a store.Activity, fecha string) (ActivityResult, error) {
	day, err := s.parseFecha("fecha", fecha)
	if err != nil {
		return ActivityResult{}, err
	}
	created, err := s.activities.Create(ctx, a)
	if err != nil {
		return ActivityResult{}, err
	}
	s.search.IndexActivity(search.ActivityToRecord(created))

	result := ActivityResult{Actividad: created}
	if !day.IsZero() && s.calendarReady() {
		ref, err := s.calendar.CreateActivityEvent(ctx, created, s.lugarTitulo(ctx, created.LugarID), day)
		if err != nil {
			s.log.Warn("calendar activity event failed", "actividad", created.ID, "error", err)
		} else {
			result.Evento = &ref
		}
	}
	return result, nil
}

func (s *Service) UpdateActivity(ctx context.Context, id string, patch store.ActivityPatch) (store.Activity, error) {
	updated, err := s.activities.Update(ctx, id, func(a *store.Activity) error {
		patch.Apply(a)
		return nil
	})
	if err != nil {
		return store.Activity{}, err
	}
	s.search.IndexActivity(search.ActivityToRecord(updated))
	return updated, nil
}

func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	if err := s.activities.Delete(ctx, id); err != nil {
		return err
	}
	s.search.DeleteActivity(id)
	return nil
}

// Places

func (s *Service) ListPlaces(ctx context.Context, categoria string, destacados bool) ([]store.Place, error) {
	if categoria == "" && !destacados {
		return s.places.List(ctx)
	}
	return s.places.Filter(ctx, func(p store.Place) bool {
		if categoria != "" && p.Categoria != categoria {
			return false
		}
		return !destacados || p.Destacado
	})
}

func (s *Service) GetPlace(ctx context.Context, id string) (store.Place, error) {
	return s.places.Get(ctx, id)
}

func (s *Service) CreatePlace(ctx context.Context, p store.Place) (store.Place, error) {
	created, err := s.places.Create(ctx, p)
	if err != nil {
		return store.Place{}, err
	}
	s.search.IndexPlace(search.PlaceToRecord(created))
	return created, nil
}

func (s *Service) UpdatePlace(ctx context.Context, id string, patch store.PlacePatch) (store.Place, error) {
	updated, err := s.places.Update(ctx, id, func(p *store.Place) error {
		patch.Apply(p)
		return nil
	})
	if err != nil {
		return store.Place{}, err
	}
	s.search.IndexPlace(search.PlaceToRecord(updated))
	return updated, nil
}

func (s *Service) DeletePlace(ctx context.Context, id string) error {
	if err := s.places.Delete(ctx, id); err != nil {
		return err
	}
	s.search.DeletePlace(id)
	return nil
}

// Reservations

func (s *Service) ListReservations(ctx context.Context, filter store.ReservationFilter) ([]store.Reservation, error) {
	if filter.Estado != "" && !isEstado(filter.Estado) {
		return nil, apperr.Validation("estado", "must be pendiente, confirmada or cancelada")
	}
	return s.reservations.Query(ctx, filter)
}

func (s *Service) ListActivityReservations(ctx context.Context, activityID string) ([]store.Reservation, error) {
	if _, err := s.activities.Get(ctx, activityID); err != nil {
		return nil, err
	}
	return s.reservations.ListByActivity(ctx, activityID)
}

func (s *Service) GetReservation(ctx context.Context, id string) (store.Reservation, error) {
	return s.reservations.Get(ctx, id)
}

func (s *Service) UpdateReservation(ctx context.Context, id string, patch store.ReservationPatch) (store.Reservation, error) {
	return s.reservations.Update(ctx, id, func(r *store.Reservation) error {
		patch.Apply(r)
		return nil
	})
}

func (s *Service) DeleteReservation(ctx context.Context, id string) error {
	return s.reservations.Delete(ctx, id)
}

func (s *Service) ExportReservations(ctx context.Context, req export.Request) (*export.Result, error) {
	if s.export == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	if req.Estado != "" && !isEstado(req.Estado) {
		return nil, apperr.Validation("estado", "must be pendiente, confirmada or cancelada")
	}
	return s.export.Export(ctx, req)
}

func isEstado(value string) bool {
	switch value {
	case store.EstadoPendiente, store.EstadoConfirmada, store.EstadoCancelada:
		return true
	}
	return false
}

// Images

func (s *Service) UploadImage(ctx context.Context, img media.Image) (media.Result, error) {
	if err := media.Validate(img, s.imageMaxBytes); err != nil {
		return media.Result{}, err
	}
	if s.images == nil {
		return media.Result{}, apperr.ErrNotInitialized
	}
	return s.images.Upload(ctx, img)
}

// DeleteImage accepts a bare file id or a stored image URL.
func (s *Service) DeleteImage(ctx context.Context, ref string) error {
	if s.images == nil {
		return apperr.ErrNotInitialized
	}
	id := ref
	if extracted := media.ExtractFileID(ref); extracted != "" {
		id = extracted
	}
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("id", "is required")
	}
	return s.images.Delete(ctx, id)
}

// Search

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// Calendar

func (s *Service) Availability(ctx context.Context, fecha string) (calendar.Availability, error) {
	day, err := s.parseFecha("fecha", fecha)
	if err != nil {
		return calendar.Availability{}, err
	}
	if day.IsZero() {
		return calendar.Availability{}, apperr.Validation("fecha", "is required")
	}
	if s.calendar == nil {
		return calendar.Availability{Disponible: true, Detalles: []calendar.Event{}}, nil
	}
	return s.calendar.Availability(ctx, day)
}

// CalendarEvents lists events between from and to inclusive. Defaults cover the next 30 days.
func (s *Service) CalendarEvents(ctx context.Context, from, to string) ([]calendar.Event, error) {
	if s.calendar == nil {
		return nil, apperr.ErrNotInitialized
	}
	start, err := s.parseFecha("from", from)
	if err != nil {
		return nil, err
	}
	end, err := s.parseFecha("to", to)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		y, m, d := s.now().In(s.location()).Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, s.location())
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, 30)
	} else {
		end = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	if end.Before(start) {
		return nil, apperr.Validation("to", "must not be before from")
	}
	return s.calendar.Events(ctx, start, end)
}

// UpdateCalendarEvent moves an activity event to a new date and refreshes its text.
func (s *Service) UpdateCalendarEvent(ctx context.Context, eventID, activityID, fecha string) (calendar.EventRef, error) {
	if s.calendar == nil {
		return calendar.EventRef{}, apperr.ErrNotInitialized
	}
	if strings.TrimSpace(activityID) == "" {
		return calendar.EventRef{}, apperr.Validation("actividadId", "is required")
	}
	day, err := s.parseFecha("fecha", fecha)
	if err != nil {
		return calendar.EventRef{}, err
	}
	if day.IsZero() {
		return calendar.EventRef{}, apperr.Validation("fecha", "is required")
	}
	a, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return calendar.EventRef{}, err
	}
	return s.calendar.UpdateActivityEvent(ctx, eventID, a, s.lugarTitulo(ctx, a.LugarID), day)
}

func (s *Service) DeleteCalendarEvent(ctx context.Context, eventID string) error {
	if s.calendar == nil {
		return apperr.ErrNotInitialized
	}
	return s.calendar.DeleteEvent(ctx, eventID)
}

// Google credentials

// GoogleStatus reports every subsystem plus the public calendar URL when there is one.
func (s *Service) GoogleStatus() map[string]any {
	payload := map[string]any{"subsystems": []session.Status{}}
	if s.google != nil {
		payload["subsystems"] = s.google.Status()
	}
	if s.calendar != nil {
		if u := s.calendar.PublicURL(); u != "" {
			payload["calendarUrl"] = u
		}
	}
	return payload
}

func (s *Service) googleManager(name string) (*session.Manager, error) {
	sub, ok := session.ParseSubsystem(name)
	if !ok {
		return nil, apperr.NotFound("subsystem", name)
	}
	if s.google == nil {
		return nil, apperr.ErrNotInitialized
	}
	return s.google.Manager(sub), nil
}

func (s *Service) GoogleAuthenticate(ctx context.Context, subsystem string) (session.AuthResult, error) {
	m, err := s.googleManager(subsystem)
	if err != nil {
		return session.AuthResult{}, err
	}
	if !m.Configured() {
		return session.AuthResult{}, domainError(http.StatusServiceUnavailable, "GOOGLE_NOT_CONFIGURED", "Google OAuth client is not configured", nil)
	}
	return m.Authenticate(ctx)
}

func (s *Service) GoogleCallback(ctx context.Context, state, code string) (session.Subsystem, error) {
	if s.google == nil {
		return "", apperr.ErrNotInitialized
	}
	if strings.TrimSpace(state) == "" || strings.TrimSpace(code) == "" {
		return "", apperr.Validation("code", "state and code are required")
	}
	return s.google.Complete(ctx, state, code)
}

func (s *Service) GoogleLogout(ctx context.Context, subsystem string) error {
	m, err := s.googleManager(subsystem)
	if err != nil {
		return err
	}
	return m.Logout(ctx)
}

// Admin

func (s *Service) AdminLogin(password string) (string, time.Time, error) {
	token, exp, err := s.admin.Login(password)
	switch {
	case errors.Is(err, auth.ErrAdminDisabled):
		return "", time.Time{}, domainError(http.StatusServiceUnavailable, "ADMIN_DISABLED", "Admin login is not configured", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "", time.Time{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid password", nil)
	case err != nil:
		return "", time.Time{}, err
	}
	return token, exp, nil
}

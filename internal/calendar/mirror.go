package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
	_ "time/tzdata"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/store"
)

// MaxReservationsPerDay is the number of booking events after which a date is full.
const MaxReservationsPerDay = 3

type ClientSource interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
	Invalidate(ctx context.Context) error
	Ready() bool
}

type Config struct {
	CalendarID string
	Timezone   string
	SiteURL    string
	Options    []option.ClientOption
}

type Mirror struct {
	clients    ClientSource
	calendarID string
	loc        *time.Location
	siteURL    string
	options    []option.ClientOption
}

type EventRef struct {
	EventID  string `json:"eventId"`
	HTMLLink string `json:"htmlLink,omitempty"`
}

type Event struct {
	ID     string `json:"id"`
	Titulo string `json:"titulo"`
	Inicio string `json:"inicio"`
	Fin    string `json:"fin"`
}

type Availability struct {
	Disponible bool    `json:"disponible"`
	Eventos    int     `json:"eventos"`
	Reservas   int     `json:"reservas"`
	Detalles   []Event `json:"detalles"`
}

func New(clients ClientSource, cfg Config) (*Mirror, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/Santiago"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	id := cfg.CalendarID
	if id == "" {
		id = "primary"
	}
	return &Mirror{clients: clients, calendarID: id, loc: loc, siteURL: cfg.SiteURL, options: cfg.Options}, nil
}

func (m *Mirror) Ready() bool { return m.clients.Ready() }

func (m *Mirror) Location() *time.Location { return m.loc }

// PublicURL is the embed link of a shared calendar; the primary calendar has none.
func (m *Mirror) PublicURL() string {
	if m.calendarID == "" || m.calendarID == "primary" {
		return ""
	}
	return "https://calendar.google.com/calendar/embed?src=" + url.QueryEscape(m.calendarID)
}

func (m *Mirror) service(ctx context.Context) (*gcal.Service, error) {
	client, err := m.clients.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, m.options...)
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return srv, nil
}

func (m *Mirror) CreateActivityEvent(ctx context.Context, a store.Activity, lugar string, day time.Time) (EventRef, error) {
	srv, err := m.service(ctx)
	if err != nil {
		return EventRef{}, err
	}
	ev, err := srv.Events.Insert(m.calendarID, ActivityEvent(a, lugar, day, m.loc, m.siteURL)).Context(ctx).Do()
	if err != nil {
		return EventRef{}, m.apiError(ctx, "insert activity event", err)
	}
	return EventRef{EventID: ev.Id, HTMLLink: ev.HtmlLink}, nil
}

func (m *Mirror) UpdateActivityEvent(ctx context.Context, eventID string, a store.Activity, lugar string, day time.Time) (EventRef, error) {
	if eventID == "" {
		return EventRef{}, apperr.Validation("eventId", "is required")
	}
	srv, err := m.service(ctx)
	if err != nil {
		return EventRef{}, err
	}
	ev, err := srv.Events.Update(m.calendarID, eventID, ActivityEvent(a, lugar, day, m.loc, m.siteURL)).Context(ctx).Do()
	if err != nil {
		return EventRef{}, m.apiError(ctx, "update event", err)
	}
	return EventRef{EventID: ev.Id, HTMLLink: ev.HtmlLink}, nil
}

func (m *Mirror) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return apperr.Validation("eventId", "is required")
	}
	srv, err := m.service(ctx)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete(m.calendarID, eventID).Context(ctx).Do(); err != nil {
		return m.apiError(ctx, "delete event", err)
	}
	return nil
}

// CreateReservationEvent adds the booking and emails the customer an invitation.
func (m *Mirror) CreateReservationEvent(ctx context.Context, r store.Reservation, a store.Activity, day time.Time) (EventRef, error) {
	srv, err := m.service(ctx)
	if err != nil {
		return EventRef{}, err
	}
	ev, err := srv.Events.Insert(m.calendarID, ReservationEvent(r, a, day, m.loc, m.siteURL)).
		SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return EventRef{}, m.apiError(ctx, "insert reservation event", err)
	}
	return EventRef{EventID: ev.Id, HTMLLink: ev.HtmlLink}, nil
}

// Events lists single occurrences between from and to, ordered by start.
func (m *Mirror) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	srv, err := m.service(ctx)
	if err != nil {
		return nil, err
	}
	var out []Event
	call := srv.Events.List(m.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			out = append(out, toEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, m.apiError(ctx, "list events", err)
	}
	if out == nil {
		out = []Event{}
	}
	return out, nil
}

// Availability counts booking events on day's date. Without a calendar every date is open.
func (m *Mirror) Availability(ctx context.Context, day time.Time) (Availability, error) {
	if !m.Ready() {
		return Availability{Disponible: true, Detalles: []Event{}}, nil
	}
	from, to := dayBounds(day, m.loc)

	events, err := m.Events(ctx, from, to)
	if err != nil {
		return Availability{Disponible: true, Detalles: []Event{}}, err
	}
	reservas := 0
	for _, ev := range events {
		if IsReservation(ev.Titulo) {
			reservas++
		}
	}
	return Availability{
		Disponible: reservas < MaxReservationsPerDay,
		Eventos:    len(events),
		Reservas:   reservas,
		Detalles:   events,
	}, nil
}

func toEvent(item *gcal.Event) Event {
	ev := Event{ID: item.Id, Titulo: item.Summary}
	if item.Start != nil {
		ev.Inicio = item.Start.DateTime
		if ev.Inicio == "" {
			ev.Inicio = item.Start.Date
		}
	}
	if item.End != nil {
		ev.Fin = item.End.DateTime
		if ev.Fin == "" {
			ev.Fin = item.End.Date
		}
	}
	return ev
}

func (m *Mirror) apiError(ctx context.Context, op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			_ = m.clients.Invalidate(ctx)
			return fmt.Errorf("calendar %s: %w: %v", op, apperr.ErrUnauthorized, err)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("calendar %s: %w", op, apperr.ErrNotFound)
		}
	}
	return fmt.Errorf("calendar %s: %w", op, err)
}

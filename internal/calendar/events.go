// Package calendar mirrors activities and bookings into a Google Calendar.
package calendar

import (
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"nahueltrek/api/internal/store"
)

const (
	colorActivity    = "10"
	colorReservation = "11"
	startHour        = 8
	endHour          = 18
	noMessage        = "Sin mensaje adicional"
)

// dayWindow is 08:00-18:00 on day's calendar date in loc.
func dayWindow(day time.Time, loc *time.Location) (time.Time, time.Time) {
	local := day.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, startHour, 0, 0, 0, loc), time.Date(y, m, d, endHour, 0, 0, 0, loc)
}

// dayBounds spans day's calendar date in loc, from its first instant to the last millisecond.
// DST change days are 23 or 25 hours long.
func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	next := time.Date(y, m, d+1, 12, 0, 0, 0, loc)
	ny, nm, nd := next.Date()
	return startOfDay(y, m, d, loc), startOfDay(ny, nm, nd, loc).Add(-time.Millisecond)
}

// startOfDay is local midnight, or the moment clocks jump when midnight is skipped.
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if _, _, td := t.Date(); td != d {
		t = time.Date(y, m, d, 1, 0, 0, 0, loc)
	}
	return t
}

func eventTime(t time.Time, loc *time.Location) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: loc.String()}
}

func reminders(popupMinutes int64) *gcal.EventReminders {
	return &gcal.EventReminders{
		UseDefault: false,
		Overrides: []*gcal.EventReminder{
			{Method: "email", Minutes: 24 * 60},
			{Method: "popup", Minutes: popupMinutes},
		},
		ForceSendFields: []string{"UseDefault"},
	}
}

// ActivityEvent describes a scheduled outing. lugar falls back to the description when empty.
func ActivityEvent(a store.Activity, lugar string, day time.Time, loc *time.Location, siteURL string) *gcal.Event {
	if lugar == "" {
		lugar = a.Descripcion
	}
	start, end := dayWindow(day, loc)
	description := fmt.Sprintf(`%s

📍 Lugar: %s
⏱️ Duración: %s
⚡ Dificultad: %s
💰 Precio: %s
📦 Incluye: %s

🔗 Más info: %s`, a.Descripcion, lugar, a.Duracion, a.Dificultad, a.Precio, a.Incluye, siteURL)

	return &gcal.Event{
		Summary:     "🥾 " + a.Titulo,
		Description: strings.TrimSpace(description),
		Location:    lugar,
		Start:       eventTime(start, loc),
		End:         eventTime(end, loc),
		ColorId:     colorActivity,
		Reminders:   reminders(60),
	}
}

// ReservationEvent invites the customer; summaries start with "📅 Reserva:" which availability counts.
func ReservationEvent(r store.Reservation, a store.Activity, day time.Time, loc *time.Location, siteURL string) *gcal.Event {
	start, end := dayWindow(day, loc)
	mensaje := r.Mensaje
	if mensaje == "" {
		mensaje = noMessage
	}
	titulo := a.Titulo
	if titulo == "" {
		titulo = r.ActividadTitulo
	}
	description := fmt.Sprintf(`RESERVA CONFIRMADA

👤 Cliente: %s
📧 Email: %s
📞 Teléfono: %s
👥 Personas: %d

💬 Mensaje:
%s

---
Actividad: %s
Lugar: %s
Duración: %s
Precio: %s

🔗 Panel admin: %s/admin`, r.Nombre, r.Email, r.Telefono, r.CantidadPersonas, mensaje,
		titulo, a.Descripcion, a.Duracion, a.Precio, strings.TrimRight(siteURL, "/"))

	return &gcal.Event{
		Summary:     "📅 Reserva: " + titulo,
		Description: strings.TrimSpace(description),
		Location:    a.Descripcion,
		Start:       eventTime(start, loc),
		End:         eventTime(end, loc),
		ColorId:     colorReservation,
		Attendees:   []*gcal.EventAttendee{{Email: r.Email, DisplayName: r.Nombre}},
		Reminders:   reminders(120),
	}
}

// IsReservation reports whether an event summary marks a booking.
func IsReservation(summary string) bool {
	return strings.Contains(summary, "Reserva")
}

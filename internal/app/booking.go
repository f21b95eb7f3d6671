package app

import (
	"context"
	"errors"
	"strings"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/calendar"
	"nahueltrek/api/internal/email"
	"nahueltrek/api/internal/store"
)

// BookingRequest is what the public booking form submits.
type BookingRequest struct {
	ActividadID      string `json:"actividadId"`
	Nombre           string `json:"nombre"`
	Email            string `json:"email"`
	Telefono         string `json:"telefono"`
	CantidadPersonas int    `json:"cantidadPersonas"`
	Mensaje          string `json:"mensaje"`
	// Fecha is the requested day (YYYY-MM-DD); optional.
	Fecha string `json:"fecha"`
}

// BookingResult carries the stored reservation and the handoff draft for the operator.
type BookingResult struct {
	Reserva    store.Reservation  `json:"reserva"`
	Draft      email.BookingDraft `json:"draft"`
	Mailto     string             `json:"mailto"`
	Evento     *calendar.EventRef `json:"evento,omitempty"`
	Notificado bool               `json:"notificado"`
}

// Book stores a reservation for an existing activity. Calendar mirroring and the
// SMTP notification are best effort: their failures are logged and do not undo the booking.
func (s *Service) Book(ctx context.Context, req BookingRequest) (BookingResult, error) {
	actividadID := strings.TrimSpace(req.ActividadID)
	if actividadID == "" {
		return BookingResult{}, apperr.Validation("actividadId", "is required")
	}
	day, err := s.parseFecha("fecha", req.Fecha)
	if err != nil {
		return BookingResult{}, err
	}

	activity, err := s.activities.Get(ctx, actividadID)
	if errors.Is(err, apperr.ErrNotFound) {
		return BookingResult{}, apperr.Validation("actividadId", "activity does not exist")
	}
	if err != nil {
		return BookingResult{}, err
	}

	created, err := s.reservations.Create(ctx, store.Reservation{
		ActividadID:      activity.ID,
		ActividadTitulo:  activity.Titulo,
		Nombre:           strings.TrimSpace(req.Nombre),
		Email:            req.Email,
		Telefono:         strings.TrimSpace(req.Telefono),
		CantidadPersonas: req.CantidadPersonas,
		Mensaje:          req.Mensaje,
	})
	if err != nil {
		return BookingResult{}, err
	}
	log := s.log.With("reserva", created.ID, "actividad", activity.ID)

	result := BookingResult{Reserva: created}

	if !day.IsZero() && s.calendarReady() {
		ref, err := s.calendar.CreateReservationEvent(ctx, created, activity, day)
		if err != nil {
			log.Warn("calendar reservation event failed", "error", err)
		} else {
			result.Evento = &ref
		}
	}

	result.Draft = email.NewBookingDraft(s.bookingEmail, activity, day, created)
	result.Mailto = result.Draft.MailtoURL()

	if s.mailer != nil && s.mailer.IsConfigured() {
		if err := s.mailer.SendBookingNotification(result.Draft); err != nil {
			log.Warn("booking notification failed", "error", err)
		} else {
			result.Notificado = true
		}
	}

	log.Info("reservation created", "personas", created.CantidadPersonas, "calendar", result.Evento != nil)
	return result, nil
}

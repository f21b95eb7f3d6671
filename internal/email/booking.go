package email

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"nahueltrek/api/internal/store"
)

const (
	DefaultBookingAddress = "nahueltrek@gmail.com"
	sinMensaje            = "Sin mensaje adicional"
	porConfirmar          = "Por confirmar"
)

// BookingDraft is the message a customer sends to the operator to request a booking.
type BookingDraft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewBookingDraft composes the request. fecha may be zero when the customer picked no date.
func NewBookingDraft(to string, a store.Activity, fecha time.Time, r store.Reservation) BookingDraft {
	if to == "" {
		to = DefaultBookingAddress
	}
	titulo := a.Titulo
	if titulo == "" {
		titulo = r.ActividadTitulo
	}
	mensaje := r.Mensaje
	if strings.TrimSpace(mensaje) == "" {
		mensaje = sinMensaje
	}
	fechaText := porConfirmar
	if !fecha.IsZero() {
		fechaText = FormatFecha(fecha)
	}

	body := fmt.Sprintf(`NUEVA RESERVA DE ACTIVIDAD

Actividad: %s
Fecha: %s
Lugar: %s
Precio: %s

--- DATOS DEL CLIENTE ---

Nombre: %s
Email: %s
Teléfono: %s

Mensaje:
%s

---`, titulo, fechaText, a.Descripcion, a.Precio, r.Nombre, r.Email, r.Telefono, mensaje)

	return BookingDraft{
		To:      to,
		Subject: "Reserva: " + titulo,
		Body:    body,
	}
}

// MailtoURL encodes the draft the way encodeURIComponent does: spaces become %20, not +.
func (d BookingDraft) MailtoURL() string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", d.To, encodeComponent(d.Subject), encodeComponent(d.Body))
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var (
	diasSemana = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	meses      = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// FormatFecha renders a long Spanish date, e.g. "sábado, 15 de marzo de 2025".
func FormatFecha(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d", diasSemana[t.Weekday()], t.Day(), meses[t.Month()-1], t.Year())
}

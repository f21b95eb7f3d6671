package export

import (
	"context"
	"fmt"
	"time"

	"nahueltrek/api/internal/store"
)

// ReservationSource defines the data access the report needs
type ReservationSource interface {
	Query(ctx context.Context, f store.ReservationFilter) ([]store.Reservation, error)
}

// ActivitySource resolves activity titles for the report header and rows
type ActivitySource interface {
	Get(ctx context.Context, id string) (store.Activity, error)
}

// Service provides reservation report export
type Service struct {
	reservations ReservationSource
	activities   ActivitySource
	location     *time.Location
	now          func() time.Time
	renderPDF    func(ctx context.Context, html, title string) (*Result, error)
}

// NewService creates a new export service. Dates are printed in loc.
func NewService(reservations ReservationSource, activities ActivitySource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		reservations: reservations,
		activities:   activities,
		location:     loc,
		now:          time.Now,
		renderPDF:    exportPDF,
	}
}

// Export generates the report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format == "" {
		req.Format = FormatPDF
	}
	if req.Format != FormatPDF && req.Format != FormatHTML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	reservations, err := s.reservations.Query(ctx, store.ReservationFilter{
		ActividadID: req.ActividadID,
		Estado:      req.Estado,
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	title := "Reservas Nahuel Trek"
	if req.ActividadID != "" && s.activities != nil {
		activity, err := s.activities.Get(ctx, req.ActividadID)
		if err != nil {
			return nil, fmt.Errorf("get activity: %w", err)
		}
		title = "Reservas " + activity.Titulo
	}

	data := TemplateData{
		Title:       title,
		Estado:      req.Estado,
		GeneratedAt: s.now().In(s.location),
		Rows:        make([]Row, 0, len(reservations)),
	}
	for _, r := range reservations {
		data.Rows = append(data.Rows, Row{
			ID:               r.ID,
			Actividad:        r.ActividadTitulo,
			Nombre:           r.Nombre,
			Email:            r.Email,
			Telefono:         r.Telefono,
			CantidadPersonas: r.CantidadPersonas,
			Mensaje:          r.Mensaje,
			FechaReserva:     r.FechaReserva.In(s.location),
			Estado:           r.EffectiveEstado(),
		})
		data.TotalPersonas += r.CantidadPersonas
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return s.renderPDF(ctx, html, title)
	}
}

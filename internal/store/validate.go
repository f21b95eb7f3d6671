package store

import (
	"errors"
	"net/mail"
	"strings"

	"nahueltrek/api/internal/apperr"
)

// Validators report every failing field joined, in column order.

func ValidateActivity(a *Activity) error {
	if strings.TrimSpace(a.Titulo) == "" {
		return apperr.Validation("titulo", "is required")
	}
	return nil
}

func NormalizePlace(p *Place) {
	if p.Categoria == "" {
		p.Categoria = CategoriaTrekking
	}
	if p.Imagenes == nil {
		p.Imagenes = []string{}
	}
}

func ValidatePlace(p *Place) error {
	var errs []error
	if strings.TrimSpace(p.Titulo) == "" {
		errs = append(errs, apperr.Validation("titulo", "is required"))
	}
	if p.Categoria != "" && !IsCategoria(p.Categoria) {
		errs = append(errs, apperr.Validation("categoria", "must be one of "+strings.Join(Categorias, ", ")))
	}
	if p.Lat != nil && (*p.Lat < -90 || *p.Lat > 90) {
		errs = append(errs, apperr.Validation("lat", "must be between -90 and 90"))
	}
	if p.Lng != nil && (*p.Lng < -180 || *p.Lng > 180) {
		errs = append(errs, apperr.Validation("lng", "must be between -180 and 180"))
	}
	return errors.Join(errs...)
}

func NormalizeReservation(r *Reservation) {
	if r.CantidadPersonas == 0 {
		r.CantidadPersonas = 1
	}
	r.Email = strings.TrimSpace(r.Email)
}

func ValidateReservation(r *Reservation) error {
	var errs []error
	if strings.TrimSpace(r.ActividadID) == "" {
		errs = append(errs, apperr.Validation("actividadId", "is required"))
	}
	if strings.TrimSpace(r.Nombre) == "" {
		errs = append(errs, apperr.Validation("nombre", "is required"))
	}
	switch email := strings.TrimSpace(r.Email); {
	case email == "":
		errs = append(errs, apperr.Validation("email", "is required"))
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			errs = append(errs, apperr.Validation("email", "is not a valid address"))
		}
	}
	if strings.TrimSpace(r.Telefono) == "" {
		errs = append(errs, apperr.Validation("telefono", "is required"))
	}
	if r.CantidadPersonas < 1 {
		errs = append(errs, apperr.Validation("cantidadPersonas", "must be at least 1"))
	}
	return errors.Join(errs...)
}

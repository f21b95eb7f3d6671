package app

import (
	"errors"
	"fmt"
	"net/http"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/auth"
	"nahueltrek/api/internal/export"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var validationErr *apperr.ValidationError
	if errors.As(err, &validationErr) {
		var fieldDetails any
		if validationErr.Field != "" {
			fieldDetails = map[string]any{"field": validationErr.Field}
		}
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Error(), fieldDetails
	}
	if errors.Is(err, apperr.ErrValidation) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}

	var recordErr *apperr.RecordError
	if errors.As(err, &recordErr) {
		return http.StatusInternalServerError, "MALFORMED_RECORD", "Stored record is malformed", map[string]any{
			"sheet":  recordErr.Sheet,
			"row":    recordErr.Row,
			"column": recordErr.Column,
		}
	}

	switch {
	case errors.Is(err, apperr.ErrNotInitialized):
		return http.StatusServiceUnavailable, "NOT_INITIALIZED", "Backing store not initialized", nil
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, apperr.ErrMalformedRecord):
		return http.StatusInternalServerError, "MALFORMED_RECORD", "Stored record is malformed", nil
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "GOOGLE_UNAUTHORIZED", "Google rejected the credential, authorize again", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

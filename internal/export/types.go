// Package export renders the reservations report as HTML or PDF.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Request contains parameters for an export operation
type Request struct {
	ActividadID string
	Estado      string
	Format      Format
}

// Row is one reservation line in the report
type Row struct {
	ID               string
	Actividad        string
	Nombre           string
	Email            string
	Telefono         string
	CantidadPersonas int
	Mensaje          string
	FechaReserva     time.Time
	Estado           string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat is returned for formats other than pdf and html.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)

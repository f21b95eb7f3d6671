// Package migration copies the legacy actividades.json and lugares.json
// catalog files into the row store.
package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nahueltrek/api/internal/logger"
	"nahueltrek/api/internal/store"
)

const (
	ActivitiesFile = "actividades.json"
	PlacesFile     = "lugares.json"
)

// flexString accepts a JSON string or number. Legacy ids were numeric.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type legacyActivity struct {
	ID            flexString `json:"id"`
	Titulo        string     `json:"titulo"`
	Descripcion   string     `json:"descripcion"`
	Duracion      flexString `json:"duracion"`
	Dificultad    string     `json:"dificultad"`
	Precio        flexString `json:"precio"`
	Incluye       string     `json:"incluye"`
	Imagen        string     `json:"imagen"`
	Imagenes      []string   `json:"imagenes"`
	Destacado     bool       `json:"destacado"`
	FechaCreacion string     `json:"fechaCreacion"`
	LugarID       flexString `json:"lugarId"`
}

type legacyPlace struct {
	ID            flexString `json:"id"`
	Titulo        string     `json:"titulo"`
	Descripcion   string     `json:"descripcion"`
	Ubicacion     string     `json:"ubicacion"`
	Contenido     string     `json:"contenido"`
	Categoria     string     `json:"categoria"`
	Destacado     bool       `json:"destacado"`
	Imagenes      []string   `json:"imagenes"`
	FechaCreacion string     `json:"fechaCreacion"`
	Lat           flexString `json:"lat"`
	Lng           flexString `json:"lng"`
}

// Report counts the rows written per sheet. A skipped file is listed in Skipped.
type Report struct {
	Actividades int
	Lugares     int
	Skipped     []string
}

type Migrator struct {
	activities store.Table
	places     store.Table
	log        *logger.Logger
	now        func() time.Time
}

func New(activities, places store.Table, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{activities: activities, places: places, log: log, now: time.Now}
}

// Run migrates both files found in dir. Each sheet is migrated independently;
// the errors of both are joined.
func (m *Migrator) Run(ctx context.Context, dir string) (Report, error) {
	var report Report
	var errs []error

	n, err := m.migrateActivities(ctx, filepath.Join(dir, ActivitiesFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		m.log.Warn("legacy file not found, skipping", "file", ActivitiesFile)
		report.Skipped = append(report.Skipped, ActivitiesFile)
	case err != nil:
		errs = append(errs, fmt.Errorf("actividades: %w", err))
	default:
		report.Actividades = n
		m.log.Info("migrated actividades", "rows", n)
	}

	n, err = m.migratePlaces(ctx, filepath.Join(dir, PlacesFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		m.log.Warn("legacy file not found, skipping", "file", PlacesFile)
		report.Skipped = append(report.Skipped, PlacesFile)
	case err != nil:
		errs = append(errs, fmt.Errorf("lugares: %w", err))
	default:
		report.Lugares = n
		m.log.Info("migrated lugares", "rows", n)
	}

	return report, errors.Join(errs...)
}

func readLegacy[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

func (m *Migrator) migrateActivities(ctx context.Context, path string) (int, error) {
	legacy, err := readLegacy[legacyActivity](path)
	if err != nil {
		return 0, err
	}
	if len(legacy) == 0 {
		m.log.Info("no actividades to migrate")
		return 0, nil
	}

	rows := make([][]string, 0, len(legacy))
	for i, l := range legacy {
		created, err := m.fecha(l.FechaCreacion)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		row, err := store.ActivitySchema.Encode(store.Activity{
			ID:            string(l.ID),
			Titulo:        l.Titulo,
			Descripcion:   l.Descripcion,
			Duracion:      string(l.Duracion),
			Dificultad:    l.Dificultad,
			Precio:        string(l.Precio),
			Incluye:       l.Incluye,
			Imagen:        l.Imagen,
			Imagenes:      l.Imagenes,
			Destacado:     l.Destacado,
			FechaCreacion: created,
			LugarID:       string(l.LugarID),
		})
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	if err := m.activities.Replace(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (m *Migrator) migratePlaces(ctx context.Context, path string) (int, error) {
	legacy, err := readLegacy[legacyPlace](path)
	if err != nil {
		return 0, err
	}
	if len(legacy) == 0 {
		m.log.Info("no lugares to migrate")
		return 0, nil
	}

	rows := make([][]string, 0, len(legacy))
	for i, l := range legacy {
		created, err := m.fecha(l.FechaCreacion)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		lat, err := coordinate(l.Lat)
		if err != nil {
			return 0, fmt.Errorf("record %d lat: %w", i, err)
		}
		lng, err := coordinate(l.Lng)
		if err != nil {
			return 0, fmt.Errorf("record %d lng: %w", i, err)
		}
		imagenes := l.Imagenes
		if imagenes == nil {
			imagenes = []string{}
		}
		row, err := store.PlaceSchema.Encode(store.Place{
			ID:            string(l.ID),
			Titulo:        l.Titulo,
			Descripcion:   l.Descripcion,
			Ubicacion:     l.Ubicacion,
			Contenido:     l.Contenido,
			Categoria:     l.Categoria,
			Destacado:     l.Destacado,
			Imagenes:      imagenes,
			FechaCreacion: created,
			Lat:           lat,
			Lng:           lng,
		})
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	if err := m.places.Replace(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// fecha parses a legacy timestamp; an empty value means now.
func (m *Migrator) fecha(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return m.now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("fechaCreacion %q: %w", value, err)
	}
	return t.UTC(), nil
}

func coordinate(value flexString) (*float64, error) {
	s := strings.TrimSpace(string(value))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

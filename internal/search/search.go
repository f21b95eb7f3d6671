package search

import "nahueltrek/api/internal/store"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultActividad ResultType = "actividad"
	ResultLugar     ResultType = "lugar"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	Categoria string     `json:"categoria,omitempty"`
	Destacado bool       `json:"destacado"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Categoria  string
	Destacado  bool
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ActivityRecord is the data we index for an activity.
type ActivityRecord struct {
	ID          string `json:"id"`
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
	Dificultad  string `json:"dificultad"`
	Incluye     string `json:"incluye"`
	LugarID     string `json:"lugarId"`
	Destacado   bool   `json:"destacado"`
}

// PlaceRecord is the data we index for a place.
type PlaceRecord struct {
	ID          string `json:"id"`
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
	Ubicacion   string `json:"ubicacion"`
	Contenido   string `json:"contenido"`
	Categoria   string `json:"categoria"`
	Destacado   bool   `json:"destacado"`
}

func ActivityToRecord(a store.Activity) ActivityRecord {
	return ActivityRecord{
		ID:          a.ID,
		Titulo:      a.Titulo,
		Descripcion: a.Descripcion,
		Dificultad:  a.Dificultad,
		Incluye:     a.Incluye,
		LugarID:     a.LugarID,
		Destacado:   a.Destacado,
	}
}

func PlaceToRecord(p store.Place) PlaceRecord {
	return PlaceRecord{
		ID:          p.ID,
		Titulo:      p.Titulo,
		Descripcion: p.Descripcion,
		Ubicacion:   p.Ubicacion,
		Contenido:   p.Contenido,
		Categoria:   p.Categoria,
		Destacado:   p.Destacado,
	}
}

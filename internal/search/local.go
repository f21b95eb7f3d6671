package search

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"nahueltrek/api/internal/store"
)

// Lister is satisfied by the store gateways.
type Lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// Local answers queries by scanning the row store directly. It is the
// fallback when Meilisearch is not configured or unhealthy.
type Local struct {
	activities Lister[store.Activity]
	places     Lister[store.Place]
}

func NewLocal(activities Lister[store.Activity], places Lister[store.Place]) *Local {
	return &Local{activities: activities, places: places}
}

const snippetRunes = 160

var foldReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func fold(s string) string {
	return foldReplacer.Replace(strings.ToLower(s))
}

type scored struct {
	result Result
	score  int
}

func (l *Local) Search(ctx context.Context, q Query) ([]Result, int, error) {
	terms := strings.Fields(fold(q.Text))
	var hits []scored

	if q.FilterType == "" || q.FilterType == ResultActividad {
		if q.Categoria == "" && l.activities != nil {
			activities, err := l.activities.List(ctx)
			if err != nil {
				return nil, 0, err
			}
			for _, a := range activities {
				if q.Destacado && !a.Destacado {
					continue
				}
				score, ok := match(terms, a.Titulo, a.Descripcion, a.Incluye)
				if !ok {
					continue
				}
				hits = append(hits, scored{
					result: Result{
						Type:      ResultActividad,
						ID:        a.ID,
						Title:     a.Titulo,
						Snippet:   snippet(a.Descripcion),
						Destacado: a.Destacado,
					},
					score: score,
				})
			}
		}
	}

	if (q.FilterType == "" || q.FilterType == ResultLugar) && l.places != nil {
		places, err := l.places.List(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, p := range places {
			if q.Destacado && !p.Destacado {
				continue
			}
			if q.Categoria != "" && p.Categoria != q.Categoria {
				continue
			}
			score, ok := match(terms, p.Titulo, p.Descripcion, p.Ubicacion, p.Contenido)
			if !ok {
				continue
			}
			hits = append(hits, scored{
				result: Result{
					Type:      ResultLugar,
					ID:        p.ID,
					Title:     p.Titulo,
					Snippet:   snippet(p.Descripcion),
					Categoria: p.Categoria,
					Destacado: p.Destacado,
				},
				score: score,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	total := len(hits)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	results := make([]Result, 0, end-start)
	for _, h := range hits[start:end] {
		results = append(results, h.result)
	}
	return results, total, nil
}

// match requires every term to appear in at least one field. Title hits weigh more.
func match(terms []string, title string, fields ...string) (int, bool) {
	if len(terms) == 0 {
		return 0, true
	}
	foldedTitle := fold(title)
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = fold(f)
	}

	score := 0
	for _, term := range terms {
		found := false
		if strings.Contains(foldedTitle, term) {
			score += 3
			found = true
		}
		for _, f := range folded {
			if strings.Contains(f, term) {
				score++
				found = true
			}
		}
		if !found {
			return 0, false
		}
	}
	return score, true
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:snippetRunes])) + "…"
}

// LoadAllRecords returns the whole catalog in indexable form.
func (l *Local) LoadAllRecords(ctx context.Context) ([]ActivityRecord, []PlaceRecord, error) {
	var activities []ActivityRecord
	var places []PlaceRecord
	if l.activities != nil {
		list, err := l.activities.List(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range list {
			activities = append(activities, ActivityToRecord(a))
		}
	}
	if l.places != nil {
		list, err := l.places.List(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range list {
			places = append(places, PlaceToRecord(p))
		}
	}
	return activities, places, nil
}

package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"nahueltrek/api/internal/logger"
)

const (
	idxActividades = "nahueltrek_actividades"
	idxLugares     = "nahueltrek_lugares"
)

// Meili executes catalog searches and keeps the indexes in sync via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	log     *logger.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, log *logger.Logger) *Meili {
	if log == nil {
		log = logger.Nop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		log:    log.With("component", "meilisearch"),
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		m.log.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxActividades,
			filterable: []string{"destacado", "dificultad", "lugarId"},
			searchable: []string{"titulo", "descripcion", "incluye"},
		},
		{
			uid:        idxLugares,
			filterable: []string{"destacado", "categoria"},
			searchable: []string{"titulo", "descripcion", "ubicacion", "contenido"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.log.Debug("create index failed (may already exist)", "index", idx.uid, "error", err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.log.Warn("update filterable attributes failed", "index", idx.uid, "error", err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.log.Warn("update searchable attributes failed", "index", idx.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targets := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxActividades, ResultActividad},
		{idxLugares, ResultLugar},
	}

	var queries []*meili.SearchRequest
	for _, target := range targets {
		if q.FilterType != "" && q.FilterType != target.rtyp {
			continue
		}
		if q.Categoria != "" && target.rtyp == ResultActividad {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              target.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"titulo", "descripcion"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if filters := meiliFilters(q, target.rtyp); len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func meiliFilters(q Query, rtyp ResultType) []string {
	var filters []string
	if q.Destacado {
		filters = append(filters, "destacado = true")
	}
	if q.Categoria != "" && rtyp == ResultLugar {
		filters = append(filters, fmt.Sprintf("categoria = %q", q.Categoria))
	}
	return filters
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxActividades:
		return ResultActividad
	case idxLugares:
		return ResultLugar
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.Categoria = decodeString(hit, "categoria")
	r.Destacado = decodeBool(hit, "destacado")
	r.Title = firstNonBlank(decodeFormattedString(hit, "titulo"), decodeString(hit, "titulo"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "descripcion"), decodeString(hit, "descripcion"))
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeBool(hit meili.Hit, key string) bool {
	raw, ok := hit[key]
	if !ok {
		return false
	}
	var b bool
	_ = json.Unmarshal(raw, &b)
	return b
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexActivity(rec ActivityRecord) error {
	_, err := m.client.Index(idxActividades).AddDocuments([]ActivityRecord{rec}, nil)
	return err
}

func (m *Meili) IndexPlace(rec PlaceRecord) error {
	_, err := m.client.Index(idxLugares).AddDocuments([]PlaceRecord{rec}, nil)
	return err
}

func (m *Meili) DeleteActivity(id string) error {
	_, err := m.client.Index(idxActividades).DeleteDocument(id, nil)
	return err
}

func (m *Meili) DeletePlace(id string) error {
	_, err := m.client.Index(idxLugares).DeleteDocument(id, nil)
	return err
}

// IndexActivities bulk-indexes activities.
func (m *Meili) IndexActivities(recs []ActivityRecord) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxActividades).AddDocuments(recs, nil)
	return err
}

// IndexPlaces bulk-indexes places.
func (m *Meili) IndexPlaces(recs []PlaceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLugares).AddDocuments(recs, nil)
	return err
}

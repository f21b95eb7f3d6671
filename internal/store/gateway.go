package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/util"
)

// Gateway is the CRUD surface of one sheet. Each call performs its own read-resolve-write
// sequence; concurrent updates of the same sheet can interleave and the last write wins.
type Gateway[T any] struct {
	table  Table
	schema Schema[T]
	now    func() time.Time
}

func NewGateway[T any](table Table, schema Schema[T]) *Gateway[T] {
	return &Gateway[T]{table: table, schema: schema, now: time.Now}
}

// WithClock replaces the time source used for ids and creation stamps.
func (g *Gateway[T]) WithClock(now func() time.Time) *Gateway[T] {
	g.now = now
	return g
}

func (g *Gateway[T]) Schema() Schema[T] { return g.schema }

func (g *Gateway[T]) List(ctx context.Context) ([]T, error) {
	rows, err := g.table.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", g.schema.Sheet, err)
	}
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		rec, err := g.schema.Decode(i+FirstDataRow, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g *Gateway[T]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	all, err := g.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(all))
	for _, rec := range all {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (g *Gateway[T]) Get(ctx context.Context, id string) (T, error) {
	position, row, err := Resolve(ctx, g.table, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return g.schema.Decode(position, row)
}

// Create assigns a fresh "<prefix>_<unix millis>" id and creation time, then appends one row.
func (g *Gateway[T]) Create(ctx context.Context, rec T) (T, error) {
	// Cells keep millisecond precision; the returned record must match what is read back.
	now := g.now().UTC().Truncate(time.Millisecond)
	if g.schema.Normalize != nil {
		g.schema.Normalize(&rec)
	}
	if g.schema.Validate != nil {
		if err := g.schema.Validate(&rec); err != nil {
			var zero T
			return zero, err
		}
	}
	g.schema.SetID(&rec, util.NewTimeID(g.schema.Prefix, now))
	g.schema.SetCreated(&rec, now)

	row, err := g.schema.Encode(rec)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := g.table.Append(ctx, row); err != nil {
		var zero T
		return zero, fmt.Errorf("create %s: %w", g.schema.Sheet, err)
	}
	return rec, nil
}

// Update applies mutate to the stored record. The id and creation time always survive the merge.
func (g *Gateway[T]) Update(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	var zero T
	position, row, err := Resolve(ctx, g.table, id)
	if err != nil {
		return zero, err
	}
	stored, err := g.schema.Decode(position, row)
	if err != nil {
		return zero, err
	}
	created := g.schema.Created(&stored)
	before, err := g.schema.Encode(stored)
	if err != nil {
		return zero, err
	}

	updated := stored
	if err := mutate(&updated); err != nil {
		return zero, err
	}
	g.schema.SetID(&updated, id)
	g.schema.SetCreated(&updated, created)

	encoded, err := g.schema.Encode(updated)
	if err != nil {
		return zero, err
	}
	if g.schema.Validate != nil {
		if err := g.touchedFailures(g.schema.Validate(&updated), before, encoded); err != nil {
			return zero, err
		}
	}
	if err := g.table.UpdateRow(ctx, position, encoded); err != nil {
		return zero, fmt.Errorf("update %s %s: %w", g.schema.Sheet, id, err)
	}
	return updated, nil
}

// touchedFailures keeps the validation failures of columns the update changed. A legacy
// row missing a required cell can still be patched in its other columns.
func (g *Gateway[T]) touchedFailures(err error, before, after []string) error {
	if err == nil {
		return nil
	}
	fields := apperr.Fields(err)
	if len(fields) == 0 {
		return err
	}
	var kept []error
	for _, f := range fields {
		i := g.schema.ColumnIndex(f.Field)
		if i < 0 || cellAt(before, i) != cellAt(after, i) {
			kept = append(kept, f)
		}
	}
	return errors.Join(kept...)
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Delete removes the row; every later row moves up by one.
func (g *Gateway[T]) Delete(ctx context.Context, id string) error {
	position, _, err := Resolve(ctx, g.table, id)
	if err != nil {
		return err
	}
	if err := g.table.DeleteRow(ctx, position); err != nil {
		return fmt.Errorf("delete %s %s: %w", g.schema.Sheet, id, err)
	}
	return nil
}

type Reservations struct {
	*Gateway[Reservation]
}

func NewReservations(table Table) Reservations {
	return Reservations{Gateway: NewGateway(table, ReservationSchema)}
}

// ListByActivity filters client-side; the sheet has no index on actividadId.
func (r Reservations) ListByActivity(ctx context.Context, activityID string) ([]Reservation, error) {
	return r.Filter(ctx, func(res Reservation) bool { return res.ActividadID == activityID })
}

// ReservationFilter narrows the admin reservation list. Zero fields match everything.
type ReservationFilter struct {
	ActividadID string
	Estado      string
}

func (f ReservationFilter) matches(r Reservation) bool {
	if f.ActividadID != "" && r.ActividadID != f.ActividadID {
		return false
	}
	if f.Estado != "" && r.EffectiveEstado() != f.Estado {
		return false
	}
	return true
}

// Query returns the reservations matching f, newest fechaReserva first.
func (r Reservations) Query(ctx context.Context, f ReservationFilter) ([]Reservation, error) {
	list, err := r.Filter(ctx, f.matches)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].FechaReserva.After(list[j].FechaReserva)
	})
	return list, nil
}

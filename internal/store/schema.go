package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nahueltrek/api/internal/apperr"
)

// TimeLayout is the ISO-8601 UTC form written for every timestamp cell.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Column maps one positional cell to a field of T. Encode and Decode share the same position.
type Column[T any] struct {
	Name   string
	Encode func(rec *T) (string, error)
	Decode func(rec *T, cell string) error
}

// Schema is the ordered column list of a sheet plus the identity accessors the gateway needs.
type Schema[T any] struct {
	Sheet   string
	Prefix  string
	Columns []Column[T]

	ID         func(rec *T) string
	SetID      func(rec *T, id string)
	Created    func(rec *T) time.Time
	SetCreated func(rec *T, t time.Time)

	// Normalize fills defaults before a create; Validate runs on create and after every merge.
	Normalize func(rec *T)
	Validate  func(rec *T) error
}

func (s Schema[T]) Width() int { return len(s.Columns) }

func (s Schema[T]) Header() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

func (s Schema[T]) Encode(rec T) ([]string, error) {
	row := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		cell, err := col.Encode(&rec)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", s.Sheet, col.Name, err)
		}
		row[i] = cell
	}
	return row, nil
}

// Decode builds a record from a row; position is the 1-based sheet row, used only for errors.
// Cells beyond the end of a short row are treated as empty.
func (s Schema[T]) Decode(position int, row []string) (T, error) {
	var rec T
	for i, col := range s.Columns {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if err := col.Decode(&rec, cell); err != nil {
			var zero T
			return zero, &apperr.RecordError{Sheet: s.Sheet, Row: position, Column: col.Name, Err: err}
		}
	}
	return rec, nil
}

// ColumnIndex returns the 0-based position of the named column, or -1.
func (s Schema[T]) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// ColumnLetter returns the A1 column name for a 1-based index.
func ColumnLetter(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

func stringColumn[T any](name string, field func(*T) *string) Column[T] {
	return Column[T]{
		Name:   name,
		Encode: func(rec *T) (string, error) { return *field(rec), nil },
		Decode: func(rec *T, cell string) error {
			*field(rec) = cell
			return nil
		},
	}
}

func boolColumn[T any](name string, field func(*T) *bool) Column[T] {
	return Column[T]{
		Name: name,
		Encode: func(rec *T) (string, error) {
			if *field(rec) {
				return "TRUE", nil
			}
			return "FALSE", nil
		},
		Decode: func(rec *T, cell string) error {
			*field(rec) = cell == "TRUE" || cell == "true"
			return nil
		},
	}
}

// countColumn reads the leading integer of the cell, so "3 personas" is 3. A cell with no
// leading digits, or a zero, decodes to fallback.
func countColumn[T any](name string, fallback int, field func(*T) *int) Column[T] {
	return Column[T]{
		Name:   name,
		Encode: func(rec *T) (string, error) { return strconv.Itoa(*field(rec)), nil },
		Decode: func(rec *T, cell string) error {
			v, ok := leadingInt(cell)
			if !ok || v == 0 {
				v = fallback
			}
			*field(rec) = v
			return nil
		},
	}
}

func leadingInt(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	end := 0
	if end < len(cell) && (cell[end] == '-' || cell[end] == '+') {
		end++
	}
	digits := end
	for end < len(cell) && cell[end] >= '0' && cell[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.Atoi(cell[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

func floatColumn[T any](name string, field func(*T) **float64) Column[T] {
	return Column[T]{
		Name: name,
		Encode: func(rec *T) (string, error) {
			v := *field(rec)
			if v == nil {
				return "", nil
			}
			return strconv.FormatFloat(*v, 'f', -1, 64), nil
		},
		Decode: func(rec *T, cell string) error {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				*field(rec) = nil
				return nil
			}
			// Sheets in a comma-decimal locale render -39.27 as -39,27.
			if !strings.Contains(cell, ".") {
				cell = strings.Replace(cell, ",", ".", 1)
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return fmt.Errorf("number %q: %w", cell, err)
			}
			*field(rec) = &v
			return nil
		},
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func timeColumn[T any](name string, field func(*T) *time.Time) Column[T] {
	return Column[T]{
		Name: name,
		Encode: func(rec *T) (string, error) {
			t := *field(rec)
			if t.IsZero() {
				return "", nil
			}
			return t.UTC().Format(TimeLayout), nil
		},
		Decode: func(rec *T, cell string) error {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				*field(rec) = time.Time{}
				return nil
			}
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, cell); err == nil {
					*field(rec) = t.UTC()
					return nil
				}
			}
			return fmt.Errorf("timestamp %q is not ISO-8601", cell)
		},
	}
}

func listColumn[T any](name string, field func(*T) *[]string) Column[T] {
	return Column[T]{
		Name: name,
		Encode: func(rec *T) (string, error) {
			list := *field(rec)
			if list == nil {
				list = []string{}
			}
			data, err := json.Marshal(list)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		Decode: func(rec *T, cell string) error {
			if strings.TrimSpace(cell) == "" {
				*field(rec) = []string{}
				return nil
			}
			var list []string
			if err := json.Unmarshal([]byte(cell), &list); err != nil {
				return fmt.Errorf("json list: %w", err)
			}
			if list == nil {
				list = []string{}
			}
			*field(rec) = list
			return nil
		},
	}
}

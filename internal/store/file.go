package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"nahueltrek/api/internal/apperr"
)

const (
	tmpSuffix       = ".tmp"
	filePermissions = 0o644
)

// FileTable keeps a sheet as a JSON array of rows in <dir>/<sheet>.json, header included.
// It behaves like a sheet: positions are 1-based and deleting a row shifts the rest up.
type FileTable struct {
	mu     sync.Mutex
	path   string
	name   string
	header []string
}

func NewFileTable(dir, sheet string, header []string) (*FileTable, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileTable{
		path:   filepath.Join(dir, sheet+".json"),
		name:   sheet,
		header: append([]string(nil), header...),
	}, nil
}

func (t *FileTable) Name() string { return t.name }

func (t *FileTable) Path() string { return t.path }

func (t *FileTable) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	all, err := t.load()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(all)-1)
	for _, row := range all[1:] {
		rows = append(rows, append([]string(nil), row...))
	}
	return rows, nil
}

func (t *FileTable) Append(ctx context.Context, row []string) error {
	return t.mutate(ctx, func(all [][]string) ([][]string, error) {
		return append(all, append([]string(nil), row...)), nil
	})
}

func (t *FileTable) UpdateRow(ctx context.Context, position int, row []string) error {
	return t.mutate(ctx, func(all [][]string) ([][]string, error) {
		idx := position - 1
		if position < FirstDataRow || idx >= len(all) {
			return nil, fmt.Errorf("%s row %d: %w", t.name, position, apperr.ErrNotFound)
		}
		all[idx] = append([]string(nil), row...)
		return all, nil
	})
}

func (t *FileTable) DeleteRow(ctx context.Context, position int) error {
	return t.mutate(ctx, func(all [][]string) ([][]string, error) {
		idx := position - 1
		if position < FirstDataRow || idx >= len(all) {
			return nil, fmt.Errorf("%s row %d: %w", t.name, position, apperr.ErrNotFound)
		}
		return append(all[:idx], all[idx+1:]...), nil
	})
}

func (t *FileTable) Replace(ctx context.Context, rows [][]string) error {
	return t.mutate(ctx, func(all [][]string) ([][]string, error) {
		next := [][]string{all[0]}
		for _, row := range rows {
			next = append(next, append([]string(nil), row...))
		}
		return next, nil
	})
}

func (t *FileTable) mutate(ctx context.Context, fn func([][]string) ([][]string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	all, err := t.load()
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	return t.save(next)
}

// load returns the whole file; a missing file reads as the header alone.
func (t *FileTable) load() ([][]string, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return [][]string{append([]string(nil), t.header...)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	var all [][]string
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", t.path, errors.Join(apperr.ErrMalformedRecord, err))
	}
	if len(all) == 0 {
		all = [][]string{append([]string(nil), t.header...)}
	}
	return all, nil
}

func (t *FileTable) save(all [][]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t.name, err)
	}
	tmp := t.path + tmpSuffix
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("commit %s: %w", t.path, err)
	}
	return nil
}

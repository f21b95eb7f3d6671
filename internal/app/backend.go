package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/config"
	"nahueltrek/api/internal/logger"
	"nahueltrek/api/internal/session"
	"nahueltrek/api/internal/store"
)

// Tables are the three positional row stores, one per sheet.
type Tables struct {
	Actividades store.Table
	Lugares     store.Table
	Reservas    store.Table
}

// Backends bundles what both binaries open from configuration.
type Backends struct {
	Credentials session.Store
	Google      *session.Registry
	Tables      Tables
	Checks      []Check

	closers []func() error
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GoogleOptions returns client options applied to every Google API client.
func GoogleOptions(cfg config.Config) []option.ClientOption {
	if strings.TrimSpace(cfg.GoogleEndpoint) == "" {
		return nil
	}
	return []option.ClientOption{option.WithEndpoint(cfg.GoogleEndpoint)}
}

// OpenBackends opens the credential store, builds the Google credential
// registry and the row tables selected by STORAGE_BACKEND.
func OpenBackends(ctx context.Context, cfg config.Config, log *logger.Logger) (*Backends, error) {
	b := &Backends{}

	creds, err := b.openCredentialStore(ctx, cfg, log)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Credentials = creds

	b.Google = session.NewRegistry(session.RegistryConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Share:        cfg.ShareCredentials,
		Store:        creds,
		Logger:       log,
	})

	tables, err := b.openTables(cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Tables = tables
	return b, nil
}

func (b *Backends) openCredentialStore(ctx context.Context, cfg config.Config, log *logger.Logger) (session.Store, error) {
	switch cfg.CredentialStore {
	case "", "file":
		fs, err := session.NewFileStore(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("credential file store: %w", err)
		}
		log.Info("using file credential store", "path", cfg.CredentialsFile)
		return fs, nil

	case "redis":
		rs, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		b.closers = append(b.closers, rs.Close)
		b.Checks = append(b.Checks, Check{Name: "redis", Fn: rs.Ping})
		log.Info("using redis credential store")
		return rs, nil

	case "postgres":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		if err := store.ApplyMigrations(ctx, db, store.Migrations); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		ps := store.NewPostgresStore(db)
		b.Checks = append(b.Checks, Check{Name: "database", Fn: ps.Ping})
		log.Info("using postgres credential store")
		return ps, nil
	}
	return nil, fmt.Errorf("unknown CREDENTIAL_STORE %q", cfg.CredentialStore)
}

func (b *Backends) openTables(cfg config.Config) (Tables, error) {
	switch cfg.StorageBackend {
	case "", "local":
		var t Tables
		var err error
		if t.Actividades, err = store.NewFileTable(cfg.DataDir, store.SheetActividades, store.ActivitySchema.Header()); err != nil {
			return Tables{}, err
		}
		if t.Lugares, err = store.NewFileTable(cfg.DataDir, store.SheetLugares, store.PlaceSchema.Header()); err != nil {
			return Tables{}, err
		}
		if t.Reservas, err = store.NewFileTable(cfg.DataDir, store.SheetReservas, store.ReservationSchema.Header()); err != nil {
			return Tables{}, err
		}
		dir := cfg.DataDir
		b.Checks = append(b.Checks, Check{Name: "storage", Fn: func(context.Context) error {
			_, err := os.Stat(dir)
			return err
		}})
		return t, nil

	case "sheets":
		if cfg.SheetsActividadesID == "" || cfg.SheetsLugaresID == "" || cfg.SheetsReservasID == "" {
			return Tables{}, errors.New("sheets backend needs GOOGLE_SHEETS_ACTIVIDADES_ID, GOOGLE_SHEETS_LUGARES_ID and GOOGLE_SHEETS_RESERVAS_ID")
		}
		clients := b.Google.Sheets()
		opts := GoogleOptions(cfg)
		table := func(spreadsheetID, sheet string, columns int) store.Table {
			return store.NewSheetsTable(clients, store.SheetsConfig{
				SpreadsheetID: spreadsheetID,
				Sheet:         sheet,
				Columns:       columns,
				SheetGID:      cfg.SheetGID,
				Options:       opts,
			})
		}
		b.Checks = append(b.Checks, Check{Name: "storage", Fn: func(context.Context) error {
			if !clients.Ready() {
				return apperr.ErrNotInitialized
			}
			return nil
		}})
		return Tables{
			Actividades: table(cfg.SheetsActividadesID, store.SheetActividades, store.ActivitySchema.Width()),
			Lugares:     table(cfg.SheetsLugaresID, store.SheetLugares, store.PlaceSchema.Width()),
			Reservas:    table(cfg.SheetsReservasID, store.SheetReservas, store.ReservationSchema.Width()),
		}, nil
	}
	return Tables{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
}

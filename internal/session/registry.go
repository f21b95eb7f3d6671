package session

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/logger"
)

const (
	scopeSpreadsheets   = "https://www.googleapis.com/auth/spreadsheets"
	scopeDriveFile      = "https://www.googleapis.com/auth/drive.file"
	scopeCalendar       = "https://www.googleapis.com/auth/calendar"
	scopeCalendarEvents = "https://www.googleapis.com/auth/calendar.events"
)

var subsystemScopes = map[Subsystem][]string{
	Sheets:   {scopeSpreadsheets, scopeDriveFile},
	Drive:    {scopeDriveFile},
	Calendar: {scopeCalendar, scopeCalendarEvents},
}

// sharedFallbacks is the order in which a subsystem borrows another's stored credential.
var sharedFallbacks = map[Subsystem][]Subsystem{
	Sheets:   {Drive},
	Calendar: {Sheets, Drive},
	Drive:    nil,
}

// sharedInitFallbacks are borrowed from at startup. Only calendar reuses another key
// without an explicit authorization.
var sharedInitFallbacks = map[Subsystem][]Subsystem{
	Calendar: {Sheets},
}

type RegistryConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Share enables credential borrowing. Every consent then asks for the union of all scopes
	// so a borrowed token can serve the borrower.
	Share      bool
	Store      Store
	Logger     *logger.Logger
	HTTPClient *http.Client
	Endpoint   *oauth2.Endpoint
}

type Registry struct {
	managers map[Subsystem]*Manager
}

func NewRegistry(cfg RegistryConfig) *Registry {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	r := &Registry{managers: map[Subsystem]*Manager{}}
	for _, sub := range Subsystems {
		var oauthCfg *oauth2.Config
		if cfg.ClientID != "" && cfg.ClientSecret != "" {
			oauthCfg = &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.RedirectURL,
				Endpoint:     endpoint,
				Scopes:       scopesFor(sub, cfg.Share),
			}
		}
		var fallbacks, initFallbacks []Subsystem
		if cfg.Share {
			fallbacks = sharedFallbacks[sub]
			initFallbacks = sharedInitFallbacks[sub]
		}
		r.managers[sub] = NewManager(ManagerConfig{
			Subsystem:  sub,
			OAuth:      oauthCfg,
			Store:      cfg.Store,
			Fallbacks:     fallbacks,
			InitFallbacks: initFallbacks,
			Logger:        cfg.Logger,
			HTTPClient:    cfg.HTTPClient,
		})
	}
	return r
}

func scopesFor(sub Subsystem, share bool) []string {
	if !share {
		return append([]string(nil), subsystemScopes[sub]...)
	}
	seen := map[string]bool{}
	var out []string
	for _, s := range Subsystems {
		for _, scope := range subsystemScopes[s] {
			if !seen[scope] {
				seen[scope] = true
				out = append(out, scope)
			}
		}
	}
	return out
}

func (r *Registry) Manager(sub Subsystem) *Manager { return r.managers[sub] }

func (r *Registry) Sheets() *Manager   { return r.managers[Sheets] }
func (r *Registry) Drive() *Manager    { return r.managers[Drive] }
func (r *Registry) Calendar() *Manager { return r.managers[Calendar] }

// InitializeAll loads every stored credential; a failure for one subsystem does not stop the rest.
func (r *Registry) InitializeAll(ctx context.Context) map[Subsystem]error {
	errs := map[Subsystem]error{}
	for _, sub := range Subsystems {
		if _, err := r.managers[sub].Initialize(ctx); err != nil {
			errs[sub] = err
		}
	}
	return errs
}

// Complete routes an OAuth callback to the manager that issued state.
func (r *Registry) Complete(ctx context.Context, state, code string) (Subsystem, error) {
	for _, sub := range Subsystems {
		m := r.managers[sub]
		if m.OwnsState(state) {
			return sub, m.Complete(ctx, state, code)
		}
	}
	return "", apperr.Validation("state", "does not match a pending authorization")
}

type Status struct {
	Subsystem  Subsystem `json:"subsystem"`
	State      string    `json:"state"`
	Ready      bool      `json:"ready"`
	Configured bool      `json:"configured"`
}

func (r *Registry) Status() []Status {
	out := make([]Status, 0, len(Subsystems))
	for _, sub := range Subsystems {
		m := r.managers[sub]
		state := m.State()
		out = append(out, Status{
			Subsystem:  sub,
			State:      state.String(),
			Ready:      state == StateAuthenticated,
			Configured: m.Configured(),
		})
	}
	return out
}

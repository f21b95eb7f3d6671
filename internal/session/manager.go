package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"nahueltrek/api/internal/apperr"
	"nahueltrek/api/internal/logger"
)

type Subsystem string

const (
	Sheets   Subsystem = "sheets"
	Drive    Subsystem = "drive"
	Calendar Subsystem = "calendar"
)

var Subsystems = []Subsystem{Sheets, Drive, Calendar}

func ParseSubsystem(value string) (Subsystem, bool) {
	for _, s := range Subsystems {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Key is the credential store key, e.g. google_sheets_token.
func (s Subsystem) Key() string { return "google_" + string(s) + "_token" }

type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "uninitialized"
	}
}

type ManagerConfig struct {
	Subsystem Subsystem
	// OAuth nil means no client id/secret is configured; the manager then never becomes ready.
	OAuth     *oauth2.Config
	Store     Store
	Fallbacks []Subsystem
	// InitFallbacks are borrowed from already at Initialize, before any consent is asked for.
	InitFallbacks []Subsystem
	Logger        *logger.Logger
	// HTTPClient is used for the token endpoint and as the base transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// AuthResult is returned by Authenticate: either a ready credential or a consent URL to visit.
type AuthResult struct {
	Authenticated bool      `json:"authenticated"`
	BorrowedFrom  Subsystem `json:"borrowedFrom,omitempty"`
	AuthURL       string    `json:"authUrl,omitempty"`
	State         string    `json:"-"`
}

// Manager owns one subsystem's credential. All state transitions happen under mu.
type Manager struct {
	mu sync.Mutex

	subsystem  Subsystem
	oauth      *oauth2.Config
	store      Store
	fallbacks     []Subsystem
	initFallbacks []Subsystem
	log           *logger.Logger
	httpClient    *http.Client

	state        State
	token        *oauth2.Token
	pendingState string
}

func NewManager(cfg ManagerConfig) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		subsystem:  cfg.Subsystem,
		oauth:      cfg.OAuth,
		store:      cfg.Store,
		fallbacks:     append([]Subsystem(nil), cfg.Fallbacks...),
		initFallbacks: append([]Subsystem(nil), cfg.InitFallbacks...),
		log:           log.With("subsystem", string(cfg.Subsystem)),
		httpClient:    client,
	}
}

func (m *Manager) Subsystem() Subsystem { return m.subsystem }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Ready() bool {
	return m.State() == StateAuthenticated
}

func (m *Manager) Configured() bool { return m.oauth != nil }

// Initialize loads this subsystem's stored credential, then tries InitFallbacks. It reports
// whether a credential was found.
func (m *Manager) Initialize(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.oauth == nil {
		m.log.Warn("google oauth client not configured")
		m.state = StateUninitialized
		return false, nil
	}
	m.state = StateInitialized
	tok, err := m.loadLocked(ctx, m.subsystem.Key())
	if errors.Is(err, apperr.ErrCredentialMissing) {
		from, err := m.borrowLocked(ctx, m.initFallbacks)
		if err != nil {
			return false, err
		}
		if from == "" {
			m.log.Info("google credential requires authorization")
			return false, nil
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	m.token = tok
	m.state = StateAuthenticated
	m.log.Info("google credential loaded")
	return true, nil
}

// Authenticate borrows a fallback subsystem's credential when one exists. Otherwise it
// starts a consent flow and returns the URL to visit.
func (m *Manager) Authenticate(ctx context.Context) (AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.oauth == nil {
		return AuthResult{}, fmt.Errorf("google oauth client not configured: %w", apperr.ErrNotInitialized)
	}
	if m.state == StateAuthenticated && m.token != nil {
		return AuthResult{Authenticated: true}, nil
	}

	from, err := m.borrowLocked(ctx, m.fallbacks)
	if err != nil {
		return AuthResult{}, err
	}
	if from != "" {
		return AuthResult{Authenticated: true, BorrowedFrom: from}, nil
	}

	state, err := randomState()
	if err != nil {
		return AuthResult{}, err
	}
	m.pendingState = state
	m.state = StateAuthenticating
	url := m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return AuthResult{AuthURL: url, State: state}, nil
}

// borrowLocked copies the first readable credential of from under this subsystem's key
// and returns the subsystem it came from, or "" when none is stored.
func (m *Manager) borrowLocked(ctx context.Context, from []Subsystem) (Subsystem, error) {
	for _, other := range from {
		blob, err := m.store.Get(ctx, other.Key())
		if errors.Is(err, apperr.ErrCredentialMissing) {
			continue
		}
		if err != nil {
			return "", err
		}
		tok, err := decodeToken(blob)
		if err != nil {
			m.log.Warn("ignoring unreadable fallback credential", "from", string(other), "error", err)
			continue
		}
		if err := m.store.Put(ctx, m.subsystem.Key(), blob); err != nil {
			return "", err
		}
		m.token = tok
		m.state = StateAuthenticated
		m.pendingState = ""
		m.log.Info("google credential borrowed", "from", string(other))
		return other, nil
	}
	return "", nil
}

// OwnsState reports whether state belongs to this manager's pending consent flow.
func (m *Manager) OwnsState(state string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticating && state != "" && state == m.pendingState
}

// Complete exchanges the authorization code and stores the resulting credential.
func (m *Manager) Complete(ctx context.Context, state, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.oauth == nil {
		return fmt.Errorf("google oauth client not configured: %w", apperr.ErrNotInitialized)
	}
	if m.state != StateAuthenticating || state == "" || state != m.pendingState {
		return apperr.Validation("state", "does not match a pending authorization")
	}
	tok, err := m.oauth.Exchange(m.tokenContext(ctx), code)
	if err != nil {
		m.state = StateInitialized
		m.pendingState = ""
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := m.saveLocked(ctx, tok); err != nil {
		return err
	}
	m.token = tok
	m.state = StateAuthenticated
	m.pendingState = ""
	m.log.Info("google authorization completed")
	return nil
}

// HTTPClient returns a client that authorizes requests and persists refreshed tokens.
func (m *Manager) HTTPClient(ctx context.Context) (*http.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.token == nil {
		return nil, fmt.Errorf("google %s: %w", m.subsystem, apperr.ErrNotInitialized)
	}
	tctx := m.tokenContext(context.Background())
	src := &persistingSource{
		manager: m,
		base:    oauth2.ReuseTokenSource(m.token, m.oauth.TokenSource(tctx, m.token)),
		last:    m.token.AccessToken,
	}
	return oauth2.NewClient(tctx, src), nil
}

// Invalidate forgets this subsystem's credential after the API rejected it. Other keys stay.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx, "google credential rejected; authorization required")
}

func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx, "google credential removed")
}

func (m *Manager) clearLocked(ctx context.Context, msg string) error {
	m.token = nil
	m.pendingState = ""
	m.state = StateUninitialized
	if err := m.store.Delete(ctx, m.subsystem.Key()); err != nil {
		return err
	}
	m.log.Warn(msg)
	return nil
}

func (m *Manager) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func (m *Manager) loadLocked(ctx context.Context, key string) (*oauth2.Token, error) {
	blob, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeToken(blob)
}

func (m *Manager) saveLocked(ctx context.Context, tok *oauth2.Token) error {
	blob, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return m.store.Put(ctx, m.subsystem.Key(), blob)
}

// refreshed is called by the token source outside any request lock.
func (m *Manager) refreshed(tok *oauth2.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return
	}
	if tok.RefreshToken == "" && m.token != nil {
		tok.RefreshToken = m.token.RefreshToken
	}
	m.token = tok
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.saveLocked(ctx, tok); err != nil {
		m.log.Error("persist refreshed token failed", "error", err)
	}
}

func (m *Manager) refreshFailed(err error) {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return
	}
	if rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Invalidate(ctx)
	}
}

type persistingSource struct {
	manager *Manager
	base    oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		p.manager.refreshFailed(err)
		return nil, err
	}
	p.mu.Lock()
	changed := tok.AccessToken != p.last
	p.last = tok.AccessToken
	p.mu.Unlock()
	if changed {
		p.manager.refreshed(tok)
	}
	return tok, nil
}

func decodeToken(blob []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(blob, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("decode token: empty credential")
	}
	return &tok, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Package session owns the credential lifecycle of one Invo API
// session: login, token refresh, API-key exchange, expiry gating, and
// the single-flight guard that collapses concurrent authentication
// attempts into one network call.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/invohq/invo-go/autherr"
	"github.com/invohq/invo-go/rest"
	"github.com/invohq/invo-go/token"
)

// Flow selects which credential source a session authenticates with.
type Flow int

const (
	// FlowPassword authenticates with email/password and can refresh.
	FlowPassword Flow = iota
	// FlowAPIKey exchanges a long-lived opaque key for a short-lived
	// access token; there is no refresh token in this flow.
	FlowAPIKey
)

// authFlightKey is the singleflight key shared by every authentication
// operation; login and refresh are mutually exclusive per manager.
const authFlightKey = "auth"

// Hooks are optional observer callbacks. They are side channels: an
// error routed through OnError is still returned to the caller.
type Hooks struct {
	OnTokenRefreshed func(Credentials)
	OnLogout         func()
	OnError          func(error)
}

// Config carries the credential source for a Manager. Exactly one of
// the password pair or the API key must be set; WorkspaceID is only
// meaningful with an API key.
type Config struct {
	Flow        Flow
	Email       string
	Password    string
	APIKey      string
	WorkspaceID string
}

// Manager is the session state machine. All methods are safe for
// concurrent use.
type Manager struct {
	client *rest.Client
	cfg    Config

	autoRefresh bool
	skew        time.Duration
	hooks       Hooks
	logger      zerolog.Logger
	now         func() time.Time

	store Store
	group singleflight.Group

	timerMu      sync.Mutex
	refreshTimer *time.Timer
}

// Option configures a Manager.
type Option func(*Manager)

// WithAutoRefresh enables the background refresh timer (password flow
// only; the API-key flow re-exchanges lazily).
func WithAutoRefresh(enabled bool) Option {
	return func(m *Manager) { m.autoRefresh = enabled }
}

// WithRefreshSkew sets how early before hard expiry a token counts as
// expired, both for the background timer and for lazy gating.
func WithRefreshSkew(skew time.Duration) Option {
	return func(m *Manager) {
		if skew >= 0 {
			m.skew = skew
		}
	}
}

// WithHooks installs observer callbacks.
func WithHooks(hooks Hooks) Option {
	return func(m *Manager) { m.hooks = hooks }
}

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New validates the credential source and builds a Manager. Credential
// misconfiguration is a plain constructor error, deliberately distinct
// from the classified runtime error kinds.
func New(client *rest.Client, cfg Config, options ...Option) (*Manager, error) {
	if client == nil {
		return nil, errors.New("[session.New] rest client is required")
	}
	switch cfg.Flow {
	case FlowPassword:
		if cfg.Email == "" || cfg.Password == "" {
			return nil, errors.New("[session.New] email and password are required for the password flow")
		}
		if cfg.APIKey != "" {
			return nil, errors.New("[session.New] api key and password credentials are mutually exclusive")
		}
	case FlowAPIKey:
		if cfg.APIKey == "" {
			return nil, errors.New("[session.New] api key is required for the key flow")
		}
		if cfg.Email != "" || cfg.Password != "" {
			return nil, errors.New("[session.New] api key and password credentials are mutually exclusive")
		}
	default:
		return nil, errors.Errorf("[session.New] unknown flow %d", cfg.Flow)
	}

	m := &Manager{
		client: client,
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// authResponse is the wire shape all three auth endpoints answer with.
type authResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	User         Identity `json:"user"`
}

// Credentials returns a copy of the currently held credentials.
func (m *Manager) Credentials() Credentials { return m.store.Snapshot() }

// Workspace returns the configured workspace identifier, if any.
func (m *Manager) Workspace() string { return m.cfg.WorkspaceID }

// Login authenticates with email/password. Concurrent callers share a
// single network call.
func (m *Manager) Login(ctx context.Context) error {
	if m.cfg.Flow != FlowPassword {
		return errors.New("[session.Login] session is not configured with email/password credentials")
	}
	_, err, _ := m.group.Do(authFlightKey, func() (any, error) {
		return nil, m.login(ctx)
	})
	return err
}

// LoginWithKey exchanges the configured API key for an access token.
// Concurrent callers share a single network call.
func (m *Manager) LoginWithKey(ctx context.Context) error {
	if m.cfg.Flow != FlowAPIKey {
		return errors.New("[session.LoginWithKey] session is not configured with an api key")
	}
	_, err, _ := m.group.Do(authFlightKey, func() (any, error) {
		return nil, m.loginWithKey(ctx)
	})
	return err
}

// Refresh exchanges the stored refresh token for a new credential set.
// Existing credentials are kept on failure so the caller can retry or
// fall back to a fresh login.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do(authFlightKey, func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

// EnsureAuthenticated guarantees a usable access token is held before
// returning. A valid token short-circuits; otherwise the caller either
// joins an authentication already in flight or starts the single shared
// one. N concurrent callers on a cold session produce exactly one
// network login.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	if m.hasValidToken(m.skew) {
		return nil
	}
	_, err, _ := m.group.Do(authFlightKey, func() (any, error) {
		// A caller that raced in behind a finished flight re-checks
		// before paying for another one.
		if m.hasValidToken(m.skew) {
			return nil, nil
		}
		switch m.cfg.Flow {
		case FlowAPIKey:
			return nil, m.loginWithKey(ctx)
		default:
			if m.store.Snapshot().RefreshToken != "" {
				return nil, m.refresh(ctx)
			}
			return nil, m.login(ctx)
		}
	})
	return err
}

// BearerToken runs the flow-appropriate gating and returns the access
// token to attach. In the password flow an expired token triggers a
// refresh first; in the key flow the key is (re-)exchanged as needed.
func (m *Manager) BearerToken(ctx context.Context) (string, error) {
	switch m.cfg.Flow {
	case FlowAPIKey:
		if err := m.EnsureAuthenticated(ctx); err != nil {
			return "", err
		}
	default:
		creds := m.store.Snapshot()
		if creds.Empty() || token.IsExpired(creds.AccessToken, 0, m.now()) {
			if err := m.Refresh(ctx); err != nil {
				return "", err
			}
		}
	}

	creds := m.store.Snapshot()
	if creds.Empty() {
		return "", m.classify(autherr.New(autherr.KindTokenExpired, "no access token available"))
	}
	return creds.AccessToken, nil
}

// IsAuthenticated reports whether a non-expired access token is held.
// An undecodable token counts as not authenticated.
func (m *Manager) IsAuthenticated() bool {
	creds := m.store.Snapshot()
	if creds.Empty() {
		return false
	}
	return !token.IsExpired(creds.AccessToken, 0, m.now())
}

// Logout cancels any scheduled refresh, drops all credentials and fires
// the OnLogout hook. Calling it on a logged-out session is a no-op
// beyond the hook.
func (m *Manager) Logout() {
	m.stopTimer()
	m.store.Clear()
	m.logger.Debug().Msg("session logged out")
	if m.hooks.OnLogout != nil {
		m.hooks.OnLogout()
	}
}

// NotifyError routes an already-classified error through the OnError
// hook. The facade uses it for errors produced outside this package so
// each classified error reaches the observer exactly once.
func (m *Manager) NotifyError(err error) {
	if err == nil || m.hooks.OnError == nil {
		return
	}
	if autherr.IsClassified(err) {
		m.hooks.OnError(err)
	}
}

func (m *Manager) login(ctx context.Context) error {
	resp, err := m.client.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body: map[string]string{
			"email":    m.cfg.Email,
			"password": m.cfg.Password,
		},
	})
	if err != nil {
		return m.classify(err)
	}

	auth, err := m.decodeAuth(resp)
	if err != nil {
		return err
	}
	m.store.Replace(Credentials{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		Identity:     &Identity{ID: auth.User.ID, Email: auth.User.Email},
	})
	m.logger.Debug().Str("user", auth.User.ID).Msg("password login succeeded")
	m.armTimer(auth.ExpiresIn)
	return nil
}

func (m *Manager) loginWithKey(ctx context.Context) error {
	resp, err := m.client.Do(ctx, rest.Request{
		Method:    http.MethodPost,
		Path:      "/auth/token",
		Body:      map[string]string{"api_key": m.cfg.APIKey},
		Workspace: m.cfg.WorkspaceID,
	})
	if err != nil {
		return m.classify(err)
	}

	auth, err := m.decodeAuth(resp)
	if err != nil {
		return err
	}
	// The key flow has no refresh capability; a refresh token in the
	// response is ignored rather than stored.
	m.store.Replace(Credentials{
		AccessToken: auth.AccessToken,
		Identity:    &Identity{ID: auth.User.ID, Email: auth.User.Email},
	})
	m.logger.Debug().Str("user", auth.User.ID).Msg("api key exchange succeeded")
	return nil
}

func (m *Manager) refresh(ctx context.Context) error {
	creds := m.store.Snapshot()
	if creds.RefreshToken == "" {
		return m.classify(autherr.New(autherr.KindTokenExpired, "no refresh token available"))
	}

	resp, err := m.client.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refresh_token": creds.RefreshToken},
	})
	if err != nil {
		// Existing credentials are deliberately kept; the caller may
		// fall back to a fresh login.
		return m.classify(err)
	}

	auth, err := m.decodeAuth(resp)
	if err != nil {
		return err
	}
	next := Credentials{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		Identity:     &Identity{ID: auth.User.ID, Email: auth.User.Email},
	}
	if next.RefreshToken == "" {
		next.RefreshToken = creds.RefreshToken
	}
	m.store.Replace(next)
	m.logger.Debug().Msg("token refreshed")
	m.armTimer(auth.ExpiresIn)
	if m.hooks.OnTokenRefreshed != nil {
		m.hooks.OnTokenRefreshed(next)
	}
	return nil
}

func (m *Manager) decodeAuth(resp *rest.Response) (authResponse, error) {
	var auth authResponse
	if err := resp.DecodeJSON(&auth); err != nil {
		return authResponse{}, m.classify(autherr.Wrap(autherr.KindAuth, err, "unexpected auth response body"))
	}
	if auth.AccessToken == "" {
		return authResponse{}, m.classify(autherr.New(autherr.KindAuth, "auth response contained no access token"))
	}
	return auth, nil
}

func (m *Manager) hasValidToken(skew time.Duration) bool {
	creds := m.store.Snapshot()
	if creds.Empty() {
		return false
	}
	return !token.IsExpired(creds.AccessToken, skew, m.now())
}

// classify routes a classified error through OnError exactly once and
// returns it unchanged.
func (m *Manager) classify(err error) error {
	m.NotifyError(err)
	return err
}

// armTimer schedules the single background refresh. Only the password
// flow refreshes proactively, and only one timer is ever live: arming
// replaces and stops the previous one.
func (m *Manager) armTimer(expiresIn int64) {
	if !m.autoRefresh || m.cfg.Flow != FlowPassword {
		return
	}
	delay := time.Duration(expiresIn)*time.Second - m.skew
	if delay < 0 {
		delay = 0
	}

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}
	m.refreshTimer = time.AfterFunc(delay, m.backgroundRefresh)
	m.logger.Debug().Dur("delay", delay).Msg("refresh timer armed")
}

func (m *Manager) stopTimer() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

// backgroundRefresh runs once when the timer fires. No caller is
// awaiting it, so failures are swallowed after Refresh has routed them
// to OnError; the lazy expiry check on the next call is the fallback.
func (m *Manager) backgroundRefresh() {
	if err := m.Refresh(context.Background()); err != nil {
		m.logger.Warn().Err(err).Msg("scheduled refresh failed")
	}
}

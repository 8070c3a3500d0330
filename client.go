// Package invo is the Go SDK for the Invo invoicing API. A Client
// authenticates with either email/password or an API key, keeps its
// tokens fresh transparently, and exposes typed wrappers for the
// invoicing endpoints plus a generic passthrough request.
package invo

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/invohq/invo-go/rest"
	"github.com/invohq/invo-go/session"
)

// Client is one authenticated session against one environment. It is
// safe for concurrent use.
type Client struct {
	env     Environment
	rest    *rest.Client
	session *session.Manager
	logger  zerolog.Logger
}

// settings accumulates option values before validation.
type settings struct {
	env         Environment
	envSet      bool
	baseURL     string
	email       string
	password    string
	apiKey      string
	workspaceID string
	httpClient  *http.Client
	logger      zerolog.Logger
	autoRefresh bool
	skew        time.Duration
	skewSet     bool
	hooks       session.Hooks
	now         func() time.Time
}

// Option configures a Client.
type Option func(*settings)

// WithPassword selects the email/password flow.
func WithPassword(email, password string) Option {
	return func(s *settings) {
		s.email = email
		s.password = password
	}
}

// WithAPIKey selects the key-exchange flow. Unless WithEnvironment is
// also given, the environment is detected from the key prefix.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.apiKey = key }
}

// WithWorkspace scopes an API-key session to one workspace; the
// workspace header is attached to every call.
func WithWorkspace(workspaceID string) Option {
	return func(s *settings) { s.workspaceID = workspaceID }
}

// WithEnvironment pins the environment explicitly.
func WithEnvironment(env Environment) Option {
	return func(s *settings) {
		s.env = env
		s.envSet = true
	}
}

// WithBaseURL overrides the environment's fixed base URL, for
// self-hosted deployments and tests.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.baseURL = baseURL }
}

// WithHTTPClient replaces the transport (timeouts, proxies, test
// servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithLogger sets the logger used across the SDK. Defaults to a no-op
// logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithAutoRefresh enables proactive token refresh in the password flow.
func WithAutoRefresh(enabled bool) Option {
	return func(s *settings) { s.autoRefresh = enabled }
}

// WithRefreshSkew sets how early before expiry tokens are renewed.
func WithRefreshSkew(skew time.Duration) Option {
	return func(s *settings) {
		s.skew = skew
		s.skewSet = true
	}
}

// WithHooks installs the observer callbacks.
func WithHooks(hooks session.Hooks) Option {
	return func(s *settings) { s.hooks = hooks }
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

const defaultRefreshSkew = 30 * time.Second

// New builds a Client. Exactly one credential source must be supplied;
// anything else fails here, synchronously, before any network traffic.
func New(options ...Option) (*Client, error) {
	s := settings{logger: zerolog.Nop()}
	for _, opt := range options {
		opt(&s)
	}

	hasPassword := s.email != "" || s.password != ""
	hasKey := s.apiKey != ""
	switch {
	case hasPassword && hasKey:
		return nil, errors.New("[invo.New] supply either WithPassword or WithAPIKey, not both")
	case !hasPassword && !hasKey:
		return nil, errors.New("[invo.New] credentials are required: use WithPassword or WithAPIKey")
	case hasPassword && (s.email == "" || s.password == ""):
		return nil, errors.New("[invo.New] both email and password are required for the password flow")
	}
	if s.workspaceID != "" && !hasKey {
		return nil, errors.New("[invo.New] WithWorkspace requires an api key session")
	}

	env := s.env
	switch {
	case s.envSet:
		if !env.valid() {
			return nil, errors.Errorf("[invo.New] unknown environment %q", env)
		}
	case hasKey:
		env = EnvironmentForKey(s.apiKey)
	default:
		env = Production
	}

	baseURL := env.BaseURL()
	if s.baseURL != "" {
		baseURL = s.baseURL
	}
	restOpts := []rest.Option{rest.WithLogger(s.logger)}
	if s.httpClient != nil {
		restOpts = append(restOpts, rest.WithHTTPClient(s.httpClient))
	}
	restClient, err := rest.New(baseURL, restOpts...)
	if err != nil {
		return nil, err
	}

	flow := session.FlowPassword
	if hasKey {
		flow = session.FlowAPIKey
	}
	skew := defaultRefreshSkew
	if s.skewSet {
		skew = s.skew
	}
	sessionOpts := []session.Option{
		session.WithAutoRefresh(s.autoRefresh),
		session.WithRefreshSkew(skew),
		session.WithHooks(s.hooks),
		session.WithLogger(s.logger),
	}
	if s.now != nil {
		sessionOpts = append(sessionOpts, session.WithNowFunc(s.now))
	}
	mgr, err := session.New(restClient, session.Config{
		Flow:        flow,
		Email:       s.email,
		Password:    s.password,
		APIKey:      s.apiKey,
		WorkspaceID: s.workspaceID,
	}, sessionOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{env: env, rest: restClient, session: mgr, logger: s.logger}, nil
}

// Environment returns the environment the client is bound to.
func (c *Client) Environment() Environment { return c.env }

// Session exposes the underlying session manager (token source,
// credential snapshots).
func (c *Client) Session() *session.Manager { return c.session }

// Login authenticates a password-flow client eagerly. API-key clients
// authenticate lazily on first call and do not need this.
func (c *Client) Login(ctx context.Context) error { return c.session.Login(ctx) }

// LoginWithKey exchanges the API key eagerly.
func (c *Client) LoginWithKey(ctx context.Context) error { return c.session.LoginWithKey(ctx) }

// Refresh renews the access token using the stored refresh token.
func (c *Client) Refresh(ctx context.Context) error { return c.session.Refresh(ctx) }

// Logout drops all credentials and cancels any scheduled refresh.
func (c *Client) Logout() { c.session.Logout() }

// IsAuthenticated reports whether a non-expired access token is held.
func (c *Client) IsAuthenticated() bool { return c.session.IsAuthenticated() }

// do gates on authentication, executes one call and routes executor
// errors through the observer. Gating errors were already routed by the
// session and are returned as-is.
func (c *Client) do(ctx context.Context, req rest.Request) (*rest.Response, error) {
	bearer, err := c.session.BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	req.BearerToken = bearer
	req.Workspace = c.session.Workspace()

	resp, err := c.rest.Do(ctx, req)
	if err != nil {
		c.session.NotifyError(err)
		return nil, err
	}
	return resp, nil
}

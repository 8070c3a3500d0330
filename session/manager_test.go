package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/invohq/invo-go/autherr"
	"github.com/invohq/invo-go/rest"
	"github.com/invohq/invo-go/session"
)

const (
	testSecret   = "test-secret"
	testUserID   = "user-1"
	testEmail    = "john.doe@example.com"
	testPassword = "password123"
	testAPIKey   = "invo_tok_live_abc123"
)

// fakeAPI is an httptest-backed stand-in for the auth endpoints. It
// issues real signed tokens so the expiry gating decodes them like
// production ones.
type fakeAPI struct {
	t *testing.T

	tokenTTL    time.Duration
	authDelay   time.Duration
	rejectLogin bool
	failRefresh bool

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	exchanges    atomic.Int64

	server *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t, tokenTTL: time.Hour}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", api.handleLogin)
	mux.HandleFunc("/auth/refresh", api.handleRefresh)
	mux.HandleFunc("/auth/token", api.handleExchange)
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (f *fakeAPI) restClient(t *testing.T) *rest.Client {
	t.Helper()
	client, err := rest.New(f.server.URL)
	require.NoError(t, err)
	return client
}

func (f *fakeAPI) accessToken() string {
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":   testUserID,
		"email": testEmail,
		"exp":   time.Now().Add(f.tokenTTL).Unix(),
		"iat":   time.Now().Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(f.t, err)
	return raw
}

func (f *fakeAPI) writeAuth(w http.ResponseWriter, refreshToken string) {
	time.Sleep(f.authDelay)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  f.accessToken(),
		"refresh_token": refreshToken,
		"expires_in":    int64(f.tokenTTL / time.Second),
		"user":          map[string]string{"id": testUserID, "email": testEmail},
	})
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.loginCalls.Add(1)
	if f.rejectLogin {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
		return
	}
	f.writeAuth(w, "refresh-1")
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	if f.failRefresh {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"refresh backend unavailable"}`))
		return
	}
	f.writeAuth(w, "refresh-2")
}

func (f *fakeAPI) handleExchange(w http.ResponseWriter, r *http.Request) {
	f.exchanges.Add(1)
	f.writeAuth(w, "")
}

func passwordManager(t *testing.T, api *fakeAPI, options ...session.Option) *session.Manager {
	t.Helper()
	m, err := session.New(api.restClient(t), session.Config{
		Flow:     session.FlowPassword,
		Email:    testEmail,
		Password: testPassword,
	}, options...)
	require.NoError(t, err)
	return m
}

func keyManager(t *testing.T, api *fakeAPI, options ...session.Option) *session.Manager {
	t.Helper()
	m, err := session.New(api.restClient(t), session.Config{
		Flow:   session.FlowAPIKey,
		APIKey: testAPIKey,
	}, options...)
	require.NoError(t, err)
	return m
}

func TestLoginStoresCredentials(t *testing.T) {
	api := newFakeAPI(t)
	m := passwordManager(t, api)

	require.False(t, m.IsAuthenticated())
	require.NoError(t, m.Login(context.Background()))

	creds := m.Credentials()
	require.NotEmpty(t, creds.AccessToken)
	require.Equal(t, "refresh-1", creds.RefreshToken)
	require.NotNil(t, creds.Identity)
	require.Equal(t, testUserID, creds.Identity.ID)
	require.Equal(t, testEmail, creds.Identity.Email)
	require.True(t, m.IsAuthenticated())
}

func TestLoginRejectedSurfacesInvalidCredentials(t *testing.T) {
	api := newFakeAPI(t)
	api.rejectLogin = true

	var observed []error
	m := passwordManager(t, api, session.WithHooks(session.Hooks{
		OnError: func(err error) { observed = append(observed, err) },
	}))

	err := m.Login(context.Background())
	require.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	require.False(t, m.IsAuthenticated())
	require.Len(t, observed, 1)
	require.ErrorIs(t, observed[0], autherr.ErrInvalidCredentials)
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	api := newFakeAPI(t)
	m := passwordManager(t, api)

	err := m.Refresh(context.Background())
	require.ErrorIs(t, err, autherr.ErrTokenExpired)
	require.Zero(t, api.refreshCalls.Load())
}

func TestRefreshReplacesCredentialsAndNotifies(t *testing.T) {
	api := newFakeAPI(t)

	var refreshed []session.Credentials
	m := passwordManager(t, api, session.WithHooks(session.Hooks{
		OnTokenRefreshed: func(c session.Credentials) { refreshed = append(refreshed, c) },
	}))

	require.NoError(t, m.Login(context.Background()))
	require.NoError(t, m.Refresh(context.Background()))

	creds := m.Credentials()
	require.Equal(t, "refresh-2", creds.RefreshToken)
	require.Len(t, refreshed, 1)
	require.Equal(t, creds.AccessToken, refreshed[0].AccessToken)
}

func TestRefreshFailureKeepsCredentials(t *testing.T) {
	api := newFakeAPI(t)
	m := passwordManager(t, api)

	require.NoError(t, m.Login(context.Background()))
	before := m.Credentials()

	api.failRefresh = true
	err := m.Refresh(context.Background())
	require.ErrorIs(t, err, autherr.ErrAuth)
	require.Equal(t, before, m.Credentials())
}

func TestEnsureAuthenticatedCollapsesConcurrentLogins(t *testing.T) {
	api := newFakeAPI(t)
	api.authDelay = 100 * time.Millisecond
	m := keyManager(t, api)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- m.EnsureAuthenticated(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), api.exchanges.Load())
	require.True(t, m.IsAuthenticated())
}

func TestEnsureAuthenticatedReusesValidToken(t *testing.T) {
	api := newFakeAPI(t)
	m := keyManager(t, api)

	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.Equal(t, int64(1), api.exchanges.Load())
}

func TestEnsureAuthenticatedReExchangesExpiredToken(t *testing.T) {
	api := newFakeAPI(t)
	api.tokenTTL = -time.Minute // already expired when issued
	m := keyManager(t, api)

	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.False(t, m.IsAuthenticated())
	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.Equal(t, int64(2), api.exchanges.Load())
}

func TestBearerTokenRefreshesExpiredPasswordToken(t *testing.T) {
	api := newFakeAPI(t)
	api.tokenTTL = -time.Minute
	m := passwordManager(t, api)

	require.NoError(t, m.Login(context.Background()))
	api.tokenTTL = time.Hour

	bearer, err := m.BearerToken(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, bearer)
	require.Equal(t, int64(1), api.refreshCalls.Load())
	require.Equal(t, bearer, m.Credentials().AccessToken)
}

func TestLogoutClearsSession(t *testing.T) {
	api := newFakeAPI(t)

	var logouts int
	m := passwordManager(t, api, session.WithHooks(session.Hooks{
		OnLogout: func() { logouts++ },
	}))

	require.NoError(t, m.Login(context.Background()))
	require.True(t, m.IsAuthenticated())

	m.Logout()
	require.False(t, m.IsAuthenticated())
	require.True(t, m.Credentials().Empty())

	// Logging out again is a no-op beyond the observer call.
	m.Logout()
	require.Equal(t, 2, logouts)

	// With credentials gone there is nothing to refresh with.
	_, err := m.BearerToken(context.Background())
	require.ErrorIs(t, err, autherr.ErrTokenExpired)
}

func TestAutoRefreshTimerFires(t *testing.T) {
	api := newFakeAPI(t)
	api.tokenTTL = time.Second
	m := passwordManager(t, api,
		session.WithAutoRefresh(true),
		session.WithRefreshSkew(0),
	)

	require.NoError(t, m.Login(context.Background()))
	require.Eventually(t, func() bool {
		return api.refreshCalls.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)

	m.Logout()
}

func TestAutoRefreshFailureIsNonFatal(t *testing.T) {
	api := newFakeAPI(t)
	api.tokenTTL = time.Second
	api.failRefresh = true

	var mu sync.Mutex
	var observed []error
	m := passwordManager(t, api,
		session.WithAutoRefresh(true),
		session.WithRefreshSkew(0),
		session.WithHooks(session.Hooks{
			OnError: func(err error) {
				mu.Lock()
				defer mu.Unlock()
				observed = append(observed, err)
			},
		}),
	)

	require.NoError(t, m.Login(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(observed) >= 1
	}, 3*time.Second, 50*time.Millisecond)

	mu.Lock()
	require.ErrorIs(t, observed[0], autherr.ErrAuth)
	mu.Unlock()
	m.Logout()
}

func TestNewValidatesCredentialSource(t *testing.T) {
	api := newFakeAPI(t)
	client := api.restClient(t)

	cases := []struct {
		name string
		cfg  session.Config
	}{
		{"password flow without password", session.Config{Flow: session.FlowPassword, Email: testEmail}},
		{"key flow without key", session.Config{Flow: session.FlowAPIKey}},
		{"mixed credential sources", session.Config{Flow: session.FlowAPIKey, APIKey: testAPIKey, Email: testEmail}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := session.New(client, tc.cfg)
			require.Error(t, err)
			require.False(t, autherr.IsClassified(err))
		})
	}
}

func TestWrongFlowOperationsFailSynchronously(t *testing.T) {
	api := newFakeAPI(t)

	require.Error(t, keyManager(t, api).Login(context.Background()))
	require.Error(t, passwordManager(t, api).LoginWithKey(context.Background()))
	require.Zero(t, api.loginCalls.Load())
	require.Zero(t, api.exchanges.Load())
}

func TestTokenSource(t *testing.T) {
	api := newFakeAPI(t)
	m := keyManager(t, api)

	source := m.TokenSource(context.Background())
	tok, err := source.Token()
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, m.Credentials().AccessToken, tok.AccessToken)
	require.False(t, tok.Expiry.IsZero())
	require.Equal(t, int64(1), api.exchanges.Load())
}

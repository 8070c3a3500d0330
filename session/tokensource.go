package session

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/invohq/invo-go/token"
)

// managerSource adapts a Manager to oauth2.TokenSource so the session
// can feed oauth2-aware transports (oauth2.NewClient and friends).
type managerSource struct {
	ctx context.Context
	m   *Manager
}

// TokenSource returns an oauth2.TokenSource backed by this session. The
// returned source re-authenticates or refreshes through the same
// single-flight guard as direct SDK calls.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerSource{ctx: ctx, m: m}
}

func (s *managerSource) Token() (*oauth2.Token, error) {
	bearer, err := s.m.BearerToken(s.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}
	if claims, err := token.Decode(bearer); err == nil {
		tok.Expiry = time.Unix(claims.ExpiresAt, 0)
	}
	return tok, nil
}

// Package credentials provides OAuth2 tokens for Google APIs backed by a
// pluggable token store.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/spigell/hr-screener/internal/logger"
)

var (
	ErrNoToken        = errors.New("no stored oauth token")
	ErrNoRefreshToken = errors.New("stored oauth token has no refresh token")
)

// TokenStore persists a single OAuth2 token.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
}

type Provider struct {
	config *oauth2.Config
	store  TokenStore
	logger *zap.Logger
}

// NewProvider builds a provider from a Google OAuth client JSON (the
// "installed" or "web" credentials downloaded from the cloud console).
func NewProvider(clientJSON []byte, store TokenStore, l *zap.Logger, scopes ...string) (*Provider, error) {
	config, err := google.ConfigFromJSON(clientJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client credentials: %w", err)
	}

	return NewProviderFromConfig(config, store, l), nil
}

func NewProviderFromConfig(config *oauth2.Config, store TokenStore, l *zap.Logger) *Provider {
	return &Provider{
		config: config,
		store:  store,
		logger: logger.OrNop(l),
	}
}

// AuthCodeURL returns the consent page URL. Offline access is requested so a
// refresh token is issued.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := p.store.Save(token); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	p.logger.Info("oauth token stored", zap.Time("expiry", token.Expiry))
	return token, nil
}

// TokenSource returns a source that refreshes expired tokens and writes every
// new token back to the store.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	return &persistingSource{
		base:   p.config.TokenSource(ctx, token),
		store:  p.store,
		last:   token,
		logger: p.logger,
	}, nil
}

// Refresh forces a refresh regardless of the stored expiry.
func (p *Provider) Refresh(ctx context.Context) (*oauth2.Token, error) {
	token, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	expired := *token
	expired.AccessToken = ""
	expired.Expiry = time.Now().Add(-time.Minute)

	fresh, err := p.config.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if err := p.store.Save(fresh); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	p.logger.Debug("oauth token refreshed", zap.Time("expiry", fresh.Expiry))
	return fresh, nil
}

type persistingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	store  TokenStore
	last   *oauth2.Token
	logger *zap.Logger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	if s.last == nil || token.AccessToken != s.last.AccessToken {
		if err := s.store.Save(token); err != nil {
			// the fresh token is still usable for this process
			s.logger.Warn("saving refreshed oauth token failed", zap.Error(err))
		} else {
			s.logger.Debug("refreshed oauth token stored", zap.Time("expiry", token.Expiry))
		}
		s.last = token
	}

	return token, nil
}

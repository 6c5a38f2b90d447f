package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/secondme"
	"github.com/iliyamo/haggle-room/internal/utils"
)

const stateTTL = 10 * time.Minute

// ErrLoginFailed covers any failure of the OAuth callback.  A bad or
// expired state additionally matches ErrBadOAuthState.
var (
	ErrLoginFailed   = errors.New("login failed")
	ErrBadOAuthState = errors.New("invalid oauth state")
)

// AuthConfig configures AuthService.
type AuthConfig struct {
	JWTSecret   string
	SessionTTL  time.Duration
	RedirectURI string // absolute URL of the callback route
	Scope       string // defaults to secondme.DefaultScope
}

// LoginResult is what a successful callback yields.
type LoginResult struct {
	User    *model.User
	Session utils.SessionToken
	Next    string
}

// AuthService implements the OAuth login round trip and session
// issuance.
type AuthService struct {
	cfg      AuthConfig
	provider OAuthProvider
	users    UserStore
}

func NewAuthService(cfg AuthConfig, provider OAuthProvider, users UserStore) *AuthService {
	if cfg.Scope == "" {
		cfg.Scope = secondme.DefaultScope
	}
	return &AuthService{cfg: cfg, provider: provider, users: users}
}

// LoginURL returns the provider URL to send the browser to.  next is
// remembered in the signed state and restored after the callback.
func (s *AuthService) LoginURL(next string) (string, error) {
	state, err := utils.NewStateToken(s.cfg.JWTSecret, next, stateTTL)
	if err != nil {
		return "", err
	}
	return s.provider.AuthorizeURL(state, s.cfg.RedirectURI, s.cfg.Scope), nil
}

// Callback verifies state, exchanges code, refreshes the user's profile
// and issues a session token.
func (s *AuthService) Callback(ctx context.Context, code, state string) (*LoginResult, error) {
	next, err := utils.VerifyStateToken(s.cfg.JWTSecret, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, ErrBadOAuthState)
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing code", ErrLoginFailed)
	}
	tok, err := s.provider.ExchangeCode(ctx, code, s.cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", ErrLoginFailed, err)
	}
	info, err := s.provider.UserInfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: user info: %w", ErrLoginFailed, err)
	}

	u := &model.User{
		ProviderID:     info.ID,
		Name:           info.Name,
		Avatar:         optional(info.Avatar),
		Bio:            optional(info.Bio),
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.ExpiresAt(time.Now()),
	}
	if err := s.users.UpsertByProvider(ctx, u); err != nil {
		return nil, fmt.Errorf("%w: save user: %w", ErrLoginFailed, err)
	}
	sess, err := utils.NewSessionToken(s.cfg.JWTSecret, u.ID, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Session: sess, Next: next}, nil
}

// Me returns the public profile of the logged-in user.
func (s *AuthService) Me(ctx context.Context, userID string) (*Participant, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Participant{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Bio: u.Bio}, nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

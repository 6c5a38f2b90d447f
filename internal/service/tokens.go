package service

import (
	"context"
	"fmt"
	"time"
)

// refreshWindow is how close to expiry a token may get before it is
// refreshed ahead of use.
const refreshWindow = 60 * time.Second

// TokenService keeps a user's platform access token usable.
type TokenService struct {
	users     UserStore
	refresher TokenRefresher
	now       func() time.Time
}

func NewTokenService(users UserStore, refresher TokenRefresher) *TokenService {
	return &TokenService{users: users, refresher: refresher, now: time.Now}
}

// AccessToken returns the stored token, refreshing and persisting a new
// token set first when a refresh token exists and the stored one
// expires within a minute.  A token with no known expiry is used as is.
func (s *TokenService) AccessToken(ctx context.Context, userID string) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	now := s.now()
	if u.RefreshToken == "" || u.TokenExpiresAt == nil || u.TokenExpiresAt.Sub(now) > refreshWindow {
		return u.AccessToken, nil
	}

	tok, err := s.refresher.RefreshToken(ctx, u.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = u.RefreshToken
	}
	if err := s.users.UpdateTokens(ctx, u.ID, tok.AccessToken, refresh, tok.ExpiresAt(now)); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	return tok.AccessToken, nil
}

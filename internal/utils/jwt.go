package utils // package utils provides helper functions for signed tokens and secret sealing

import (
	"errors"  // sentinel errors for token verification
	"strings" // path sanitising
	"time"    // expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
	"github.com/google/uuid"       // random nonce for OAuth state
)

// ErrInvalidToken is returned when a session or state token fails
// signature, expiry or shape checks.
var ErrInvalidToken = errors.New("invalid token")

// SessionToken is a signed HS256 JWT identifying a logged-in user along
// with its expiry.  It is stored in the session cookie.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT whose subject is the
// user id.  The JWT includes sub, exp and iat claims.
func NewSessionToken(secret, userID string, ttl time.Duration) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw and returns the user id it carries.
func ParseSessionToken(secret, raw string) (string, error) {
	claims, err := parseHS256(secret, raw)
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// NewStateToken signs the OAuth state parameter.  It carries a random
// nonce and the sanitised path to return to after login, and expires
// after ttl.
func NewStateToken(secret, next string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"nonce": uuid.NewString(),
		"next":  SanitizeNextPath(next),
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyStateToken checks a state token and returns the path to redirect
// to.  On failure the path is "/".
func VerifyStateToken(secret, raw string) (string, error) {
	claims, err := parseHS256(secret, raw)
	if err != nil {
		return "/", err
	}
	if nonce, _ := claims["nonce"].(string); nonce == "" {
		return "/", ErrInvalidToken
	}
	next, _ := claims["next"].(string)
	return SanitizeNextPath(next), nil
}

// SanitizeNextPath only allows local absolute paths; anything else,
// including protocol-relative "//host" forms, becomes "/".
func SanitizeNextPath(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func parseHS256(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// reject anything that is not HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

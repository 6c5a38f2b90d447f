package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Users are created on first OAuth login and refreshed on every
// subsequent one.  AccessToken and RefreshToken hold plaintext values in
// memory; the repository seals them before writing.
//
// Fields:
//  ID             – ULID primary key.
//  ProviderID     – SecondMe user id, unique.
//  Name           – display name used in proxy prompts.
//  Avatar         – optional avatar URL.
//  Bio            – optional profile text.
//  AccessToken    – upstream OAuth access token.
//  RefreshToken   – upstream OAuth refresh token (may be empty).
//  TokenExpiresAt – access token expiry (nil when unknown).
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
type User struct {
	ID             string     // users.id
	ProviderID     string     // users.provider_id
	Name           string     // users.name
	Avatar         *string    // users.avatar (nullable)
	Bio            *string    // users.bio (nullable)
	AccessToken    string     // users.access_token (sealed at rest)
	RefreshToken   string     // users.refresh_token (sealed at rest)
	TokenExpiresAt *time.Time // users.token_expires_at (nullable)
	CreatedAt      time.Time  // users.created_at
	UpdatedAt      time.Time  // users.updated_at
}

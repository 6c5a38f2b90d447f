package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/utils"
)

// UserRepo mirrors the 'users' table.  OAuth tokens are sealed on the
// way in and opened on the way out, so callers only see plaintext.
type UserRepo struct {
	DB     *sql.DB
	sealer *utils.Sealer
}

func NewUserRepo(db *sql.DB, sealer *utils.Sealer) *UserRepo {
	return &UserRepo{DB: db, sealer: sealer}
}

// UpsertByProvider creates the user on first login or refreshes profile
// and tokens on later ones.  An empty refresh token keeps the stored one.
// u.ID is filled from the stored row.
func (r *UserRepo) UpsertByProvider(ctx context.Context, u *model.User) error {
	u.ProviderID = strings.TrimSpace(u.ProviderID)
	if u.ProviderID == "" {
		return errors.New("provider id is required")
	}
	access, refresh, err := r.sealPair(u.AccessToken, u.RefreshToken)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	const q = `INSERT INTO users (id, provider_id, name, avatar, bio, access_token, refresh_token, token_expires_at, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE name = VALUES(name), avatar = VALUES(avatar), bio = VALUES(bio),
	             access_token = VALUES(access_token), refresh_token = IF(VALUES(refresh_token) = '', refresh_token, VALUES(refresh_token)),
	             token_expires_at = VALUES(token_expires_at), updated_at = VALUES(updated_at)`
	if _, err := r.DB.ExecContext(ctx, q, newID(), u.ProviderID, u.Name, u.Avatar, u.Bio,
		access, refresh, u.TokenExpiresAt, now, now); err != nil {
		return err
	}
	return r.DB.QueryRowContext(ctx, "SELECT id, created_at FROM users WHERE provider_id=? LIMIT 1", u.ProviderID).
		Scan(&u.ID, &u.CreatedAt)
}

// GetByID fetches a user by id with tokens opened.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var (
		u               model.User
		avatar, bio     sql.NullString
		access, refresh sql.NullString
		expires         sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,provider_id,name,avatar,bio,access_token,refresh_token,token_expires_at,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.ProviderID, &u.Name, &avatar, &bio, &access, &refresh, &expires, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Avatar = nullString(avatar)
	u.Bio = nullString(bio)
	if expires.Valid {
		t := expires.Time.UTC()
		u.TokenExpiresAt = &t
	}
	if u.AccessToken, err = r.sealer.Open(access.String); err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	if u.RefreshToken, err = r.sealer.Open(refresh.String); err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	return &u, nil
}

// UpdateTokens stores a renewed token set.
func (r *UserRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	access, refresh, err := r.sealPair(accessToken, refreshToken)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET access_token=?, refresh_token=?, token_expires_at=?, updated_at=? WHERE id=?",
		access, refresh, expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) sealPair(access, refresh string) (string, string, error) {
	sa, err := r.sealer.Seal(access)
	if err != nil {
		return "", "", fmt.Errorf("seal access token: %w", err)
	}
	sr, err := r.sealer.Seal(refresh)
	if err != nil {
		return "", "", fmt.Errorf("seal refresh token: %w", err)
	}
	return sa, sr, nil
}

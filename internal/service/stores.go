// Package service holds the negotiation use cases: room lifecycle, the
// single-flight turn scheduler, token upkeep and OAuth login.  It talks
// to storage and to the SecondMe platform only through the interfaces
// below, so every use case can be exercised with in-memory fakes.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/queue"
	"github.com/iliyamo/haggle-room/internal/secondme"
)

// RoomStore persists rooms.  Join, Start and FinishTurn return
// repository.ErrConflict when the row no longer matches the expected
// state.
type RoomStore interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	Join(ctx context.Context, id, guestID string, maxPrice float64) error
	Start(ctx context.Context, id, hostID string) error
	TryAcquireTurn(ctx context.Context, id string) (bool, error)
	ReleaseTurn(ctx context.Context, id string) error
	FinishTurn(ctx context.Context, id string, u model.TurnUpdate) error
}

// MessageStore persists the append-only transcript.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	ListByRoom(ctx context.Context, roomID string) ([]model.Message, error)
}

// UserStore persists users and their OAuth tokens.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpsertByProvider(ctx context.Context, u *model.User) error
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
}

// TokenProvider hands out a usable access token for a user.
type TokenProvider interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// ChatCompleter runs one chat turn and returns the full reply text.
type ChatCompleter interface {
	Complete(ctx context.Context, r secondme.ChatRequest) (string, error)
}

// TokenRefresher exchanges a refresh token for a new token set.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (secondme.Token, error)
}

// OAuthProvider is the login side of the platform.
type OAuthProvider interface {
	AuthorizeURL(state, redirectURI, scope string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (secondme.Token, error)
	UserInfo(ctx context.Context, accessToken string) (secondme.UserInfo, error)
}

// EventPublisher announces finished negotiations.
type EventPublisher interface {
	PublishNegotiationFinished(ctx context.Context, ev queue.NegotiationFinishedEvent) error
}

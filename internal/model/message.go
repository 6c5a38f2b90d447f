package model

import "time"

// Role identifies which proxy produced a message.
type Role string

const (
	RoleSeller Role = "SELLER"
	RoleBuyer  Role = "BUYER"
)

// Label is the lower-case role name used in prompts, session ids and
// highlights.
func (r Role) Label() string {
	if r == RoleSeller {
		return "seller"
	}
	return "buyer"
}

// Counterparty returns the other side of the negotiation.
func (r Role) Counterparty() Role {
	if r == RoleSeller {
		return RoleBuyer
	}
	return RoleSeller
}

// Message is one turn of a negotiation, stored in the `messages` table.
// Messages are written once by the turn scheduler and never updated.
//
// Fields:
//  ID         – ULID primary key.
//  RoomID     – owning room.
//  Sender     – SELLER on odd rounds, BUYER on even rounds.
//  Round      – 1-based, unique per room.
//  Content    – the proxy's statement.
//  PriceOffer – the clamped numeric offer (nullable).
//  CreatedAt  – insertion time.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	Sender     Role      `json:"sender"`
	Round      int       `json:"round"`
	Content    string    `json:"content"`
	PriceOffer *float64  `json:"price_offer"`
	CreatedAt  time.Time `json:"created_at"`
}

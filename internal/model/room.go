package model

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a negotiation room.
type Status string

const (
	StatusNone      Status = ""          // room does not exist yet
	StatusWaiting   Status = "WAITING"   // created by the host, no buyer yet
	StatusReady     Status = "READY"     // buyer joined, waiting for the host to start
	StatusActive    Status = "ACTIVE"    // proxies are negotiating
	StatusCompleted Status = "COMPLETED" // a deal closed, final price is set
	StatusFailed    Status = "FAILED"    // round limit reached without a deal
)

// Event names an action that moves a room between statuses.
type Event string

const (
	EventCreate     Event = "create"
	EventJoin       Event = "join"
	EventStart      Event = "start"
	EventDeal       Event = "deal"
	EventRoundLimit Event = "round_limit"
	EventContinue   Event = "continue"
)

// ErrIllegalTransition is returned by Status.Next for any (status, event)
// pair missing from the transition table.
var ErrIllegalTransition = errors.New("illegal room transition")

// transitions is the complete room state machine.  COMPLETED and FAILED
// have no outgoing edges.
var transitions = map[Status]map[Event]Status{
	StatusNone:    {EventCreate: StatusWaiting},
	StatusWaiting: {EventJoin: StatusReady},
	StatusReady:   {EventJoin: StatusReady, EventStart: StatusActive},
	StatusActive: {
		EventDeal:       StatusCompleted,
		EventRoundLimit: StatusFailed,
		EventContinue:   StatusActive,
	},
}

// Next returns the status reached by applying e to s.
func (s Status) Next(e Event) (Status, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s from %q", ErrIllegalTransition, e, s)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the persisted statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusReady, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Room represents a row in the `rooms` table: one negotiation between
// the host (seller) and the guest (buyer).
//
// Fields:
//  ID              – ULID primary key.
//  HostID          – seller, set at creation.
//  GuestID         – buyer, set on join (nullable).
//  ItemName        – what is being sold.
//  Description     – optional item detail shown to both proxies.
//  ListPrice       – public asking price, > 0.
//  MinPrice        – seller's secret floor, 0 < MinPrice <= ListPrice.
//  MaxPrice        – buyer's secret ceiling, set on join (nullable).
//  FinalPrice      – agreed price, non-null only when COMPLETED.
//  Status          – lifecycle status.
//  IsProcessing    – single-flight turn lock.
//  SellerSessionID – chat session handle for the seller proxy (nullable).
//  BuyerSessionID  – chat session handle for the buyer proxy (nullable).
type Room struct {
	ID              string    // rooms.id
	HostID          string    // rooms.host_id
	GuestID         *string   // rooms.guest_id (nullable)
	ItemName        string    // rooms.item_name
	Description     *string   // rooms.description (nullable)
	ListPrice       float64   // rooms.list_price
	MinPrice        float64   // rooms.min_price
	MaxPrice        *float64  // rooms.max_price (nullable)
	FinalPrice      *float64  // rooms.final_price (nullable)
	Status          Status    // rooms.status
	IsProcessing    bool      // rooms.is_processing
	SellerSessionID *string   // rooms.seller_session_id (nullable)
	BuyerSessionID  *string   // rooms.buyer_session_id (nullable)
	CreatedAt       time.Time // rooms.created_at
	UpdatedAt       time.Time // rooms.updated_at
}

// HasGuest reports whether a buyer has joined.
func (r *Room) HasGuest() bool { return r.GuestID != nil && *r.GuestID != "" }

// IsGuest reports whether userID is the room's buyer.
func (r *Room) IsGuest(userID string) bool { return r.HasGuest() && *r.GuestID == userID }

// TurnUpdate carries everything written when a turn finishes.  The store
// applies it in a single UPDATE together with clearing IsProcessing.
type TurnUpdate struct {
	Status          Status
	FinalPrice      *float64
	SellerSessionID string
	BuyerSessionID  string
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/negotiation"
	"github.com/iliyamo/haggle-room/internal/repository"
)

// Viewer roles reported by RoomService.View.
const (
	ViewerSeller    = "SELLER"
	ViewerBuyer     = "BUYER"
	ViewerSpectator = "SPECTATOR"
)

// CreateRoomInput is what a host supplies to open a room.
type CreateRoomInput struct {
	ItemName    string
	Description string
	ListPrice   float64
	MinPrice    float64
}

// Participant is the public profile of a host or guest.
type Participant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
	Bio    *string `json:"bio"`
}

// PublicRoom is the part of a room anyone may see.  Neither secret
// bound is included.
type PublicRoom struct {
	ID          string          `json:"id"`
	HostID      string          `json:"host_id"`
	GuestID     *string         `json:"guest_id"`
	ItemName    string          `json:"item_name"`
	Description *string         `json:"description"`
	ListPrice   float64         `json:"list_price"`
	FinalPrice  *float64        `json:"final_price"`
	Status      model.Status    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Host        *Participant    `json:"host"`
	Guest       *Participant    `json:"guest"`
	Messages    []model.Message `json:"messages"`
}

// RoomView is a room as seen by one viewer.  MinPrice is only set for
// the seller and MaxPrice only for the buyer.
type RoomView struct {
	PublicRoom
	ViewerRole    string   `json:"viewer_role"`
	CanJoin       bool     `json:"can_join"`
	CanStart      bool     `json:"can_start"`
	IsParticipant bool     `json:"is_participant"`
	MinPrice      *float64 `json:"min_price,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
}

// ResultView is the post-negotiation summary.  It does not depend on
// the viewer.
type ResultView struct {
	Room       PublicRoom `json:"room"`
	Highlights []string   `json:"highlights"`
	CutPercent *float64   `json:"cut_percent"`
}

// RoomService implements room creation, joining, starting and the read
// views.
type RoomService struct {
	rooms    RoomStore
	messages MessageStore
	users    UserStore
}

func NewRoomService(rooms RoomStore, messages MessageStore, users UserStore) *RoomService {
	return &RoomService{rooms: rooms, messages: messages, users: users}
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Create opens a WAITING room owned by hostID.
func (s *RoomService) Create(ctx context.Context, hostID string, in CreateRoomInput) (*model.Room, error) {
	if hostID == "" {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(in.ItemName)
	if name == "" {
		return nil, fmt.Errorf("%w: item_name is required", ErrInvalidInput)
	}
	if !positive(in.ListPrice) || !positive(in.MinPrice) {
		return nil, fmt.Errorf("%w: list_price and min_price must be positive numbers", ErrInvalidInput)
	}
	if in.MinPrice > in.ListPrice {
		return nil, fmt.Errorf("%w: min_price cannot exceed list_price", ErrInvalidInput)
	}
	status, err := model.StatusNone.Next(model.EventCreate)
	if err != nil {
		return nil, err
	}
	room := &model.Room{
		HostID:    hostID,
		ItemName:  name,
		ListPrice: in.ListPrice,
		MinPrice:  in.MinPrice,
		Status:    status,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		room.Description = &desc
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Join records guestID as the buyer with a hidden budget.  The same
// guest may join again while the room is READY to change the budget.
func (s *RoomService) Join(ctx context.Context, roomID, guestID string, maxPrice float64) (*model.Room, error) {
	if guestID == "" {
		return nil, ErrForbidden
	}
	if !positive(maxPrice) {
		return nil, fmt.Errorf("%w: max_price must be a positive number", ErrInvalidInput)
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID == guestID {
		return nil, fmt.Errorf("%w: host cannot join as buyer", ErrInvalidState)
	}
	switch {
	case room.Status == model.StatusWaiting:
	case room.Status == model.StatusReady && room.IsGuest(guestID):
	default:
		return nil, fmt.Errorf("%w: room is not joinable in status %s", ErrInvalidState, room.Status)
	}
	if _, err := room.Status.Next(model.EventJoin); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := s.rooms.Join(ctx, roomID, guestID, maxPrice); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: room changed while joining", ErrInvalidState)
		}
		return nil, err
	}
	return s.rooms.GetByID(ctx, roomID)
}

// Start lets the host move a READY room to ACTIVE.
func (s *RoomService) Start(ctx context.Context, roomID, hostID string) (*model.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if hostID == "" || room.HostID != hostID {
		return nil, fmt.Errorf("%w: only the seller can start the negotiation", ErrForbidden)
	}
	if !room.HasGuest() {
		return nil, fmt.Errorf("%w: buyer has not joined yet", ErrInvalidState)
	}
	if room.Status != model.StatusReady {
		return nil, fmt.Errorf("%w: room cannot start from status %s", ErrInvalidState, room.Status)
	}
	if _, err := room.Status.Next(model.EventStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := s.rooms.Start(ctx, roomID, hostID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: room changed while starting", ErrInvalidState)
		}
		return nil, err
	}
	return s.rooms.GetByID(ctx, roomID)
}

// View returns the room as seen by viewerID, which may be empty for an
// anonymous spectator.
func (s *RoomService) View(ctx context.Context, roomID, viewerID string) (*RoomView, error) {
	room, pub, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	v := &RoomView{PublicRoom: pub, ViewerRole: ViewerSpectator}
	switch {
	case viewerID != "" && viewerID == room.HostID:
		v.ViewerRole = ViewerSeller
		floor := room.MinPrice
		v.MinPrice = &floor
	case viewerID != "" && room.IsGuest(viewerID):
		v.ViewerRole = ViewerBuyer
		v.MaxPrice = room.MaxPrice
	}
	v.IsParticipant = v.ViewerRole != ViewerSpectator
	v.CanJoin = viewerID != "" && viewerID != room.HostID && room.Status == model.StatusWaiting
	v.CanStart = viewerID != "" && viewerID == room.HostID && room.Status == model.StatusReady
	return v, nil
}

// Result returns the transcript summary of a room.  Highlights and the
// cut are only meaningful once the room is terminal, but are computed
// for any status.
func (s *RoomService) Result(ctx context.Context, roomID string) (*ResultView, error) {
	room, pub, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	res := &ResultView{
		Room:       pub,
		Highlights: negotiation.Highlights(pub.Messages, room.ListPrice, room.FinalPrice, room.Status),
	}
	if room.FinalPrice != nil && *room.FinalPrice > 0 {
		cut := negotiation.CutPercent(room.ListPrice, *room.FinalPrice)
		res.CutPercent = &cut
	}
	return res, nil
}

func (s *RoomService) load(ctx context.Context, roomID string) (*model.Room, PublicRoom, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, PublicRoom{}, err
	}
	msgs, err := s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, PublicRoom{}, err
	}
	pub := PublicRoom{
		ID:          room.ID,
		HostID:      room.HostID,
		GuestID:     room.GuestID,
		ItemName:    room.ItemName,
		Description: room.Description,
		ListPrice:   room.ListPrice,
		FinalPrice:  room.FinalPrice,
		Status:      room.Status,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
		Messages:    msgs,
	}
	if pub.Host, err = s.participant(ctx, room.HostID); err != nil {
		return nil, PublicRoom{}, err
	}
	if room.HasGuest() {
		if pub.Guest, err = s.participant(ctx, *room.GuestID); err != nil {
			return nil, PublicRoom{}, err
		}
	}
	return room, pub, nil
}

func (s *RoomService) participant(ctx context.Context, id string) (*Participant, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Participant{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Bio: u.Bio}, nil
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/negotiation"
	"github.com/iliyamo/haggle-room/internal/queue"
	"github.com/iliyamo/haggle-room/internal/secondme"
)

// DefaultChatTimeout bounds token refresh plus one chat completion.
const DefaultChatTimeout = 60 * time.Second

const noPreviousStatement = "No previous message"

// TurnResult reports what one Advance call did.  Advanced is false when
// another caller held the lock or the room was not ACTIVE; Status, Round
// and FinalPrice then describe the room as it currently is.
type TurnResult struct {
	Status     model.Status   `json:"room_status"`
	Round      int            `json:"round"`
	Message    *model.Message `json:"message,omitempty"`
	FinalPrice *float64       `json:"final_price"`
	Advanced   bool           `json:"advanced"`
}

// TurnScheduler plays one proxy utterance per call.  The lock lives in
// the room row, so any number of server processes may call Advance for
// the same room and at most one of them produces a message.
type TurnScheduler struct {
	rooms       RoomStore
	messages    MessageStore
	users       UserStore
	tokens      TokenProvider
	chat        ChatCompleter
	events      EventPublisher
	chatTimeout time.Duration
}

// TurnOption customises a TurnScheduler.
type TurnOption func(*TurnScheduler)

// WithEvents publishes a finished event whenever a room turns terminal.
func WithEvents(p EventPublisher) TurnOption {
	return func(s *TurnScheduler) { s.events = p }
}

// WithChatTimeout overrides DefaultChatTimeout.
func WithChatTimeout(d time.Duration) TurnOption {
	return func(s *TurnScheduler) {
		if d > 0 {
			s.chatTimeout = d
		}
	}
}

func NewTurnScheduler(rooms RoomStore, messages MessageStore, users UserStore, tokens TokenProvider, chat ChatCompleter, opts ...TurnOption) *TurnScheduler {
	s := &TurnScheduler{
		rooms:       rooms,
		messages:    messages,
		users:       users,
		tokens:      tokens,
		chat:        chat,
		chatTimeout: DefaultChatTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Advance plays the next round of roomID if the room is ACTIVE and
// nobody else is playing it.  Every failure after the lock is taken
// releases it before returning.
func (s *TurnScheduler) Advance(ctx context.Context, roomID string) (TurnResult, error) {
	acquired, err := s.rooms.TryAcquireTurn(ctx, roomID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("%w: acquire lock: %w", ErrTurnFailed, err)
	}
	if !acquired {
		room, err := s.rooms.GetByID(ctx, roomID)
		if err != nil {
			return TurnResult{}, err
		}
		history, err := s.messages.ListByRoom(ctx, roomID)
		if err != nil {
			return TurnResult{}, fmt.Errorf("%w: load messages: %w", ErrTurnFailed, err)
		}
		return TurnResult{Status: room.Status, Round: len(history), FinalPrice: room.FinalPrice}, nil
	}

	released := false
	defer func() {
		if released {
			return
		}
		// The request may already be cancelled; the lock must still go.
		if err := s.rooms.ReleaseTurn(context.WithoutCancel(ctx), roomID); err != nil {
			log.Printf("turn: release lock for room %s: %v", roomID, err)
		}
	}()

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("%w: load room: %w", ErrTurnFailed, err)
	}
	if !room.HasGuest() {
		return TurnResult{}, fmt.Errorf("%w: buyer has not joined", ErrInvalidState)
	}
	history, err := s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("%w: load messages: %w", ErrTurnFailed, err)
	}

	update := model.TurnUpdate{
		SellerSessionID: sessionID(room.SellerSessionID, roomID, model.RoleSeller),
		BuyerSessionID:  sessionID(room.BuyerSessionID, roomID, model.RoleBuyer),
	}

	// A previous turn may have saved its message and then lost the room
	// write.  Settle that outcome instead of playing past it.
	if outcome, ok := storedOutcome(history); ok {
		if update.Status, err = room.Status.Next(outcome.Event()); err != nil {
			return TurnResult{}, fmt.Errorf("%w: %w", ErrTurnFailed, err)
		}
		update.FinalPrice = outcome.FinalPrice
		if err := s.finish(ctx, roomID, update); err != nil {
			return TurnResult{}, err
		}
		released = true
		s.publish(ctx, room, update, len(history))
		return TurnResult{
			Status:     update.Status,
			Round:      history[len(history)-1].Round,
			FinalPrice: update.FinalPrice,
			Advanced:   true,
		}, nil
	}

	round := len(history) + 1
	if round > negotiation.MaxRounds {
		if update.Status, err = room.Status.Next(model.EventRoundLimit); err != nil {
			return TurnResult{}, fmt.Errorf("%w: %w", ErrTurnFailed, err)
		}
		if err := s.finish(ctx, roomID, update); err != nil {
			return TurnResult{}, err
		}
		released = true
		s.publish(ctx, room, update, len(history))
		return TurnResult{Status: update.Status, Round: negotiation.MaxRounds, Advanced: true}, nil
	}

	role := negotiation.RoleForRound(round)
	var last *model.Message
	if len(history) > 0 {
		last = &history[len(history)-1]
	}

	actorID := room.HostID
	if role == model.RoleBuyer {
		actorID = *room.GuestID
	}
	req := secondme.ChatRequest{
		SessionID:  update.SellerSessionID,
		UserPrompt: negotiation.TurnPrompt(turnContext(room, last, round)),
	}
	if role == model.RoleBuyer {
		req.SessionID = update.BuyerSessionID
	}
	if !negotiation.HasSpoken(history, role) {
		actor, err := s.users.GetByID(ctx, actorID)
		if err != nil {
			return TurnResult{}, fmt.Errorf("%w: load %s: %w", ErrTurnFailed, role.Label(), err)
		}
		req.SystemPrompt = systemPrompt(role, room, actor.Name)
	}

	raw, err := s.complete(ctx, actorID, req)
	if err != nil {
		return TurnResult{}, fmt.Errorf("%w: %s proxy: %w", ErrTurnFailed, role.Label(), err)
	}

	fallback := negotiation.FallbackPrice(role, room, last)
	reply := negotiation.ParseReply(raw, fallback)
	offer := negotiation.Clamp(role, reply.Price, room.MinPrice, room.MaxPrice, fallback)

	msg := &model.Message{
		RoomID:     roomID,
		Sender:     role,
		Round:      round,
		Content:    reply.Say,
		PriceOffer: &offer,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return TurnResult{}, fmt.Errorf("%w: save message: %w", ErrTurnFailed, err)
	}

	var previous *float64
	if last != nil {
		previous = last.PriceOffer
	}
	outcome := negotiation.Detect(role, offer, previous, round)
	if update.Status, err = room.Status.Next(outcome.Event()); err != nil {
		return TurnResult{}, fmt.Errorf("%w: %w", ErrTurnFailed, err)
	}
	update.FinalPrice = outcome.FinalPrice
	if err := s.finish(ctx, roomID, update); err != nil {
		return TurnResult{}, err
	}
	released = true

	if update.Status.Terminal() {
		s.publish(ctx, room, update, round)
	}
	return TurnResult{
		Status:     update.Status,
		Round:      round,
		Message:    msg,
		FinalPrice: update.FinalPrice,
		Advanced:   true,
	}, nil
}

// finish writes the turn result and frees the lock.  The message is
// already stored at this point, so the write must not depend on the
// caller staying connected.
func (s *TurnScheduler) finish(ctx context.Context, roomID string, u model.TurnUpdate) error {
	if err := s.rooms.FinishTurn(context.WithoutCancel(ctx), roomID, u); err != nil {
		return fmt.Errorf("%w: finish turn: %w", ErrTurnFailed, err)
	}
	return nil
}

// storedOutcome reports whether the newest stored message already ended
// the negotiation.
func storedOutcome(history []model.Message) (negotiation.Outcome, bool) {
	if len(history) == 0 {
		return negotiation.Outcome{}, false
	}
	last := history[len(history)-1]
	if last.PriceOffer == nil {
		return negotiation.Outcome{}, false
	}
	var previous *float64
	if len(history) > 1 {
		previous = history[len(history)-2].PriceOffer
	}
	outcome := negotiation.Detect(last.Sender, *last.PriceOffer, previous, last.Round)
	return outcome, outcome.Status.Terminal()
}

// complete fetches the actor's token and runs the chat call under one
// deadline.
func (s *TurnScheduler) complete(ctx context.Context, actorID string, req secondme.ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()
	token, err := s.tokens.AccessToken(ctx, actorID)
	if err != nil {
		return "", err
	}
	req.AccessToken = token
	return s.chat.Complete(ctx, req)
}

func (s *TurnScheduler) publish(ctx context.Context, room *model.Room, u model.TurnUpdate, rounds int) {
	if s.events == nil {
		return
	}
	ev := queue.NegotiationFinishedEvent{
		RoomID:     room.ID,
		HostID:     room.HostID,
		ItemName:   room.ItemName,
		Status:     string(u.Status),
		Rounds:     rounds,
		ListPrice:  room.ListPrice,
		FinalPrice: u.FinalPrice,
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if room.GuestID != nil {
		ev.GuestID = *room.GuestID
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.PublishNegotiationFinished(ctx, ev); err != nil {
		log.Printf("turn: publish finished event for room %s: %v", room.ID, err)
	}
}

// sessionID keeps a stored chat session handle, or derives the stable
// one for role.
func sessionID(stored *string, roomID string, role model.Role) string {
	if stored != nil && *stored != "" {
		return *stored
	}
	return roomID + "-" + role.Label()
}

func turnContext(room *model.Room, last *model.Message, round int) negotiation.TurnContext {
	tc := negotiation.TurnContext{
		FirstTurn:     last == nil,
		Round:         round,
		LastPrice:     room.ListPrice,
		LastStatement: noPreviousStatement,
	}
	if last != nil {
		if last.PriceOffer != nil {
			tc.LastPrice = *last.PriceOffer
		}
		tc.LastStatement = last.Content
	}
	return tc
}

func systemPrompt(role model.Role, room *model.Room, actorName string) string {
	desc := ""
	if room.Description != nil {
		desc = *room.Description
	}
	if role == model.RoleSeller {
		return negotiation.SellerSystemPrompt(negotiation.SellerBrief{
			SellerName:  actorName,
			ItemName:    room.ItemName,
			Description: desc,
			ListPrice:   room.ListPrice,
			MinPrice:    room.MinPrice,
		})
	}
	budget := room.ListPrice
	if room.MaxPrice != nil {
		budget = *room.MaxPrice
	}
	return negotiation.BuyerSystemPrompt(negotiation.BuyerBrief{
		BuyerName:   actorName,
		ItemName:    room.ItemName,
		Description: desc,
		MaxPrice:    budget,
	})
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/queue"
	"github.com/iliyamo/haggle-room/internal/repository"
	"github.com/iliyamo/haggle-room/internal/secondme"
)

// memRooms emulates the conditional updates of repository.RoomRepo.
type memRooms struct {
	mu          sync.Mutex
	rooms       map[string]*model.Room
	seq         int
	releases    int
	releaseErrs []error // ctx.Err() seen by each ReleaseTurn
}

func newMemRooms() *memRooms { return &memRooms{rooms: map[string]*model.Room{}} }

func (m *memRooms) put(r *model.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.rooms[r.ID] = &c
}

func (m *memRooms) Create(_ context.Context, r *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = fmt.Sprintf("room-%d", m.seq)
	r.Status = model.StatusWaiting
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	c := *r
	m.rooms[r.ID] = &c
	return nil
}

func (m *memRooms) GetByID(_ context.Context, id string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	c := *r
	return &c, nil
}

func (m *memRooms) Join(_ context.Context, id, guestID string, maxPrice float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok || r.HostID == guestID {
		return repository.ErrConflict
	}
	if !(r.Status == model.StatusWaiting || (r.Status == model.StatusReady && r.IsGuest(guestID))) {
		return repository.ErrConflict
	}
	g, mp := guestID, maxPrice
	r.GuestID, r.MaxPrice, r.Status = &g, &mp, model.StatusReady
	return nil
}

func (m *memRooms) Start(_ context.Context, id, hostID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok || r.HostID != hostID || r.Status != model.StatusReady || !r.HasGuest() {
		return repository.ErrConflict
	}
	r.Status, r.IsProcessing, r.FinalPrice = model.StatusActive, false, nil
	return nil
}

func (m *memRooms) TryAcquireTurn(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok || r.Status != model.StatusActive || r.IsProcessing {
		return false, nil
	}
	r.IsProcessing = true
	return true, nil
}

func (m *memRooms) ReleaseTurn(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	m.releaseErrs = append(m.releaseErrs, ctx.Err())
	if r, ok := m.rooms[id]; ok {
		r.IsProcessing = false
	}
	return nil
}

func (m *memRooms) FinishTurn(_ context.Context, id string, u model.TurnUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok || !r.IsProcessing {
		return repository.ErrConflict
	}
	s, b := u.SellerSessionID, u.BuyerSessionID
	r.Status, r.FinalPrice = u.Status, u.FinalPrice
	r.SellerSessionID, r.BuyerSessionID = &s, &b
	r.IsProcessing = false
	return nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs map[string][]model.Message
	seq  int
}

func newMemMessages() *memMessages { return &memMessages{msgs: map[string][]model.Message{}} }

func (m *memMessages) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.msgs[msg.RoomID] {
		if existing.Round == msg.Round {
			return repository.ErrConflict
		}
	}
	m.seq++
	msg.ID = fmt.Sprintf("msg-%d", m.seq)
	msg.CreatedAt = time.Now().UTC()
	m.msgs[msg.RoomID] = append(m.msgs[msg.RoomID], *msg)
	return nil
}

func (m *memMessages) ListByRoom(_ context.Context, roomID string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Message, len(m.msgs[roomID]))
	copy(out, m.msgs[roomID])
	return out, nil
}

func (m *memMessages) count(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs[roomID])
}

type tokenUpdate struct {
	id, access, refresh string
	expiresAt           *time.Time
}

type memUsers struct {
	mu      sync.Mutex
	users   map[string]*model.User
	updates []tokenUpdate
}

func newMemUsers(users ...*model.User) *memUsers {
	m := &memUsers{users: map[string]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) UpsertByProvider(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ProviderID == u.ProviderID {
			u.ID = existing.ID
			c := *u
			m.users[u.ID] = &c
			return nil
		}
	}
	u.ID = "user-" + u.ProviderID
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memUsers) UpdateTokens(_ context.Context, id, access, refresh string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.AccessToken, u.RefreshToken, u.TokenExpiresAt = access, refresh, expiresAt
	m.updates = append(m.updates, tokenUpdate{id, access, refresh, expiresAt})
	return nil
}

// staticTokens hands out "tok-<userID>".
type staticTokens struct{}

func (staticTokens) AccessToken(_ context.Context, userID string) (string, error) {
	return "tok-" + userID, nil
}

// scriptChat answers through fn and records every request.
type scriptChat struct {
	mu   sync.Mutex
	reqs []secondme.ChatRequest
	fn   func(ctx context.Context, n int, r secondme.ChatRequest) (string, error)
}

func (c *scriptChat) Complete(ctx context.Context, r secondme.ChatRequest) (string, error) {
	c.mu.Lock()
	n := len(c.reqs)
	c.reqs = append(c.reqs, r)
	c.mu.Unlock()
	return c.fn(ctx, n, r)
}

func (c *scriptChat) requests() []secondme.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]secondme.ChatRequest(nil), c.reqs...)
}

// alternating replies with sellerPrice on seller turns and buyerPrice on
// buyer turns.
func alternating(sellerPrice, buyerPrice float64) func(context.Context, int, secondme.ChatRequest) (string, error) {
	return func(_ context.Context, _ int, r secondme.ChatRequest) (string, error) {
		if strings.HasSuffix(r.SessionID, "-seller") {
			return fmt.Sprintf("PRICE: %v\nSAY: asking %v", sellerPrice, sellerPrice), nil
		}
		return fmt.Sprintf("PRICE: %v\nSAY: offering %v", buyerPrice, buyerPrice), nil
	}
}

// sequence replies with the given prices in order.
func sequence(prices ...float64) func(context.Context, int, secondme.ChatRequest) (string, error) {
	return func(_ context.Context, n int, _ secondme.ChatRequest) (string, error) {
		return fmt.Sprintf("PRICE: %v\nSAY: round %d", prices[n], n+1), nil
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.NegotiationFinishedEvent
}

func (p *recordingPublisher) PublishNegotiationFinished(_ context.Context, ev queue.NegotiationFinishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func ptr(v float64) *float64 { return &v }

func sptr(s string) *string { return &s }

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/negotiation"
	"github.com/iliyamo/haggle-room/internal/secondme"
)

type turnFixture struct {
	rooms  *memRooms
	msgs   *memMessages
	users  *memUsers
	chat   *scriptChat
	events *recordingPublisher
	sched  *TurnScheduler
}

const roomID = "r1"

func newTurnFixture(fn func(context.Context, int, secondme.ChatRequest) (string, error)) *turnFixture {
	f := &turnFixture{
		rooms:  newMemRooms(),
		msgs:   newMemMessages(),
		users:  newMemUsers(&model.User{ID: "host", Name: "Hana"}, &model.User{ID: "guest", Name: "Gil"}),
		chat:   &scriptChat{fn: fn},
		events: &recordingPublisher{},
	}
	f.rooms.put(&model.Room{
		ID: roomID, HostID: "host", GuestID: sptr("guest"), ItemName: "Lamp",
		ListPrice: 150, MinPrice: 90, MaxPrice: ptr(120), Status: model.StatusActive,
	})
	f.sched = NewTurnScheduler(f.rooms, f.msgs, f.users, staticTokens{}, f.chat, WithEvents(f.events))
	return f
}

func (f *turnFixture) room(t *testing.T) *model.Room {
	t.Helper()
	r, err := f.rooms.GetByID(context.Background(), roomID)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (f *turnFixture) advance(t *testing.T) TurnResult {
	t.Helper()
	res, err := f.sched.Advance(context.Background(), roomID)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	return res
}

func TestAdvanceBuyerClosesDeal(t *testing.T) {
	f := newTurnFixture(sequence(150, 100, 110, 110))
	want := []model.Status{model.StatusActive, model.StatusActive, model.StatusActive, model.StatusCompleted}
	for i, st := range want {
		res := f.advance(t)
		if !res.Advanced || res.Round != i+1 || res.Status != st {
			t.Fatalf("round %d: got %+v, want status %s", i+1, res, st)
		}
		if res.Message.Sender != negotiation.RoleForRound(i+1) {
			t.Errorf("round %d: sender %s", i+1, res.Message.Sender)
		}
	}
	r := f.room(t)
	if r.FinalPrice == nil || *r.FinalPrice != 110 {
		t.Fatalf("final price = %v, want 110", r.FinalPrice)
	}
	if r.IsProcessing {
		t.Error("lock still held")
	}
	if len(f.events.events) != 1 || f.events.events[0].Status != "COMPLETED" || f.events.events[0].Rounds != 4 {
		t.Errorf("events = %+v", f.events.events)
	}

	// A terminal room is reported, not advanced.
	res := f.advance(t)
	if res.Advanced || res.Status != model.StatusCompleted || *res.FinalPrice != 110 {
		t.Errorf("after completion: %+v", res)
	}
	if n := len(f.chat.requests()); n != 4 {
		t.Errorf("chat calls = %d, want 4", n)
	}
}

func TestAdvanceSellerClosesDeal(t *testing.T) {
	f := newTurnFixture(sequence(150, 100, 100))
	for i := 0; i < 3; i++ {
		f.advance(t)
	}
	r := f.room(t)
	if r.Status != model.StatusCompleted || r.FinalPrice == nil || *r.FinalPrice != 100 {
		t.Fatalf("room = %s final %v, want COMPLETED at 100", r.Status, r.FinalPrice)
	}
}

func TestAdvanceClampsOffers(t *testing.T) {
	f := newTurnFixture(sequence(10, 500))
	first := f.advance(t)
	if *first.Message.PriceOffer != 90 {
		t.Errorf("seller offer = %v, want floor 90", *first.Message.PriceOffer)
	}
	second := f.advance(t)
	if *second.Message.PriceOffer != 120 {
		t.Errorf("buyer offer = %v, want ceiling 120", *second.Message.PriceOffer)
	}
	if second.Status != model.StatusCompleted || *second.FinalPrice != 90 {
		t.Errorf("got %+v, want COMPLETED at 90", second)
	}
}

func TestAdvanceRoundLimitFails(t *testing.T) {
	f := newTurnFixture(alternating(200, 50))
	for round := 1; round <= negotiation.MaxRounds; round++ {
		res := f.advance(t)
		want := model.StatusActive
		if round == negotiation.MaxRounds {
			want = model.StatusFailed
		}
		if res.Status != want {
			t.Fatalf("round %d: status %s, want %s", round, res.Status, want)
		}
	}
	r := f.room(t)
	if r.FinalPrice != nil {
		t.Errorf("failed room has final price %v", *r.FinalPrice)
	}
	if n := f.msgs.count(roomID); n != negotiation.MaxRounds {
		t.Errorf("messages = %d", n)
	}
	if len(f.events.events) != 1 || f.events.events[0].Status != "FAILED" {
		t.Errorf("events = %+v", f.events.events)
	}
	res := f.advance(t)
	if res.Advanced || res.Status != model.StatusFailed {
		t.Errorf("after failure: %+v", res)
	}
}

func TestAdvanceBeyondRoundLimitFailsWithoutChat(t *testing.T) {
	f := newTurnFixture(alternating(200, 50))
	for round := 1; round <= negotiation.MaxRounds; round++ {
		price := 200.0
		if round%2 == 0 {
			price = 50
		}
		_ = f.msgs.Create(context.Background(), &model.Message{
			RoomID: roomID, Sender: negotiation.RoleForRound(round), Round: round, Content: "x", PriceOffer: ptr(price),
		})
	}
	res := f.advance(t)
	if res.Status != model.StatusFailed || res.Round != negotiation.MaxRounds || res.Message != nil {
		t.Fatalf("got %+v", res)
	}
	if n := len(f.chat.requests()); n != 0 {
		t.Errorf("chat called %d times", n)
	}
	if f.room(t).IsProcessing {
		t.Error("lock still held")
	}
}

func TestAdvancePromptsAndSessions(t *testing.T) {
	f := newTurnFixture(sequence(150, 60, 140, 70))
	for i := 0; i < 4; i++ {
		f.advance(t)
	}
	reqs := f.chat.requests()
	if len(reqs) != 4 {
		t.Fatalf("requests = %d", len(reqs))
	}
	for i, r := range reqs {
		wantSession, wantToken := roomID+"-seller", "tok-host"
		if i%2 == 1 {
			wantSession, wantToken = roomID+"-buyer", "tok-guest"
		}
		if r.SessionID != wantSession || r.AccessToken != wantToken {
			t.Errorf("request %d: session %q token %q", i, r.SessionID, r.AccessToken)
		}
		if first := i < 2; first != (r.SystemPrompt != "") {
			t.Errorf("request %d: system prompt present = %v", i, r.SystemPrompt != "")
		}
	}
	if !strings.Contains(reqs[0].SystemPrompt, "SELLER") || !strings.Contains(reqs[0].SystemPrompt, "Hana") {
		t.Errorf("seller prompt = %q", reqs[0].SystemPrompt)
	}
	if !strings.Contains(reqs[1].SystemPrompt, "BUYER") || strings.Contains(reqs[1].SystemPrompt, "90") {
		t.Errorf("buyer prompt leaks or misses role: %q", reqs[1].SystemPrompt)
	}
	if reqs[0].UserPrompt != negotiation.TurnPrompt(negotiation.TurnContext{FirstTurn: true, Round: 1}) {
		t.Errorf("opening prompt = %q", reqs[0].UserPrompt)
	}
	if !strings.Contains(reqs[2].UserPrompt, "Round: 3.") || !strings.Contains(reqs[2].UserPrompt, "60") {
		t.Errorf("round 3 prompt = %q", reqs[2].UserPrompt)
	}
	r := f.room(t)
	if r.SellerSessionID == nil || *r.SellerSessionID != roomID+"-seller" || r.BuyerSessionID == nil || *r.BuyerSessionID != roomID+"-buyer" {
		t.Errorf("stored sessions = %v / %v", r.SellerSessionID, r.BuyerSessionID)
	}
}

func TestAdvanceUnparseableReplyUsesFallback(t *testing.T) {
	f := newTurnFixture(func(context.Context, int, secondme.ChatRequest) (string, error) {
		return "I would rather not say", nil
	})
	res := f.advance(t)
	if *res.Message.PriceOffer != 150 {
		t.Errorf("offer = %v, want list price fallback", *res.Message.PriceOffer)
	}
	if res.Message.Content != "I would rather not say" {
		t.Errorf("content = %q", res.Message.Content)
	}
}

func TestAdvanceReleasesLockOnChatError(t *testing.T) {
	boom := errors.New("upstream down")
	f := newTurnFixture(func(context.Context, int, secondme.ChatRequest) (string, error) {
		return "", boom
	})
	_, err := f.sched.Advance(context.Background(), roomID)
	if !errors.Is(err, ErrTurnFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	r := f.room(t)
	if r.IsProcessing || r.Status != model.StatusActive {
		t.Errorf("room after failure: processing=%v status=%s", r.IsProcessing, r.Status)
	}
	if f.rooms.releases != 1 {
		t.Errorf("releases = %d, want 1", f.rooms.releases)
	}
	if f.msgs.count(roomID) != 0 {
		t.Error("message written on failure")
	}
}

func TestAdvanceReleasesLockWhenRequestCancelled(t *testing.T) {
	f := newTurnFixture(func(ctx context.Context, _ int, _ secondme.ChatRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.sched.Advance(ctx, roomID); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if f.room(t).IsProcessing {
		t.Fatal("lock still held")
	}
	if len(f.rooms.releaseErrs) != 1 || f.rooms.releaseErrs[0] != nil {
		t.Errorf("release ran with cancelled context: %v", f.rooms.releaseErrs)
	}
}

func TestAdvanceConcurrentCallsProduceOneMessage(t *testing.T) {
	const callers = 8
	entered := make(chan struct{})
	gate := make(chan struct{})
	f := newTurnFixture(func(context.Context, int, secondme.ChatRequest) (string, error) {
		close(entered)
		<-gate
		return "PRICE: 150\nSAY: opening", nil
	})

	results := make(chan TurnResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.sched.Advance(context.Background(), roomID)
			if err != nil {
				t.Errorf("Advance: %v", err)
			}
			results <- res
		}()
	}

	<-entered
	// Everybody but the lock holder returns while it is still inside chat.
	for i := 0; i < callers-1; i++ {
		if res := <-results; res.Advanced {
			t.Errorf("second caller advanced: %+v", res)
		}
	}
	close(gate)
	wg.Wait()
	if res := <-results; !res.Advanced || res.Round != 1 {
		t.Errorf("lock holder result = %+v", res)
	}
	if n := f.msgs.count(roomID); n != 1 {
		t.Errorf("messages = %d, want 1", n)
	}
}

func TestAdvancePreconditions(t *testing.T) {
	f := newTurnFixture(sequence(150))
	if _, err := f.sched.Advance(context.Background(), "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room: err = %v", err)
	}

	f.rooms.put(&model.Room{ID: "waiting", HostID: "host", Status: model.StatusWaiting, ListPrice: 10, MinPrice: 5})
	res, err := f.sched.Advance(context.Background(), "waiting")
	if err != nil || res.Advanced || res.Status != model.StatusWaiting {
		t.Errorf("waiting room: %+v, %v", res, err)
	}

	f.rooms.put(&model.Room{ID: "noguest", HostID: "host", Status: model.StatusActive, ListPrice: 10, MinPrice: 5})
	if _, err := f.sched.Advance(context.Background(), "noguest"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("guestless room: err = %v", err)
	}
	r, _ := f.rooms.GetByID(context.Background(), "noguest")
	if r.IsProcessing {
		t.Error("guestless room left locked")
	}
}

// failingFinish drops the room write on the listed FinishTurn calls
// (1-based) and records the context error each call saw.
type failingFinish struct {
	*memRooms
	failOn map[int]bool
	calls  int
	ctxErr []error
}

func (f *failingFinish) FinishTurn(ctx context.Context, id string, u model.TurnUpdate) error {
	f.calls++
	f.ctxErr = append(f.ctxErr, ctx.Err())
	if f.failOn[f.calls] {
		return errors.New("connection reset")
	}
	return f.memRooms.FinishTurn(ctx, id, u)
}

func TestAdvanceSettlesDealWhenRoomWriteWasLost(t *testing.T) {
	f := newTurnFixture(sequence(110, 115, 140, 100))
	rooms := &failingFinish{memRooms: f.rooms, failOn: map[int]bool{2: true}}
	f.sched = NewTurnScheduler(rooms, f.msgs, f.users, staticTokens{}, f.chat, WithEvents(f.events))

	f.advance(t)
	if _, err := f.sched.Advance(context.Background(), roomID); !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("round 2: err = %v", err)
	}
	if r := f.room(t); r.Status != model.StatusActive || r.IsProcessing {
		t.Fatalf("after lost write: status %s, processing %v", r.Status, r.IsProcessing)
	}

	res := f.advance(t)
	if res.Status != model.StatusCompleted || res.Round != 2 || res.Message != nil {
		t.Fatalf("retry = %+v", res)
	}
	if res.FinalPrice == nil || *res.FinalPrice != 110 {
		t.Errorf("final price = %v, want 110", res.FinalPrice)
	}
	r := f.room(t)
	if r.Status != model.StatusCompleted || r.FinalPrice == nil || *r.FinalPrice != 110 {
		t.Errorf("room = %s %v", r.Status, r.FinalPrice)
	}
	if n := f.msgs.count(roomID); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
	if n := len(f.chat.requests()); n != 2 {
		t.Errorf("chat calls = %d, want 2", n)
	}
	if len(f.events.events) != 1 || f.events.events[0].Rounds != 2 {
		t.Errorf("events = %+v", f.events.events)
	}
}

func TestAdvanceFinishesTurnAfterRequestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newTurnFixture(func(context.Context, int, secondme.ChatRequest) (string, error) {
		cancel()
		return "PRICE: 140\nSAY: opening", nil
	})
	rooms := &failingFinish{memRooms: f.rooms}
	f.sched = NewTurnScheduler(rooms, f.msgs, f.users, staticTokens{}, f.chat)

	res, err := f.sched.Advance(ctx, roomID)
	if err != nil || !res.Advanced || res.Round != 1 {
		t.Fatalf("Advance = %+v, %v", res, err)
	}
	if len(rooms.ctxErr) != 1 || rooms.ctxErr[0] != nil {
		t.Errorf("finish ran with cancelled context: %v", rooms.ctxErr)
	}
	if f.room(t).IsProcessing {
		t.Error("lock still held")
	}
}

func TestAdvanceBusyReportsStoredRound(t *testing.T) {
	f := newTurnFixture(sequence(140, 95))
	f.advance(t)
	f.advance(t)

	r := f.room(t)
	r.IsProcessing = true
	f.rooms.put(r)

	res := f.advance(t)
	if res.Advanced || res.Status != model.StatusActive || res.Round != 2 {
		t.Errorf("busy room = %+v", res)
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/haggle-room/internal/middleware"
	"github.com/iliyamo/haggle-room/internal/model"
	"github.com/iliyamo/haggle-room/internal/service"
)

// Rooms is the room use-case surface the handlers need.
type Rooms interface {
	Create(ctx context.Context, hostID string, in service.CreateRoomInput) (*model.Room, error)
	Join(ctx context.Context, roomID, guestID string, maxPrice float64) (*model.Room, error)
	Start(ctx context.Context, roomID, hostID string) (*model.Room, error)
	View(ctx context.Context, roomID, viewerID string) (*service.RoomView, error)
	Result(ctx context.Context, roomID string) (*service.ResultView, error)
}

// Turns advances negotiations.
type Turns interface {
	Advance(ctx context.Context, roomID string) (service.TurnResult, error)
}

// RoomHandler bundles dependencies for room endpoints.
type RoomHandler struct {
	Rooms Rooms
	Turns Turns
}

func NewRoomHandler(rooms Rooms, turns Turns) *RoomHandler {
	return &RoomHandler{Rooms: rooms, Turns: turns}
}

// ----- DTOs -----

type createRoomReq struct {
	ItemName    string  `json:"item_name"`
	Description string  `json:"description"`
	ListPrice   float64 `json:"list_price"`
	MinPrice    float64 `json:"min_price"`
}

type joinRoomReq struct {
	MaxPrice float64 `json:"max_price"`
}

// Create: POST /v1/rooms (session required).
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	uid := middleware.UserID(c)
	room, err := h.Rooms.Create(c.Request().Context(), uid, service.CreateRoomInput{
		ItemName:    req.ItemName,
		Description: req.Description,
		ListPrice:   req.ListPrice,
		MinPrice:    req.MinPrice,
	})
	if err != nil {
		return writeError(c, "create room", err)
	}
	return h.respondView(c, http.StatusCreated, room.ID, uid)
}

// Join: POST /v1/rooms/:id/join (session required).
func (h *RoomHandler) Join(c echo.Context) error {
	var req joinRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	uid := middleware.UserID(c)
	room, err := h.Rooms.Join(c.Request().Context(), c.Param("id"), uid, req.MaxPrice)
	if err != nil {
		return writeError(c, "join room", err)
	}
	return h.respondView(c, http.StatusOK, room.ID, uid)
}

// Start: POST /v1/rooms/:id/start (session required, seller only).
func (h *RoomHandler) Start(c echo.Context) error {
	uid := middleware.UserID(c)
	room, err := h.Rooms.Start(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, "start room", err)
	}
	return h.respondView(c, http.StatusOK, room.ID, uid)
}

// Turn: POST /v1/rooms/:id/turn.  Anyone watching may poll it; at most
// one caller at a time actually plays the round.
func (h *RoomHandler) Turn(c echo.Context) error {
	res, err := h.Turns.Advance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, "turn", err)
	}
	return c.JSON(http.StatusOK, res)
}

// View: GET /v1/rooms/:id (session optional).
func (h *RoomHandler) View(c echo.Context) error {
	return h.respondView(c, http.StatusOK, c.Param("id"), middleware.UserID(c))
}

// Result: GET /v1/rooms/:id/result.  Results of finished rooms never
// change and are marked cacheable.
func (h *RoomHandler) Result(c echo.Context) error {
	res, err := h.Rooms.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, "room result", err)
	}
	if res.Room.Status.Terminal() {
		middleware.MarkCacheable(c)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RoomHandler) respondView(c echo.Context, status int, roomID, viewerID string) error {
	v, err := h.Rooms.View(c.Request().Context(), roomID, viewerID)
	if err != nil {
		return writeError(c, "room view", err)
	}
	return c.JSON(status, echo.Map{"room": v})
}

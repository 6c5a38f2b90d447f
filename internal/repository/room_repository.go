package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
	"time"         // timestamps

	"github.com/iliyamo/haggle-room/internal/model"
)

// RoomRepo manages persistence for negotiation rooms.  Every state
// change is a conditional UPDATE that names the status it expects, so
// two requests racing on the same room cannot both win.  The DSN must
// set clientFoundRows=true so RowsAffected counts matched rows.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `id, host_id, guest_id, item_name, description, list_price, min_price, max_price,
    final_price, status, is_processing, seller_session_id, buyer_session_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*model.Room, error) {
	var (
		r                     model.Room
		status                string
		guestID, description  sql.NullString
		sellerSess, buyerSess sql.NullString
		maxPrice, finalPrice  sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.HostID, &guestID, &r.ItemName, &description, &r.ListPrice, &r.MinPrice,
		&maxPrice, &finalPrice, &status, &r.IsProcessing, &sellerSess, &buyerSess, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.Status(status)
	r.GuestID = nullString(guestID)
	r.Description = nullString(description)
	r.SellerSessionID = nullString(sellerSess)
	r.BuyerSessionID = nullString(buyerSess)
	r.MaxPrice = nullFloat(maxPrice)
	r.FinalPrice = nullFloat(finalPrice)
	return &r, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Create inserts a new room in WAITING status.  ID and timestamps are
// assigned here and written back to r.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	now := time.Now().UTC()
	room.ID = newID()
	room.Status = model.StatusWaiting
	room.IsProcessing = false
	room.CreatedAt, room.UpdatedAt = now, now
	const q = `INSERT INTO rooms (id, host_id, item_name, description, list_price, min_price, status, is_processing, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, room.ID, room.HostID, room.ItemName, room.Description,
		room.ListPrice, room.MinPrice, string(room.Status), now, now)
	return err
}

// GetByID retrieves a room by id.  It returns ErrRoomNotFound if there
// is no matching row.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// Join records the buyer and their budget.  It succeeds from WAITING, or
// from READY when the same guest re-joins to change the budget.
func (r *RoomRepo) Join(ctx context.Context, id, guestID string, maxPrice float64) error {
	const q = `UPDATE rooms SET guest_id = ?, max_price = ?, status = ?, updated_at = ?
               WHERE id = ? AND host_id <> ? AND (status = ? OR (status = ? AND guest_id = ?))`
	return r.execOne(ctx, q, guestID, maxPrice, string(model.StatusReady), time.Now().UTC(),
		id, guestID, string(model.StatusWaiting), string(model.StatusReady), guestID)
}

// Start moves a READY room with a guest to ACTIVE on behalf of its host.
func (r *RoomRepo) Start(ctx context.Context, id, hostID string) error {
	const q = `UPDATE rooms SET status = ?, is_processing = 0, final_price = NULL, updated_at = ?
               WHERE id = ? AND host_id = ? AND status = ? AND guest_id IS NOT NULL`
	return r.execOne(ctx, q, string(model.StatusActive), time.Now().UTC(), id, hostID, string(model.StatusReady))
}

// TryAcquireTurn is the single-flight lock: it flips is_processing on
// only for an ACTIVE room that is not already processing.  It reports
// whether this caller now holds the lock.
func (r *RoomRepo) TryAcquireTurn(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE rooms SET is_processing = 1 WHERE id = ? AND status = ? AND is_processing = 0`
	res, err := r.db.ExecContext(ctx, q, id, string(model.StatusActive))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseTurn clears the lock without touching anything else.
func (r *RoomRepo) ReleaseTurn(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rooms SET is_processing = 0 WHERE id = ?`, id)
	return err
}

// FinishTurn writes the turn outcome and clears the lock in one UPDATE.
// It only applies while the lock is held.
func (r *RoomRepo) FinishTurn(ctx context.Context, id string, u model.TurnUpdate) error {
	const q = `UPDATE rooms SET status = ?, final_price = ?, seller_session_id = ?, buyer_session_id = ?,
               is_processing = 0, updated_at = ?
               WHERE id = ? AND is_processing = 1`
	return r.execOne(ctx, q, string(u.Status), u.FinalPrice, u.SellerSessionID, u.BuyerSessionID,
		time.Now().UTC(), id)
}

// execOne runs a conditional update that must match exactly one row.
func (r *RoomRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

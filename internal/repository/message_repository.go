package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/haggle-room/internal/model"
)

// MessageRepo provides data access to the messages table.  Messages are
// append-only; (room_id, round) is unique so a round can never be
// recorded twice.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo returns a new MessageRepo bound to the provided database.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts m, assigning its ID and CreatedAt.  A duplicate round
// yields ErrConflict.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	m.ID = newID()
	m.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO messages (id, room_id, sender, round, content, price_offer, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.RoomID, string(m.Sender), m.Round, m.Content, m.PriceOffer, m.CreatedAt)
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// ListByRoom returns a room's messages in round order.  An empty history
// is an empty slice, not nil.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Message, error) {
	const q = `SELECT id, room_id, sender, round, content, price_offer, created_at
               FROM messages WHERE room_id = ? ORDER BY round ASC`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []model.Message{}
	for rows.Next() {
		var (
			m      model.Message
			sender string
			price  sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &sender, &m.Round, &m.Content, &price, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Sender = model.Role(sender)
		m.PriceOffer = nullFloat(price)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

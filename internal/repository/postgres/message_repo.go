package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts an immutable message.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	const q = `INSERT INTO messages (id, conversation_id, sender_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, m.ID, m.ConversationID, m.SenderID, m.Body, m.CreatedAt)
	return err
}

// List picks the newest limit messages after `after` and returns them oldest first.
func (r *MessageRepo) List(ctx context.Context, convID uuid.UUID, after *time.Time, limit int) ([]model.Message, error) {
	recent := sq.Select("m.id", "m.conversation_id", "m.sender_id", "m.body", "m.created_at",
		"cl.username", "cl.profile_image").
		From("messages m").
		Join("clients cl ON cl.id = m.sender_id").
		Where(sq.Eq{"m.conversation_id": convID})
	if after != nil {
		recent = recent.Where(sq.Gt{"m.created_at": *after})
	}
	recent = recent.OrderBy("m.created_at DESC", "m.id DESC")
	if limit > 0 {
		recent = recent.Limit(uint64(limit))
	}

	stmt, args, err := psql.Select("*").FromSelect(recent, "recent").
		OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build message list sql: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m     model.Message
			name  *string
			image *string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt, &name, &image); err != nil {
			return nil, err
		}
		m.Sender = &model.PublicProfile{ID: m.SenderID, Username: name, ProfileImage: image}
		out = append(out, m)
	}
	return out, rows.Err()
}

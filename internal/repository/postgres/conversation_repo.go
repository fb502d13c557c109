package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// ConversationRepo implements ConversationRepository using PostgreSQL.
type ConversationRepo struct{ db *DB }

// NewConversationRepo constructs a conversation repository.
func NewConversationRepo(db *DB) *ConversationRepo { return &ConversationRepo{db: db} }

const participantColumns = `conversation_id, user_id, role, last_read_message_id, created_at, cleared_at, hidden_at`

// GetOrCreateDM finds or creates the DM for {a, b} in one transaction.
// The unique dm_key makes concurrent callers converge on the same row.
func (r *ConversationRepo) GetOrCreateDM(
	ctx context.Context, a, b uuid.UUID, now time.Time,
) (conv *model.Conversation, created bool, err error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	key := model.DMKey(a, b)

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ins = `INSERT INTO conversations (id, type, created_by, dm_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT (dm_key) DO NOTHING`
	tag, err := tx.Exec(ctx, ins, id, model.ConversationDM, a, key, now)
	if err != nil {
		return nil, false, err
	}
	created = tag.RowsAffected() == 1

	const sel = `SELECT id, type, created_by, dm_key, created_at FROM conversations WHERE dm_key=$1`
	var c model.Conversation
	if err = tx.QueryRow(ctx, sel, key).Scan(&c.ID, &c.Type, &c.CreatedBy, &c.DMKey, &c.CreatedAt); err != nil {
		return nil, false, err
	}

	const members = `INSERT INTO conversation_participants (conversation_id, user_id, role, created_at)
VALUES ($1, $2, $4, $5), ($1, $3, $4, $5) ON CONFLICT (conversation_id, user_id) DO NOTHING`
	if _, err = tx.Exec(ctx, members, c.ID, a, b, model.RoleMember, now); err != nil {
		return nil, false, err
	}
	return &c, created, nil
}

// GetByID loads a conversation.
func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	const q = `SELECT id, type, created_by, dm_key, created_at FROM conversations WHERE id=$1`
	var c model.Conversation
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Type, &c.CreatedBy, &c.DMKey, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindParticipant returns errs.ErrNotAParticipant when userID has no row.
func (r *ConversationRepo) FindParticipant(ctx context.Context, convID, userID uuid.UUID) (*model.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, convID, userID)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotAParticipant
		}
		return nil, err
	}
	return p, nil
}

// ListParticipants returns every participant of a conversation, oldest first.
func (r *ConversationRepo) ListParticipants(ctx context.Context, convID uuid.UUID) ([]model.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM conversation_participants WHERE conversation_id=$1 ORDER BY created_at, user_id`
	rows, err := r.db.Pool.Query(ctx, q, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MemberProfiles returns the public profiles of the conversation members.
func (r *ConversationRepo) MemberProfiles(ctx context.Context, convID uuid.UUID) ([]model.PublicProfile, error) {
	const q = `
SELECT cl.id, cl.username, cl.profile_image
FROM conversation_participants p
JOIN clients cl ON cl.id = p.user_id
WHERE p.conversation_id=$1
ORDER BY p.created_at, cl.id`
	rows, err := r.db.Pool.Query(ctx, q, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PublicProfile
	for rows.Next() {
		var pp model.PublicProfile
		if err := rows.Scan(&pp.ID, &pp.Username, &pp.ProfileImage); err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

// SetClearedAt stamps cleared_at for userID.
func (r *ConversationRepo) SetClearedAt(ctx context.Context, convID, userID uuid.UUID, at time.Time) error {
	const q = `UPDATE conversation_participants SET cleared_at=$3 WHERE conversation_id=$1 AND user_id=$2`
	return r.execParticipant(ctx, q, convID, userID, at)
}

// SetHiddenAt sets hidden_at for userID; nil unhides.
func (r *ConversationRepo) SetHiddenAt(ctx context.Context, convID, userID uuid.UUID, at *time.Time) error {
	const q = `UPDATE conversation_participants SET hidden_at=$3 WHERE conversation_id=$1 AND user_id=$2`
	return r.execParticipant(ctx, q, convID, userID, at)
}

func (r *ConversationRepo) execParticipant(ctx context.Context, q string, convID, userID uuid.UUID, at any) error {
	tag, err := r.db.Pool.Exec(ctx, q, convID, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotAParticipant
	}
	return nil
}

const listForParticipantSQL = `
SELECT c.id, c.type, c.created_by, c.dm_key, c.created_at,
       o.id, o.username, o.profile_image,
       m.id, m.sender_id, m.body, m.created_at
FROM conversation_participants p
JOIN conversations c ON c.id = p.conversation_id
LEFT JOIN LATERAL (
    SELECT cl.id, cl.username, cl.profile_image
    FROM conversation_participants op
    JOIN clients cl ON cl.id = op.user_id
    WHERE op.conversation_id = c.id AND op.user_id <> p.user_id
    ORDER BY op.created_at
    LIMIT 1
) o ON true
LEFT JOIN LATERAL (
    SELECT mm.id, mm.sender_id, mm.body, mm.created_at
    FROM messages mm
    WHERE mm.conversation_id = c.id
    ORDER BY mm.created_at DESC, mm.id DESC
    LIMIT 1
) m ON true
WHERE p.user_id=$1 AND p.hidden_at IS NULL
ORDER BY m.created_at DESC NULLS LAST, c.created_at DESC`

// ListForParticipant lists the visible conversations of userID with the
// other member and the latest message of each.
func (r *ConversationRepo) ListForParticipant(ctx context.Context, userID uuid.UUID) ([]model.ConversationSummary, error) {
	rows, err := r.db.Pool.Query(ctx, listForParticipantSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConversationSummary
	for rows.Next() {
		var (
			s                   model.ConversationSummary
			otherID             uuid.NullUUID
			otherName, otherImg *string
			msgID, senderID     uuid.NullUUID
			body                *string
			sentAt              *time.Time
		)
		if err := rows.Scan(
			&s.Conversation.ID, &s.Conversation.Type, &s.Conversation.CreatedBy,
			&s.Conversation.DMKey, &s.Conversation.CreatedAt,
			&otherID, &otherName, &otherImg,
			&msgID, &senderID, &body, &sentAt,
		); err != nil {
			return nil, err
		}
		if otherID.Valid {
			s.Other = &model.PublicProfile{ID: otherID.UUID, Username: otherName, ProfileImage: otherImg}
		}
		if msgID.Valid && body != nil && sentAt != nil {
			s.LastMessage = &model.Message{
				ID:             msgID.UUID,
				ConversationID: s.Conversation.ID,
				SenderID:       senderID.UUID,
				Body:           *body,
				CreatedAt:      *sentAt,
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanParticipant(row pgx.Row) (*model.Participant, error) {
	var p model.Participant
	if err := row.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.LastReadMessageID,
		&p.CreatedAt, &p.ClearedAt, &p.HiddenAt); err != nil {
		return nil, err
	}
	return &p, nil
}

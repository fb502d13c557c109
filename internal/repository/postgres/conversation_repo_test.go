package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

var convCols = []string{"id", "type", "created_by", "dm_key", "created_at"}

func TestConversationRepo_GetOrCreateDM_Created(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)
	ctx := context.Background()

	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	key := model.DMKey(a, b)
	convID := uuid.Must(uuid.NewV4())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations \(id, type, created_by, dm_key, created_at, updated_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$5\) ON CONFLICT \(dm_key\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), model.ConversationDM, a, key, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id, type, created_by, dm_key, created_at FROM conversations WHERE dm_key=\$1`).
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows(convCols).AddRow(convID, model.ConversationDM, a, &key, now))
	mock.ExpectExec(`INSERT INTO conversation_participants .* ON CONFLICT \(conversation_id, user_id\) DO NOTHING`).
		WithArgs(convID, a, b, model.RoleMember, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	conv, created, err := r.GetOrCreateDM(ctx, a, b, now)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, convID, conv.ID)
	require.Equal(t, key, *conv.DMKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_GetOrCreateDM_Existing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)
	ctx := context.Background()

	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	key := model.DMKey(a, b)
	convID := uuid.Must(uuid.NewV4())
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	now := created.Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WithArgs(pgxmock.AnyArg(), model.ConversationDM, b, key, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`FROM conversations WHERE dm_key=\$1`).
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows(convCols).AddRow(convID, model.ConversationDM, a, &key, created))
	mock.ExpectExec(`INSERT INTO conversation_participants`).
		WithArgs(convID, b, a, model.RoleMember, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	conv, isNew, err := r.GetOrCreateDM(ctx, b, a, now)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, a, conv.CreatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_GetOrCreateDM_RollbackOnError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)

	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, _, err := r.GetOrCreateDM(context.Background(), a, b, time.Now())
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_FindParticipant(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)
	ctx := context.Background()
	convID, me := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT conversation_id, user_id, role, .* FROM conversation_participants WHERE conversation_id=\$1 AND user_id=\$2`).
		WithArgs(convID, me).
		WillReturnRows(pgxmock.NewRows([]string{
			"conversation_id", "user_id", "role", "last_read_message_id", "created_at", "cleared_at", "hidden_at",
		}).AddRow(convID, me, model.RoleMember, (*uuid.UUID)(nil), now, &now, (*time.Time)(nil)))
	p, err := r.FindParticipant(ctx, convID, me)
	require.NoError(t, err)
	require.Equal(t, me, p.UserID)
	require.NotNil(t, p.ClearedAt)
	require.Nil(t, p.HiddenAt)

	mock.ExpectQuery(`FROM conversation_participants WHERE conversation_id=\$1 AND user_id=\$2`).
		WithArgs(convID, me).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.FindParticipant(ctx, convID, me)
	require.ErrorIs(t, err, errs.ErrNotAParticipant)
}

func TestConversationRepo_SetHiddenAt_SetClearedAt(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)
	ctx := context.Background()
	convID, me := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE conversation_participants SET hidden_at=\$3 WHERE conversation_id=\$1 AND user_id=\$2`).
		WithArgs(convID, me, &now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetHiddenAt(ctx, convID, me, &now))

	mock.ExpectExec(`UPDATE conversation_participants SET hidden_at=\$3`).
		WithArgs(convID, me, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetHiddenAt(ctx, convID, me, nil), errs.ErrNotAParticipant)

	mock.ExpectExec(`UPDATE conversation_participants SET cleared_at=\$3`).
		WithArgs(convID, me, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetClearedAt(ctx, convID, me, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_ListForParticipant(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)
	me := uuid.Must(uuid.NewV4())
	other := uuid.Must(uuid.NewV4())
	c1, c2 := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	msgID := uuid.Must(uuid.NewV4())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	key := model.DMKey(me, other)
	name := "bob"
	body := "hi"

	cols := []string{
		"id", "type", "created_by", "dm_key", "created_at",
		"o_id", "o_username", "o_profile_image",
		"m_id", "m_sender_id", "m_body", "m_created_at",
	}
	mock.ExpectQuery(`WHERE p.user_id=\$1 AND p.hidden_at IS NULL ORDER BY m.created_at DESC NULLS LAST, c.created_at DESC`).
		WithArgs(me).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(c1, model.ConversationDM, me, &key, now,
				uuid.NullUUID{UUID: other, Valid: true}, &name, (*string)(nil),
				uuid.NullUUID{UUID: msgID, Valid: true}, uuid.NullUUID{UUID: other, Valid: true}, &body, &now).
			AddRow(c2, model.ConversationDM, me, (*string)(nil), now,
				uuid.NullUUID{}, (*string)(nil), (*string)(nil),
				uuid.NullUUID{}, uuid.NullUUID{}, (*string)(nil), (*time.Time)(nil)))

	got, err := r.ListForParticipant(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, c1, got[0].Conversation.ID)
	require.NotNil(t, got[0].Other)
	require.Equal(t, other, got[0].Other.ID)
	require.Equal(t, "bob", *got[0].Other.Username)
	require.NotNil(t, got[0].LastMessage)
	require.Equal(t, "hi", got[0].LastMessage.Body)
	require.Equal(t, other, got[0].LastMessage.SenderID)

	require.Nil(t, got[1].Other)
	require.Nil(t, got[1].LastMessage)
}

func TestConversationRepo_MemberProfiles(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewConversationRepo(db)
	convID := uuid.Must(uuid.NewV4())
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	alice := "alice"

	mock.ExpectQuery(`SELECT cl.id, cl.username, cl.profile_image FROM conversation_participants p JOIN clients cl`).
		WithArgs(convID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "profile_image"}).
			AddRow(a, &alice, (*string)(nil)).
			AddRow(b, (*string)(nil), (*string)(nil)))

	got, err := r.MemberProfiles(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, a, got[0].ID)
	require.Nil(t, got[1].Username)
}

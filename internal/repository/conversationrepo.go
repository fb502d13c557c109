package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// ConversationRepository stores conversations and per-participant visibility.
type ConversationRepository interface {
	// GetOrCreateDM atomically finds or creates the DM between a and b,
	// with a as creator on insert. created reports whether a row was inserted.
	GetOrCreateDM(ctx context.Context, a, b uuid.UUID, now time.Time) (conv *model.Conversation, created bool, err error)
	// GetByID loads a conversation.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	// FindParticipant loads the visibility record of userID in a conversation.
	FindParticipant(ctx context.Context, convID, userID uuid.UUID) (*model.Participant, error)
	// ListParticipants returns every participant row of a conversation.
	ListParticipants(ctx context.Context, convID uuid.UUID) ([]model.Participant, error)
	// MemberProfiles returns the public profiles of every participant.
	MemberProfiles(ctx context.Context, convID uuid.UUID) ([]model.PublicProfile, error)
	// SetClearedAt stamps cleared_at for one participant.
	SetClearedAt(ctx context.Context, convID, userID uuid.UUID, at time.Time) error
	// SetHiddenAt sets or (with nil) resets hidden_at for one participant.
	SetHiddenAt(ctx context.Context, convID, userID uuid.UUID, at *time.Time) error
	// ListForParticipant lists conversations not hidden by userID, newest activity first.
	ListForParticipant(ctx context.Context, userID uuid.UUID) ([]model.ConversationSummary, error)
}

// MessageRepository appends and reads immutable messages.
type MessageRepository interface {
	// Create inserts a message.
	Create(ctx context.Context, m *model.Message) error
	// List returns up to limit most recent messages created strictly after
	// `after` (when set), in ascending order, with sender profiles.
	List(ctx context.Context, convID uuid.UUID, after *time.Time, limit int) ([]model.Message, error)
}

package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/events"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
	"github.com/LyndaLilly/alebaz-chat-api/internal/repository"
)

const (
	// MaxBodyLen is the longest message body in characters.
	MaxBodyLen = 2000
	// MaxListed caps a message listing to the most recent entries.
	MaxListed = 200
)

// MessageService reads and appends messages for participants.
type MessageService interface {
	List(ctx context.Context, p model.Principal, convID uuid.UUID) ([]model.Message, error)
	Send(ctx context.Context, p model.Principal, convID uuid.UUID, body string) (*model.Message, error)
}

type MessageServiceImpl struct {
	clients repository.ClientRepository
	convs   repository.ConversationRepository
	msgs    repository.MessageRepository
	events  events.Publisher
	log     *zap.Logger
	now     Clock

	publishTimeout time.Duration
}

var _ MessageService = (*MessageServiceImpl)(nil)

// NewMessageService constructs MessageService. pub and log may be nil.
func NewMessageService(
	clients repository.ClientRepository,
	convs repository.ConversationRepository,
	msgs repository.MessageRepository,
	pub events.Publisher,
	log *zap.Logger,
	now Clock,
) *MessageServiceImpl {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageServiceImpl{
		clients:        clients,
		convs:          convs,
		msgs:           msgs,
		events:         pub,
		log:            log,
		now:            clockOrDefault(now),
		publishTimeout: PublishTimeout,
	}
}

// List returns what the principal may still see: nothing from before its
// cleared_at, and an error when it hid the chat.
func (s *MessageServiceImpl) List(ctx context.Context, p model.Principal, convID uuid.UUID) ([]model.Message, error) {
	if _, err := s.convs.GetByID(ctx, convID); err != nil {
		return nil, err
	}
	part, err := s.convs.FindParticipant(ctx, convID, p.ClientID)
	if err != nil {
		return nil, err
	}
	if part.HiddenAt != nil {
		return nil, errs.ErrChatDeleted
	}
	msgs, err := s.msgs.List(ctx, convID, part.ClearedAt, MaxListed)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// Send appends a trimmed message from the principal.
func (s *MessageServiceImpl) Send(ctx context.Context, p model.Principal, convID uuid.UUID, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.Validationf("body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return nil, errs.Validationf("body must not be greater than %d characters", MaxBodyLen)
	}

	if _, err := s.convs.GetByID(ctx, convID); err != nil {
		return nil, err
	}
	if _, err := s.convs.FindParticipant(ctx, convID, p.ClientID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	m := &model.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       p.ClientID,
		Body:           body,
		CreatedAt:      s.now(),
	}
	if err := s.msgs.Create(ctx, m); err != nil {
		return nil, err
	}

	if sender, err := s.clients.GetByID(ctx, p.ClientID); err == nil {
		pub := sender.Public()
		m.Sender = &pub
	} else {
		s.log.Warn("load message sender", zap.String("client_id", p.ClientID.String()), zap.Error(err))
		m.Sender = &model.PublicProfile{ID: p.ClientID}
	}

	publishBestEffort(ctx, s.events, s.publishTimeout, s.log,
		events.MessageSent(m.ID, convID, p.ClientID, m.CreatedAt),
		zap.String("message_id", m.ID.String()))
	return m, nil
}

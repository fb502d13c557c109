package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
	"github.com/LyndaLilly/alebaz-chat-api/internal/repository"
	"github.com/LyndaLilly/alebaz-chat-api/internal/storage"
)

// ConversationService manages DMs and the per-participant visibility flags.
type ConversationService interface {
	// CreateOrGetDM returns the single DM between the principal and other.
	CreateOrGetDM(ctx context.Context, p model.Principal, other uuid.UUID) (*model.DMView, error)
	// List returns conversations the principal has not hidden.
	List(ctx context.Context, p model.Principal) ([]model.ConversationSummary, error)
	// Clear hides earlier messages from the principal only.
	Clear(ctx context.Context, p model.Principal, convID uuid.UUID) error
	// Hide removes the conversation from the principal's list.
	Hide(ctx context.Context, p model.Principal, convID uuid.UUID) error
	// Unhide restores a hidden conversation.
	Unhide(ctx context.Context, p model.Principal, convID uuid.UUID) error
}

type ConversationServiceImpl struct {
	clients repository.ClientRepository
	convs   repository.ConversationRepository
	now     Clock
}

var _ ConversationService = (*ConversationServiceImpl)(nil)

// NewConversationService constructs ConversationService.
func NewConversationService(clients repository.ClientRepository, convs repository.ConversationRepository, now Clock) *ConversationServiceImpl {
	return &ConversationServiceImpl{clients: clients, convs: convs, now: clockOrDefault(now)}
}

func (s *ConversationServiceImpl) CreateOrGetDM(ctx context.Context, p model.Principal, other uuid.UUID) (*model.DMView, error) {
	if other == uuid.Nil {
		return nil, errs.Validationf("user_id is required")
	}
	if other == p.ClientID {
		return nil, errs.ErrSelfDM
	}
	if _, err := s.clients.GetByID(ctx, other); err != nil {
		return nil, err
	}

	conv, _, err := s.convs.GetOrCreateDM(ctx, p.ClientID, other, s.now())
	if err != nil {
		return nil, err
	}
	parts, err := s.convs.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	members, err := s.convs.MemberProfiles(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &model.DMView{Conversation: *conv, Participants: parts, Members: members}, nil
}

// List returns the visible conversations with image paths normalised.
func (s *ConversationServiceImpl) List(ctx context.Context, p model.Principal) ([]model.ConversationSummary, error) {
	list, err := s.convs.ListForParticipant(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if o := list[i].Other; o != nil {
			o.ProfileImage = storage.ImagePathPtr(o.ProfileImage)
		}
	}
	return list, nil
}

func (s *ConversationServiceImpl) Clear(ctx context.Context, p model.Principal, convID uuid.UUID) error {
	if _, err := s.convs.GetByID(ctx, convID); err != nil {
		return err
	}
	return s.convs.SetClearedAt(ctx, convID, p.ClientID, s.now())
}

func (s *ConversationServiceImpl) Hide(ctx context.Context, p model.Principal, convID uuid.UUID) error {
	if _, err := s.convs.GetByID(ctx, convID); err != nil {
		return err
	}
	now := s.now()
	return s.convs.SetHiddenAt(ctx, convID, p.ClientID, &now)
}

func (s *ConversationServiceImpl) Unhide(ctx context.Context, p model.Principal, convID uuid.UUID) error {
	if _, err := s.convs.GetByID(ctx, convID); err != nil {
		return err
	}
	return s.convs.SetHiddenAt(ctx, convID, p.ClientID, nil)
}

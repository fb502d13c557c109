package httpserver

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

type clientView struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Phone            *string   `json:"phone"`
	Username         *string   `json:"username"`
	ProfileImage     *string   `json:"profile_image"`
	Verified         bool      `json:"verified"`
	AccountCompleted bool      `json:"account_completed"`
	OnboardingStep   int       `json:"onboarding_step"`
}

func newClientView(c *model.Client) clientView {
	return clientView{
		ID:               c.ID,
		Email:            c.Email,
		Phone:            c.Phone,
		Username:         c.Username,
		ProfileImage:     c.ProfileImage,
		Verified:         c.Verified,
		AccountCompleted: c.AccountComplete,
		OnboardingStep:   c.OnboardingStep,
	}
}

type profileView struct {
	ID           uuid.UUID `json:"id"`
	Username     *string   `json:"username"`
	ProfileImage *string   `json:"profile_image"`
}

func newProfileView(p *model.PublicProfile) *profileView {
	if p == nil {
		return nil
	}
	return &profileView{ID: p.ID, Username: p.Username, ProfileImage: p.ProfileImage}
}

type participantView struct {
	ConversationID    uuid.UUID  `json:"conversation_id"`
	UserID            uuid.UUID  `json:"user_id"`
	Role              string     `json:"role"`
	LastReadMessageID *uuid.UUID `json:"last_read_message_id"`
	CreatedAt         time.Time  `json:"created_at"`
	ClearedAt         *time.Time `json:"cleared_at"`
	HiddenAt          *time.Time `json:"hidden_at"`
}

type conversationView struct {
	ID           uuid.UUID         `json:"id"`
	Type         string            `json:"type"`
	CreatedBy    uuid.UUID         `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	Participants []participantView `json:"participants"`
	Clients      []profileView     `json:"clients"`
}

func newConversationView(v *model.DMView) conversationView {
	out := conversationView{
		ID:           v.Conversation.ID,
		Type:         v.Conversation.Type,
		CreatedBy:    v.Conversation.CreatedBy,
		CreatedAt:    v.Conversation.CreatedAt,
		Participants: make([]participantView, 0, len(v.Participants)),
		Clients:      make([]profileView, 0, len(v.Members)),
	}
	for _, p := range v.Participants {
		out.Participants = append(out.Participants, participantView{
			ConversationID:    p.ConversationID,
			UserID:            p.UserID,
			Role:              p.Role,
			LastReadMessageID: p.LastReadMessageID,
			CreatedAt:         p.CreatedAt,
			ClearedAt:         p.ClearedAt,
			HiddenAt:          p.HiddenAt,
		})
	}
	for i := range v.Members {
		out.Clients = append(out.Clients, *newProfileView(&v.Members[i]))
	}
	return out
}

type lastMessageView struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	SenderID  uuid.UUID `json:"sender_id"`
}

type summaryView struct {
	ID          uuid.UUID        `json:"id"`
	Type        string           `json:"type"`
	Other       *profileView     `json:"other"`
	LastMessage *lastMessageView `json:"last_message"`
}

func newSummaryViews(list []model.ConversationSummary) []summaryView {
	out := make([]summaryView, 0, len(list))
	for _, s := range list {
		v := summaryView{ID: s.Conversation.ID, Type: s.Conversation.Type, Other: newProfileView(s.Other)}
		if m := s.LastMessage; m != nil {
			v.LastMessage = &lastMessageView{Body: m.Body, CreatedAt: m.CreatedAt, SenderID: m.SenderID}
		}
		out = append(out, v)
	}
	return out
}

type messageView struct {
	ID             uuid.UUID    `json:"id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	SenderID       uuid.UUID    `json:"sender_id"`
	Body           string       `json:"body"`
	CreatedAt      time.Time    `json:"created_at"`
	Sender         *profileView `json:"sender,omitempty"`
}

func newMessageView(m *model.Message) messageView {
	return messageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		Sender:         newProfileView(m.Sender),
	}
}

func newMessageViews(msgs []model.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, newMessageView(&msgs[i]))
	}
	return out
}

type searchResultView struct {
	ID           uuid.UUID        `json:"id"`
	Display      string           `json:"display"`
	DisplayType  model.SearchKind `json:"display_type"`
	Username     *string          `json:"username"`
	ProfileImage *string          `json:"profile_image"`
}

func newSearchViews(res []model.SearchResult) []searchResultView {
	out := make([]searchResultView, 0, len(res))
	for _, r := range res {
		out = append(out, searchResultView{
			ID:           r.ID,
			Display:      r.Display,
			DisplayType:  r.DisplayType,
			Username:     r.Username,
			ProfileImage: r.ProfileImage,
		})
	}
	return out
}

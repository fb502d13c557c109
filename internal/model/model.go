// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Onboarding steps a client passes through, in order.
const (
	StepEmailPending  = 1
	StepEmailVerified = 2
	StepProfileSaved  = 3
	StepCompleted     = 4
)

// Conversation types. Only DM has behaviour; community is reserved by the schema.
const (
	ConversationDM        = "dm"
	ConversationCommunity = "community"
)

// RoleMember is the only participant role in a DM.
const RoleMember = "member"

// Tokens collects an issued bearer credential.
type Tokens struct {
	AccessToken string
	TokenID     string    // jti, used for revocation
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Principal is the authenticated caller, passed explicitly into every operation.
type Principal struct {
	ClientID  uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

// Client is an identity record together with its email OTP sub-state.
type Client struct {
	ID              uuid.UUID
	Email           string
	Phone           *string // E.164, unique once set
	Username        *string // unique once set
	ProfileImage    *string // relative path inside the upload dir
	PinHash         []byte
	Verified        bool
	AccountComplete bool
	OnboardingStep  int
	EmailVerifiedAt *time.Time

	VerificationCode       *string
	VerificationExpiresAt  *time.Time
	VerificationLastSentAt *time.Time
	VerificationResends    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicProfile is what other clients may see of a client.
type PublicProfile struct {
	ID           uuid.UUID
	Username     *string
	ProfileImage *string
}

// Public returns the public profile of c.
func (c *Client) Public() PublicProfile {
	return PublicProfile{ID: c.ID, Username: c.Username, ProfileImage: c.ProfileImage}
}

// Conversation is a chat channel. DMs carry a deterministic pair key.
type Conversation struct {
	ID        uuid.UUID
	Type      string
	CreatedBy uuid.UUID
	DMKey     *string
	CreatedAt time.Time
}

// Participant is the per-(conversation, client) visibility record.
type Participant struct {
	ConversationID    uuid.UUID
	UserID            uuid.UUID
	Role              string
	LastReadMessageID *uuid.UUID
	CreatedAt         time.Time
	ClearedAt         *time.Time
	HiddenAt          *time.Time
}

// Message is an immutable chat entry.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Body           string
	CreatedAt      time.Time

	Sender *PublicProfile // populated on reads that join the sender
}

// DMView is a DM together with the public profiles of both participants.
type DMView struct {
	Conversation Conversation
	Participants []Participant
	Members      []PublicProfile
}

// ConversationSummary is one row of a client's conversation list.
type ConversationSummary struct {
	Conversation Conversation
	Other        *PublicProfile
	LastMessage  *Message
}

// SearchKind classifies a contact search query.
type SearchKind string

const (
	SearchEmail    SearchKind = "email"
	SearchPhone    SearchKind = "phone"
	SearchUsername SearchKind = "username"
)

// SearchQuery is a classified, normalized contact search.
type SearchQuery struct {
	Kind      SearchKind
	Value     string // lowercased email, E.164 phone or lowercased username prefix
	ExcludeID uuid.UUID
	Limit     int
}

// SearchResult is one matching completed account.
type SearchResult struct {
	ID           uuid.UUID
	Display      string
	DisplayType  SearchKind
	Username     *string
	ProfileImage *string
}

// Contact is the raw row a search returns before display selection.
type Contact struct {
	ID           uuid.UUID
	Email        string
	Phone        *string
	Username     *string
	ProfileImage *string
}

// DMKey is the deterministic key of the unordered pair {a, b}.
func DMKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}

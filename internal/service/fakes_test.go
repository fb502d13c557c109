package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/events"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
	"github.com/LyndaLilly/alebaz-chat-api/internal/repository"
	"github.com/LyndaLilly/alebaz-chat-api/internal/storage"
	"github.com/LyndaLilly/alebaz-chat-api/internal/token"
)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 2, 18, 19, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type partKey struct{ conv, user uuid.UUID }

// memStore is an in-memory implementation of every repository.
type memStore struct {
	mu       sync.Mutex
	clients  map[uuid.UUID]*model.Client
	convs    map[uuid.UUID]*model.Conversation
	parts    map[partKey]*model.Participant
	messages []model.Message

	createErr error
	updateErr error
	deleted   []uuid.UUID
}

var (
	_ repository.ClientRepository       = (*memStore)(nil)
	_ repository.ConversationRepository = memConvs{}
	_ repository.MessageRepository      = memMessages{}
)

func newStore() *memStore {
	return &memStore{
		clients: map[uuid.UUID]*model.Client{},
		convs:   map[uuid.UUID]*model.Conversation{},
		parts:   map[partKey]*model.Participant{},
	}
}

func cloneClient(c *model.Client) *model.Client {
	cp := *c
	return &cp
}

func (s *memStore) Create(_ context.Context, c *model.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, o := range s.clients {
		if o.Email == c.Email {
			return errs.ErrEmailTaken
		}
	}
	s.clients[c.ID] = cloneClient(c)
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.clients, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memStore) Update(_ context.Context, c *model.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.clients[c.ID]; !ok {
		return errs.ErrNotFound
	}
	s.clients[c.ID] = cloneClient(c)
	return nil
}

func (s *memStore) find(pred func(*model.Client) bool) (*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if pred(c) {
			return cloneClient(c), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.Client, error) {
	return s.find(func(c *model.Client) bool { return c.ID == id })
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*model.Client, error) {
	return s.find(func(c *model.Client) bool { return c.Email == email })
}

func (s *memStore) GetByPhone(_ context.Context, phone string) (*model.Client, error) {
	return s.find(func(c *model.Client) bool { return c.Phone != nil && *c.Phone == phone })
}

func (s *memStore) UsernameTaken(_ context.Context, username string, except uuid.UUID) (bool, error) {
	_, err := s.find(func(c *model.Client) bool {
		return c.ID != except && c.Username != nil && strings.EqualFold(*c.Username, username)
	})
	return err == nil, nil
}

func (s *memStore) PhoneTaken(_ context.Context, phone string, except uuid.UUID) (bool, error) {
	_, err := s.find(func(c *model.Client) bool { return c.ID != except && c.Phone != nil && *c.Phone == phone })
	return err == nil, nil
}

func (s *memStore) Search(_ context.Context, q model.SearchQuery) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Contact
	for _, c := range s.clients {
		if c.ID == q.ExcludeID || !c.AccountComplete {
			continue
		}
		var ok bool
		switch q.Kind {
		case model.SearchEmail:
			ok = strings.ToLower(c.Email) == q.Value
		case model.SearchPhone:
			ok = c.Phone != nil && *c.Phone == q.Value
		case model.SearchUsername:
			ok = c.Username != nil && strings.HasPrefix(strings.ToLower(*c.Username), q.Value)
		}
		if ok {
			out = append(out, model.Contact{ID: c.ID, Email: c.Email, Phone: c.Phone, Username: c.Username, ProfileImage: c.ProfileImage})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) GetOrCreateDM(_ context.Context, a, b uuid.UUID, now time.Time) (*model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.DMKey(a, b)
	for _, c := range s.convs {
		if c.DMKey != nil && *c.DMKey == key {
			cp := *c
			return &cp, false, nil
		}
	}
	c := &model.Conversation{ID: uuid.Must(uuid.NewV4()), Type: model.ConversationDM, CreatedBy: a, DMKey: &key, CreatedAt: now}
	s.convs[c.ID] = c
	for _, u := range []uuid.UUID{a, b} {
		s.parts[partKey{c.ID, u}] = &model.Participant{ConversationID: c.ID, UserID: u, Role: model.RoleMember, CreatedAt: now}
	}
	cp := *c
	return &cp, true, nil
}

func (s *memStore) GetConversation(id uuid.UUID) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// memConvs adapts memStore to ConversationRepository, whose GetByID
// collides with the client method.
type memConvs struct{ *memStore }

func (m memConvs) GetByID(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	return m.GetConversation(id)
}

func (s *memStore) FindParticipant(_ context.Context, convID, userID uuid.UUID) (*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partKey{convID, userID}]
	if !ok {
		return nil, errs.ErrNotAParticipant
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListParticipants(_ context.Context, convID uuid.UUID) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Participant
	for k, p := range s.parts {
		if k.conv == convID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

func (s *memStore) MemberProfiles(ctx context.Context, convID uuid.UUID) ([]model.PublicProfile, error) {
	parts, _ := s.ListParticipants(ctx, convID)
	var out []model.PublicProfile
	for _, p := range parts {
		if c, err := s.GetByID(ctx, p.UserID); err == nil {
			out = append(out, c.Public())
		}
	}
	return out, nil
}

func (s *memStore) SetClearedAt(_ context.Context, convID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partKey{convID, userID}]
	if !ok {
		return errs.ErrNotAParticipant
	}
	p.ClearedAt = &at
	return nil
}

func (s *memStore) SetHiddenAt(_ context.Context, convID, userID uuid.UUID, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partKey{convID, userID}]
	if !ok {
		return errs.ErrNotAParticipant
	}
	p.HiddenAt = at
	return nil
}

func (s *memStore) ListForParticipant(_ context.Context, userID uuid.UUID) ([]model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ConversationSummary
	for k, p := range s.parts {
		if k.user != userID || p.HiddenAt != nil {
			continue
		}
		sum := model.ConversationSummary{Conversation: *s.convs[k.conv]}
		for k2 := range s.parts {
			if k2.conv == k.conv && k2.user != userID {
				if c, ok := s.clients[k2.user]; ok {
					pub := c.Public()
					sum.Other = &pub
				}
			}
		}
		for i := range s.messages {
			m := s.messages[i]
			if m.ConversationID == k.conv && (sum.LastMessage == nil || m.CreatedAt.After(sum.LastMessage.CreatedAt)) {
				sum.LastMessage = &m
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return out[i].Conversation.CreatedAt.After(out[j].Conversation.CreatedAt)
		}
	})
	return out, nil
}

// memMessages adapts memStore to MessageRepository.
type memMessages struct{ *memStore }

func (m memMessages) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m memMessages) List(_ context.Context, convID uuid.UUID, after *time.Time, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.messages {
		if msg.ConversationID != convID || (after != nil && !msg.CreatedAt.After(*after)) {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeMail struct {
	err  error
	sent []struct{ to, code string }
}

func (f *fakeMail) SendVerification(_ context.Context, to, code string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, struct{ to, code string }{to, code})
	return nil
}

func (f *fakeMail) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].code
}

type fakeImages struct {
	saved   []string
	removed []string
	err     error
}

var _ storage.ImageStore = (*fakeImages)(nil)

func (f *fakeImages) SaveImage(_ context.Context, filename string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	p := "uploads/clients/" + uuid.Must(uuid.NewV4()).String() + "-" + filename
	f.saved = append(f.saved, p)
	return p, nil
}

func (f *fakeImages) Remove(_ context.Context, rel string) error {
	f.removed = append(f.removed, rel)
	return nil
}

type fakeDenylist struct {
	revoked map[string]time.Duration
}

var _ token.Denylist = (*fakeDenylist)(nil)

func (f *fakeDenylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if f.revoked == nil {
		f.revoked = map[string]time.Duration{}
	}
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeEvents struct {
	err       error
	published []events.Event
}

func (f *fakeEvents) Publish(_ context.Context, e events.Event) error {
	f.published = append(f.published, e)
	return f.err
}

func (f *fakeEvents) Close() error { return nil }

// stalledEvents blocks like an unreachable broker until the caller gives up.
type stalledEvents struct{ calls int }

func (f *stalledEvents) Publish(ctx context.Context, _ events.Event) error {
	f.calls++
	<-ctx.Done()
	return ctx.Err()
}

func (f *stalledEvents) Close() error { return nil }

var errBoom = errors.New("boom")

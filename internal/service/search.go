package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
	"github.com/LyndaLilly/alebaz-chat-api/internal/phone"
	"github.com/LyndaLilly/alebaz-chat-api/internal/repository"
)

const (
	minQueryLen = 2
	maxQueryLen = 120
	// SearchLimit caps the number of search results.
	SearchLimit = 10
)

// SearchService finds other completed accounts.
type SearchService interface {
	Search(ctx context.Context, p model.Principal, q string) (model.SearchKind, []model.SearchResult, error)
}

type SearchServiceImpl struct {
	clients repository.ClientRepository
}

var _ SearchService = (*SearchServiceImpl)(nil)

// NewSearchService constructs SearchService.
func NewSearchService(clients repository.ClientRepository) *SearchServiceImpl {
	return &SearchServiceImpl{clients: clients}
}

// Classify decides how q is matched: email if it has an @, phone if it only
// holds phone punctuation and digits, username otherwise.
func Classify(q string) (model.SearchKind, string) {
	switch {
	case strings.Contains(q, "@"):
		return model.SearchEmail, strings.ToLower(q)
	case phone.LooksLikePhone(q):
		return model.SearchPhone, phone.NormalizeQuery(q)
	default:
		return model.SearchUsername, strings.ToLower(q)
	}
}

// Search classifies q and returns at most SearchLimit matches, excluding the caller.
func (s *SearchServiceImpl) Search(ctx context.Context, p model.Principal, q string) (model.SearchKind, []model.SearchResult, error) {
	q = strings.TrimSpace(q)
	if n := utf8.RuneCountInString(q); n < minQueryLen || n > maxQueryLen {
		return "", nil, errs.Validationf("q must be between %d and %d characters", minQueryLen, maxQueryLen)
	}

	kind, value := Classify(q)
	contacts, err := s.clients.Search(ctx, model.SearchQuery{
		Kind:      kind,
		Value:     value,
		ExcludeID: p.ClientID,
		Limit:     SearchLimit,
	})
	if err != nil {
		return "", nil, err
	}

	out := make([]model.SearchResult, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, model.SearchResult{
			ID:           c.ID,
			Display:      display(kind, c),
			DisplayType:  kind,
			Username:     c.Username,
			ProfileImage: c.ProfileImage,
		})
	}
	return kind, out, nil
}

func display(kind model.SearchKind, c model.Contact) string {
	var primary string
	switch kind {
	case model.SearchEmail:
		primary = c.Email
	case model.SearchPhone:
		primary = deref(c.Phone)
	default:
		primary = deref(c.Username)
	}
	if primary != "" {
		return primary
	}
	for _, v := range []string{deref(c.Username), deref(c.Phone), c.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

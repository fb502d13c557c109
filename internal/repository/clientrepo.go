// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// ClientRepository provides access to client identity records.
type ClientRepository interface {
	// Create inserts a new client; a taken email yields errs.ErrEmailTaken.
	Create(ctx context.Context, c *model.Client) error
	// Delete removes a client. Only used to drop accounts whose first mail failed.
	Delete(ctx context.Context, id uuid.UUID) error
	// Update persists every mutable column of c.
	Update(ctx context.Context, c *model.Client) error
	// GetByID loads a client by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	// GetByEmail loads a client by exact email.
	GetByEmail(ctx context.Context, email string) (*model.Client, error)
	// GetByPhone loads a client by exact E.164 phone.
	GetByPhone(ctx context.Context, phone string) (*model.Client, error)
	// UsernameTaken reports whether another client already uses username (case-insensitive).
	UsernameTaken(ctx context.Context, username string, except uuid.UUID) (bool, error)
	// PhoneTaken reports whether a client other than except already uses phone.
	PhoneTaken(ctx context.Context, phone string, except uuid.UUID) (bool, error)
	// Search returns completed accounts matching a classified query.
	Search(ctx context.Context, q model.SearchQuery) ([]model.Contact, error)
}

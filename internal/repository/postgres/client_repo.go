package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// Unique constraints on clients, as named in the migrations.
const (
	constraintEmail    = "clients_email_key"
	constraintPhone    = "clients_phone_key"
	constraintUsername = "clients_username_lower_key"
)

const clientColumns = `id, email, phone, username, profile_image, pin_hash, verified, account_completed,
onboarding_step, email_verified_at, email_verification_code, email_verification_expires_at,
email_verification_last_sent_at, email_verification_resend_count, created_at, updated_at`

// ClientRepo implements ClientRepository using PostgreSQL.
type ClientRepo struct{ db *DB }

// NewClientRepo constructs a client repository.
func NewClientRepo(db *DB) *ClientRepo { return &ClientRepo{db: db} }

// Create inserts a new client row.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client) error {
	const q = `
INSERT INTO clients (id, email, verified, account_completed, onboarding_step,
  email_verification_code, email_verification_expires_at, email_verification_last_sent_at,
  email_verification_resend_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, c.Email, c.Verified, c.AccountComplete, c.OnboardingStep,
		c.VerificationCode, c.VerificationExpiresAt, c.VerificationLastSentAt,
		c.VerificationResends, c.CreatedAt)
	return mapClientWriteErr(err)
}

// Delete removes a client row.
func (r *ClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM clients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Update writes every mutable column of c.
func (r *ClientRepo) Update(ctx context.Context, c *model.Client) error {
	const q = `
UPDATE clients SET
  phone=$2, username=$3, profile_image=$4, pin_hash=$5, verified=$6, account_completed=$7,
  onboarding_step=$8, email_verified_at=$9, email_verification_code=$10,
  email_verification_expires_at=$11, email_verification_last_sent_at=$12,
  email_verification_resend_count=$13, updated_at=$14
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, c.ID, c.Phone, c.Username, c.ProfileImage, c.PinHash,
		c.Verified, c.AccountComplete, c.OnboardingStep, c.EmailVerifiedAt, c.VerificationCode,
		c.VerificationExpiresAt, c.VerificationLastSentAt, c.VerificationResends, c.UpdatedAt)
	if err != nil {
		return mapClientWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetByID selects a client by ID.
func (r *ClientRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	return r.getOne(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id)
}

// GetByEmail selects a client by email.
func (r *ClientRepo) GetByEmail(ctx context.Context, email string) (*model.Client, error) {
	return r.getOne(ctx, `SELECT `+clientColumns+` FROM clients WHERE email=$1`, email)
}

// GetByPhone selects a client by phone.
func (r *ClientRepo) GetByPhone(ctx context.Context, phone string) (*model.Client, error) {
	return r.getOne(ctx, `SELECT `+clientColumns+` FROM clients WHERE phone=$1`, phone)
}

// UsernameTaken checks case-insensitive username use by anyone but except.
func (r *ClientRepo) UsernameTaken(ctx context.Context, username string, except uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM clients WHERE LOWER(username)=LOWER($1) AND id<>$2)`
	var taken bool
	if err := r.db.Pool.QueryRow(ctx, q, username, except).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// PhoneTaken checks whether anyone but except uses phone.
func (r *ClientRepo) PhoneTaken(ctx context.Context, phone string, except uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM clients WHERE phone=$1 AND id<>$2)`
	var taken bool
	if err := r.db.Pool.QueryRow(ctx, q, phone, except).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// Search runs a classified contact query over completed accounts.
func (r *ClientRepo) Search(ctx context.Context, q model.SearchQuery) ([]model.Contact, error) {
	b := psql.Select("id", "email", "phone", "username", "profile_image").
		From("clients").
		Where(sq.NotEq{"id": q.ExcludeID}).
		Where(sq.Eq{"account_completed": true})

	switch q.Kind {
	case model.SearchEmail:
		b = b.Where("LOWER(email) = ?", q.Value)
	case model.SearchPhone:
		b = b.Where(sq.Eq{"phone": q.Value})
	case model.SearchUsername:
		b = b.Where("username IS NOT NULL").
			Where("LOWER(username) LIKE ?", escapeLike(q.Value)+"%")
	default:
		return nil, fmt.Errorf("search: unknown kind %q", q.Kind)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search sql: %w", err)
	}
	rows, err := r.db.Pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Phone, &c.Username, &c.ProfileImage); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClientRepo) getOne(ctx context.Context, q string, arg any) (*model.Client, error) {
	var c model.Client
	err := r.db.Pool.QueryRow(ctx, q, arg).Scan(
		&c.ID, &c.Email, &c.Phone, &c.Username, &c.ProfileImage, &c.PinHash, &c.Verified,
		&c.AccountComplete, &c.OnboardingStep, &c.EmailVerifiedAt, &c.VerificationCode,
		&c.VerificationExpiresAt, &c.VerificationLastSentAt, &c.VerificationResends,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func mapClientWriteErr(err error) error {
	name, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch name {
	case constraintEmail:
		return errs.ErrEmailTaken
	case constraintPhone:
		return errs.ErrPhoneTaken
	case constraintUsername:
		return errs.ErrUsernameTaken
	default:
		return errs.ErrAlreadyExists
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

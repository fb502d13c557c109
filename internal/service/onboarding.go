package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/LyndaLilly/alebaz-chat-api/internal/crypto"
	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/events"
	mailer "github.com/LyndaLilly/alebaz-chat-api/internal/mail"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
	"github.com/LyndaLilly/alebaz-chat-api/internal/otp"
	"github.com/LyndaLilly/alebaz-chat-api/internal/phone"
	"github.com/LyndaLilly/alebaz-chat-api/internal/repository"
	"github.com/LyndaLilly/alebaz-chat-api/internal/storage"
	"github.com/LyndaLilly/alebaz-chat-api/internal/token"
)

const (
	maxEmailLen    = 120
	minUsernameLen = 3
	maxUsernameLen = 40
	minLoginPhone  = 7
	maxLoginPhone  = 20
)

var codeRe = regexp.MustCompile(`^\d{6}$`)

// OnboardingService drives a client from email sign-up to PIN login.
type OnboardingService interface {
	// StartEmail creates a client at step 1 and mails it a code.
	StartEmail(ctx context.Context, email string) (*model.Client, error)
	// VerifyEmail checks the code. errs.ErrAlreadyVerified is returned with the client.
	VerifyEmail(ctx context.Context, email, code string) (*model.Client, error)
	// ResendEmail issues and mails a new code, subject to cooldown and quota.
	ResendEmail(ctx context.Context, email string) (*model.Client, error)
	// SaveProfile stores username and image and moves the client to step 3.
	SaveProfile(ctx context.Context, in ProfileInput) (*model.Client, error)
	// SavePhonePin completes the account.
	SavePhonePin(ctx context.Context, in PhonePinInput) (*model.Client, error)
	// LoginWithPin issues a credential for a completed account.
	LoginWithPin(ctx context.Context, phone, pin string) (model.Tokens, *model.Client, error)
	// Me returns the authenticated client.
	Me(ctx context.Context, p model.Principal) (*model.Client, error)
	// Logout revokes the credential the principal was authenticated with.
	Logout(ctx context.Context, p model.Principal) error
}

// ImageUpload is an uploaded profile picture.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ProfileInput is the save-profile request.
type ProfileInput struct {
	Email    string
	Username *string
	Image    *ImageUpload
}

// PhonePinInput is the save-phone-pin request.
type PhonePinInput struct {
	Email       string
	CountryCode string
	Phone       string
	PIN         string
}

// OnboardingDeps collects the collaborators of the onboarding service.
type OnboardingDeps struct {
	Clients  repository.ClientRepository
	OTP      *otp.Engine
	Mail     mailer.Sender
	Images   storage.ImageStore
	Pins     PinHasher
	Tokens   TokenIssuer
	Denylist token.Denylist
	Events   events.Publisher
	Log      *zap.Logger
	Now      Clock

	// PublishTimeout caps event publishing per request; zero means the package default.
	PublishTimeout time.Duration

	// DeleteOrphans removes a just-created client when its first mail fails.
	DeleteOrphans bool
}

type OnboardingServiceImpl struct {
	d OnboardingDeps
}

var _ OnboardingService = (*OnboardingServiceImpl)(nil)

// NewOnboardingService fills optional collaborators with no-op defaults.
func NewOnboardingService(d OnboardingDeps) *OnboardingServiceImpl {
	d.Now = clockOrDefault(d.Now)
	if d.OTP == nil {
		d.OTP = otp.New(otp.DefaultPolicy())
	}
	if d.Denylist == nil {
		d.Denylist = token.NopDenylist{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &OnboardingServiceImpl{d: d}
}

// StartEmail registers a new email address.
func (s *OnboardingServiceImpl) StartEmail(ctx context.Context, email string) (*model.Client, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if _, err := s.d.Clients.GetByEmail(ctx, email); err == nil {
		return nil, errs.ErrEmailTaken
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.d.Now()
	c := &model.Client{
		ID:             id,
		Email:          email,
		OnboardingStep: model.StepEmailPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	code, err := s.d.OTP.Issue(c, now)
	if err != nil {
		return nil, err
	}
	if err := s.d.Clients.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.send(ctx, c, code); err != nil {
		if s.d.DeleteOrphans {
			if derr := s.d.Clients.Delete(ctx, c.ID); derr != nil {
				s.d.Log.Error("delete orphan client", zap.String("client_id", c.ID.String()), zap.Error(derr))
			}
		}
		return nil, err
	}
	return c, nil
}

// VerifyEmail confirms the mailed code.
func (s *OnboardingServiceImpl) VerifyEmail(ctx context.Context, email, code string) (*model.Client, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !codeRe.MatchString(code) {
		return nil, errs.Validationf("code must be %d digits", otp.CodeLength)
	}
	c, err := s.d.Clients.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.d.Now()
	if err := s.d.OTP.Verify(c, code, now); err != nil {
		if errors.Is(err, errs.ErrAlreadyVerified) {
			return c, err
		}
		return nil, err
	}
	c.UpdatedAt = now
	if err := s.d.Clients.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResendEmail mails a fresh code. Verified clients get errs.ErrAlreadyVerified.
func (s *OnboardingServiceImpl) ResendEmail(ctx context.Context, email string) (*model.Client, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	c, err := s.d.Clients.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c.EmailVerifiedAt != nil {
		return c, errs.ErrAlreadyVerified
	}

	now := s.d.Now()
	code, err := s.d.OTP.Resend(c, now)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt = now
	if err := s.d.Clients.Update(ctx, c); err != nil {
		return nil, err
	}
	if err := s.send(ctx, c, code); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *OnboardingServiceImpl) send(ctx context.Context, c *model.Client, code string) error {
	if err := s.d.Mail.SendVerification(ctx, c.Email, code, s.d.OTP.Policy().TTL); err != nil {
		s.d.Log.Error("verification mail failed", zap.String("client_id", c.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", errs.ErrDeliveryFailed, err)
	}
	return nil
}

// SaveProfile sets the optional username and image. The step is set to 3
// whatever it was before.
func (s *OnboardingServiceImpl) SaveProfile(ctx context.Context, in ProfileInput) (*model.Client, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	var username *string
	if in.Username != nil {
		u := strings.TrimSpace(*in.Username)
		if u != "" {
			if n := utf8.RuneCountInString(u); n < minUsernameLen || n > maxUsernameLen {
				return nil, errs.Validationf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen)
			}
			username = &u
		}
	}

	c, err := s.d.Clients.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c.EmailVerifiedAt == nil {
		return nil, errs.ErrEmailNotVerified
	}

	if username != nil {
		taken, err := s.d.Clients.UsernameTaken(ctx, *username, c.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errs.ErrUsernameTaken
		}
		c.Username = username
	}

	oldImage := c.ProfileImage
	var newImage string
	if in.Image != nil {
		newImage, err = s.d.Images.SaveImage(ctx, in.Image.Filename, in.Image.Content)
		if err != nil {
			return nil, err
		}
		c.ProfileImage = &newImage
	}

	c.OnboardingStep = model.StepProfileSaved
	c.UpdatedAt = s.d.Now()
	if err := s.d.Clients.Update(ctx, c); err != nil {
		if newImage != "" {
			s.removeImage(ctx, newImage)
		}
		return nil, err
	}
	if newImage != "" && oldImage != nil && *oldImage != newImage {
		s.removeImage(ctx, *oldImage)
	}
	return c, nil
}

func (s *OnboardingServiceImpl) removeImage(ctx context.Context, rel string) {
	if err := s.d.Images.Remove(ctx, rel); err != nil {
		s.d.Log.Warn("remove profile image", zap.String("path", rel), zap.Error(err))
	}
}

// SavePhonePin stores the normalized phone and hashed PIN and completes the account.
func (s *OnboardingServiceImpl) SavePhonePin(ctx context.Context, in PhonePinInput) (*model.Client, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !pkgcrypto.ValidPIN(in.PIN) {
		return nil, errs.Validationf("pin must be %d digits", pkgcrypto.PINLength)
	}

	c, err := s.d.Clients.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c.EmailVerifiedAt == nil {
		return nil, errs.ErrEmailNotVerified
	}
	if c.OnboardingStep < model.StepProfileSaved {
		return nil, errs.ErrProfileStepRequired
	}

	e164, err := phone.Normalize(in.CountryCode, in.Phone)
	if err != nil {
		return nil, err
	}
	taken, err := s.d.Clients.PhoneTaken(ctx, e164, c.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errs.ErrPhoneTaken
	}

	hash, err := s.d.Pins.HashPIN(in.PIN)
	if err != nil {
		return nil, err
	}
	now := s.d.Now()
	c.Phone = &e164
	c.PinHash = hash
	c.AccountComplete = true
	c.OnboardingStep = model.StepCompleted
	c.UpdatedAt = now
	if err := s.d.Clients.Update(ctx, c); err != nil {
		return nil, err
	}

	publishBestEffort(ctx, s.d.Events, s.d.PublishTimeout, s.d.Log,
		events.ClientRegistered(c.ID, e164, now),
		zap.String("client_id", c.ID.String()))
	return c, nil
}

// LoginWithPin authenticates by exact phone and PIN. Unknown phone and
// wrong PIN both yield errs.ErrInvalidCredentials.
func (s *OnboardingServiceImpl) LoginWithPin(ctx context.Context, phoneNum, pin string) (model.Tokens, *model.Client, error) {
	phoneNum = strings.TrimSpace(phoneNum)
	if n := len(phoneNum); n < minLoginPhone || n > maxLoginPhone {
		return model.Tokens{}, nil, errs.Validationf("phone must be between %d and %d characters", minLoginPhone, maxLoginPhone)
	}
	if !pkgcrypto.ValidPIN(pin) {
		return model.Tokens{}, nil, errs.Validationf("pin must be %d digits", pkgcrypto.PINLength)
	}

	c, err := s.d.Clients.GetByPhone(ctx, phoneNum)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, nil, errs.ErrInvalidCredentials
		}
		return model.Tokens{}, nil, err
	}
	if !c.AccountComplete || c.OnboardingStep != model.StepCompleted {
		return model.Tokens{}, nil, &errs.IncompleteError{Step: c.OnboardingStep}
	}
	if !s.d.Pins.VerifyPIN(c.PinHash, pin) {
		return model.Tokens{}, nil, errs.ErrInvalidCredentials
	}

	tok, err := s.d.Tokens.Issue(c.ID)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tok, c, nil
}

// Me loads the principal's client record.
func (s *OnboardingServiceImpl) Me(ctx context.Context, p model.Principal) (*model.Client, error) {
	c, err := s.d.Clients.GetByID(ctx, p.ClientID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	return c, nil
}

// Logout denylists the current token id until Parse would reject it anyway.
func (s *OnboardingServiceImpl) Logout(ctx context.Context, p model.Principal) error {
	if p.TokenID == "" {
		return errs.ErrUnauthorized
	}
	return s.d.Denylist.Revoke(ctx, p.TokenID, p.ExpiresAt.Sub(s.d.Now()))
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", errs.Validationf("email is required")
	}
	if len(email) > maxEmailLen {
		return "", errs.Validationf("email must not be greater than %d characters", maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errs.Validationf("email must be a valid email address")
	}
	return strings.ToLower(email), nil
}

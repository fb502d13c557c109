// Package mail delivers verification codes by email.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

var verificationTmpl = template.Must(template.ParseFS(templatesFS, "templates/verification.html"))

// Subject of the verification email.
const Subject = "Your Verification Code"

// Sender delivers a verification code to an address.
type Sender interface {
	SendVerification(ctx context.Context, to, code string, validFor time.Duration) error
}

type verificationData struct {
	AppName          string
	Code             string
	ExpiresInMinutes int
	Year             int
}

// RenderVerification renders the HTML body of the verification email.
func RenderVerification(appName, code string, validFor time.Duration, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, verificationData{
		AppName:          appName,
		Code:             code,
		ExpiresInMinutes: int(validFor / time.Minute),
		Year:             now.Year(),
	})
	if err != nil {
		return "", fmt.Errorf("render verification mail: %w", err)
	}
	return buf.String(), nil
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppName  string
	Timeout  time.Duration
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	client *gomail.Client
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender builds a client for cfg. Authentication is used when a username is set.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.Timeout),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	c, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{cfg: cfg, client: c}, nil
}

// SendVerification renders and sends the verification email.
func (s *SMTPSender) SendVerification(ctx context.Context, to, code string, validFor time.Duration) error {
	body, err := RenderVerification(s.cfg.AppName, code, validFor, time.Now())
	if err != nil {
		return err
	}

	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	m.Subject(Subject)
	m.SetBodyString(gomail.TypeTextHTML, body)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender writes codes to the log instead of sending them. Development only.
type LogSender struct {
	Log *zap.Logger
}

var _ Sender = (*LogSender)(nil)

func (s *LogSender) SendVerification(_ context.Context, to, code string, validFor time.Duration) error {
	s.Log.Info("verification code",
		zap.String("to", to),
		zap.String("code", code),
		zap.Duration("valid_for", validFor),
	)
	return nil
}

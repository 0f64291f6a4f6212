package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/unofficial-homecase/homecasebot/internal/consumption"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

// Port 465 is implicit TLS, everything else negotiates STARTTLS.
const smtpPortSSL = 465

type Service struct {
	storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{storage: s}
}

func (s *Service) GetConfig(ctx context.Context) (*storage.EmailConfig, error) {
	return s.storage.GetEmailConfig(ctx)
}

func (s *Service) SaveConfig(ctx context.Context, cfg storage.EmailConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	return s.storage.SaveEmailConfig(ctx, cfg)
}

// SendConsumptionReport formats and sends the report for one parsed notice
// to the configured recipients.
func (s *Service) SendConsumptionReport(ctx context.Context, msg *consumption.ParsedMessage) error {
	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return errors.New("email not configured or disabled")
	}

	to := splitAddresses(cfg.Recipients)
	if len(to) == 0 {
		return errors.New("no recipients configured")
	}
	cc := splitAddresses(cfg.CC)

	subject := Subject(msg)
	body := FormatBody(msg, cfg.Greeting, cfg.Signature)

	log.Printf("notification: sending report for %s %d to %d recipient(s)", msg.Month, msg.Year, len(to))
	return s.send(cfg, to, cc, subject, body)
}

// TestConfig sends a test email using the provided (possibly unsaved) config.
func (s *Service) TestConfig(ctx context.Context, cfg storage.EmailConfig, to string) error {
	return s.send(&cfg, []string{to}, nil, "Test Email", "This is a test email from homecasebot.")
}

func (s *Service) send(cfg *storage.EmailConfig, to, cc []string, subject, body string) error {
	switch cfg.Provider {
	case "smtp", "":
		return s.sendSMTP(cfg, to, cc, subject, body)
	case "sendgrid":
		return s.sendSendgrid(cfg, to, cc, subject, body)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func (s *Service) sendSMTP(cfg *storage.EmailConfig, to, cc []string, subject, body string) error {
	e := email.NewEmail()
	e.From = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	if cfg.FromName == "" {
		e.From = cfg.FromAddress
	}
	e.To = to
	e.Cc = cc
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if cfg.Port == smtpPortSSL {
		return e.SendWithTLS(addr, auth, &tls.Config{ServerName: cfg.Host})
	}
	return e.SendWithStartTLS(addr, auth, &tls.Config{ServerName: cfg.Host})
}

func (s *Service) sendSendgrid(cfg *storage.EmailConfig, to, cc []string, subject, body string) error {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	personalization := mail.NewPersonalization()
	for _, addr := range to {
		personalization.AddTos(mail.NewEmail("", addr))
	}
	for _, addr := range cc {
		personalization.AddCCs(mail.NewEmail("", addr))
	}

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject
	message.AddPersonalizations(personalization)
	message.AddContent(mail.NewContent("text/plain", body))

	client := sendgrid.NewSendClient(cfg.APIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

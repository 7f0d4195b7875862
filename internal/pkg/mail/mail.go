package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ServiAPP/serviapp/internal/pkg/env"
)

var ErrInvalidMessage = errors.New("invalid mail message")

// Message is a single transactional email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	Tag      string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	DriverLog      = "log"
	DriverSMTP     = "smtp"
	DriverPostmark = "postmark"
)

// Config selects and configures a driver.
type Config struct {
	Driver  string
	From    string
	ReplyTo string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string

	PostmarkServerToken  string
	PostmarkAccountToken string
}

// LoadConfig reads MAIL_*, SMTP_* and POSTMARK_* variables.
func LoadConfig() Config {
	return Config{
		Driver:               strings.ToLower(env.GetEnv("MAIL_DRIVER", DriverLog)),
		From:                 env.GetEnv("MAIL_FROM", env.GetEnv("SMTP_SENDER", "")),
		ReplyTo:              env.GetEnv("MAIL_REPLY_TO", ""),
		SMTPHost:             env.GetEnv("SMTP_HOST", ""),
		SMTPPort:             env.GetEnv("SMTP_PORT", "587"),
		SMTPUsername:         env.GetEnv("SMTP_USERNAME", ""),
		SMTPPassword:         env.GetEnv("SMTP_PASSWORD", ""),
		PostmarkServerToken:  env.GetEnv("POSTMARK_SERVER_TOKEN", ""),
		PostmarkAccountToken: env.GetEnv("POSTMARK_ACCOUNT_TOKEN", ""),
	}
}

// NewSender builds the configured driver.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.Driver {
	case DriverSMTP:
		return NewSMTPSender(cfg)
	case DriverPostmark:
		return NewPostmarkSender(cfg)
	case DriverLog, "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// LogSender only logs. It is the development default.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	log.Infof("[Mail] (log driver) to=%s subject=%q tag=%s", msg.To, msg.Subject, msg.Tag)
	return nil
}

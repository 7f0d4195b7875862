package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"
)

// SMTPSender sends emails via SMTP
type SMTPSender struct {
	addr   string
	from   string
	auth   smtp.Auth
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("SMTP_HOST is required for the smtp mail driver")
	}

	sender := cfg.From
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] MAIL_FROM not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return &SMTPSender{
		addr:   fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
		from:   sender,
		auth:   auth,
		sendFn: smtp.SendMail,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	// net/smtp has no context support, so only honour cancellation up front
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.sendFn(s.addr, s.auth, s.from, []string{msg.To}, buildMIME(s.from, msg))
	if err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", msg.To, s.addr)
	return nil
}

func buildMIME(from string, msg Message) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, msg.To, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTMLBody,
	)
}

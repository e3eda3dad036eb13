package jobs

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPSender delivers mail through a plain SMTP relay such as Mailpit.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs a sender for the given relay address.
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

// Send composes and submits one message.
func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.from, to, subject, body)
	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("jobs: smtp send: %w", err)
	}
	return nil
}

var _ Sender = (*SMTPSender)(nil)

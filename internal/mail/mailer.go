package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

const (
	confirmationSubject = "Confirmation code"
	confirmationBody    = "Your confirmation code: %s"
)

// Mailer delivers outbound mail. A send failure must surface to the caller;
// signup is not allowed to succeed with the code undelivered.
type Mailer interface {
	SendConfirmationCode(to, code string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendConfirmationCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", confirmationSubject)
	msg.SetBody("text/plain", fmt.Sprintf(confirmationBody, code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send to %s failed: %w", to, err)
	}
	return nil
}

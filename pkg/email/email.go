package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers plain-text mail through an authenticated SMTP relay.
type Sender struct {
	Server   string
	Port     int
	Username string
	Password string
	FromName string
}

func (s Sender) Configured() bool {
	return s.Server != "" && s.Port != 0 && s.Username != "" && s.Password != ""
}

// Build returns the RFC 5322 message for one recipient.
func (s Sender) Build(to, subject, body string) []byte {
	from := s.Username
	if s.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.FromName, s.Username)
	}
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		from, to, subject, strings.ReplaceAll(body, "\n", "\r\n"),
	))
}

func (s Sender) Send(to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}
	if !s.Configured() {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Server)
	addr := fmt.Sprintf("%s:%d", s.Server, s.Port)
	return smtp.SendMail(addr, auth, s.Username, []string{to}, s.Build(to, subject, body))
}

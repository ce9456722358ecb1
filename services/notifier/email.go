package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"pricepulse/logger"
)

// EmailNotifier sends notifications over SMTP.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	log      *logger.Logger
}

// NewEmailNotifier creates a new SMTP notifier
func NewEmailNotifier(host string, port int, username, password, from string) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		log:      logger.ForComponent("email_notifier"),
	}
}

// Notify sends an email to the recipient
func (n *EmailNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.username, n.password, n.host)

	if err := smtp.SendMail(addr, auth, n.from, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}

	n.log.Info().Str("recipient", recipient).Str("subject", subject).Msg("Notification sent")
	return nil
}

// LogNotifier writes notifications to the log instead of delivering them;
// the default when SMTP is not configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a new log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.ForComponent("log_notifier")}
}

// Notify logs the notification
func (n *LogNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	n.log.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Str("body", body).
		Msg("Notification (log only)")
	return nil
}

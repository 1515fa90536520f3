// Package alert delivers operator notifications for pipeline faults such as a
// tripped LLM circuit breaker.
package alert

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/nimbium/cirro/pkg/config"
)

// Alerter is the notification hook wired into pipeline guards. Implementations
// must tolerate being called from multiple goroutines.
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter sends alerts over SMTP using the addresses from AlertConfig.
type EmailAlerter struct {
	cfg config.AlertConfig
}

// NewEmailAlerter builds an alerter from the alert section of the config.
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{cfg: cfg}
}

// Alert emails the configured recipients. Disabled alerting is a silent no-op
// so guards can call unconditionally.
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(a.cfg.To, ","))
	fmt.Fprintf(&body, "Subject: %s\r\n", subject)
	body.WriteString("\r\n")
	body.WriteString(message)
	body.WriteString("\r\n")

	addr := net.JoinHostPort(a.cfg.SMTPHost, strconv.Itoa(a.cfg.SMTPPort))
	creds := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	if err := smtp.SendMail(addr, creds, a.cfg.From, a.cfg.To, []byte(body.String())); err != nil {
		return fmt.Errorf("failed to email alert: %w", err)
	}
	return nil
}

// NoOpAlerter discards every alert. It stands in when alerting is disabled or
// a caller has nothing to notify.
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error { return nil }

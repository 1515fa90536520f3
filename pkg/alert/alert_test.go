package alert

import (
	"testing"

	"github.com/nimbium/cirro/pkg/config"
)

func TestEmailAlerterDisabledIsNoOp(t *testing.T) {
	// Host is unroutable, so any attempt to actually send would fail.
	a := NewEmailAlerter(config.AlertConfig{Enabled: false, SMTPHost: "smtp.invalid"})
	if err := a.Alert("breaker open", "provider down"); err != nil {
		t.Fatalf("Alert with alerting disabled: %v", err)
	}
}

func TestNoOpAlerter(t *testing.T) {
	var a Alerter = &NoOpAlerter{}
	if err := a.Alert("breaker open", "provider down"); err != nil {
		t.Fatalf("NoOpAlerter.Alert: %v", err)
	}
}

package prompts

import (
	"strings"
	"testing"
)

func TestRequirementsPrompt(t *testing.T) {
	version := NewParseQueryVersions().Requirements()

	messages, err := version.Call(map[string]interface{}{
		"query": "I need a postgres database with 8 vCPU for about $400 a month",
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(messages))
	}

	user := messages[1].Content
	if !strings.Contains(user, "<REQUEST>\nI need a postgres database") {
		t.Errorf("user prompt missing the request block:\n%s", user)
	}

	// The example schema must show every extractable field so the model
	// knows the full shape.
	for _, field := range []string{
		"budget", "budget_period", "min_vcpu", "min_memory_gb",
		"needs_high_availability", "extra_features",
		"preferred_provider", "database_engine",
	} {
		if !strings.Contains(user, field) {
			t.Errorf("schema example missing field %q", field)
		}
	}

	if !strings.Contains(user, "Never guess numbers") {
		t.Errorf("user prompt missing the no-guessing rule:\n%s", user)
	}
	if !strings.Contains(user, "Respond with the JSON object only") {
		t.Errorf("user prompt missing the JSON-only rule:\n%s", user)
	}
}

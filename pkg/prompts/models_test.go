package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

func TestToPromptCSVStructSlice(t *testing.T) {
	data := []RecommendationRow{
		{
			Rank:     1,
			Service:  "Amazon RDS for PostgreSQL",
			Provider: "aws",
			Score:    0.91,
			Pricing:  "$0.17/hour",
			Specs:    "4 vCPU, 16GB",
			Concerns: []string{"over budget", "single region"},
		},
		{
			Rank:     2,
			Service:  "Cloud SQL",
			Provider: "gcp",
			Score:    0.84,
			Pricing:  "$0.15/hour",
			Specs:    "4 vCPU, 15GB",
			Concerns: nil,
		},
	}

	csvStr, err := ToPromptCSV(data, false)
	if err != nil {
		t.Fatalf("ToPromptCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(csvStr), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), csvStr)
	}
	if !strings.HasPrefix(lines[0], "Rank,Service,Provider") {
		t.Errorf("header = %q, want field names in declaration order", lines[0])
	}
	if !strings.Contains(csvStr, "Amazon RDS for PostgreSQL") {
		t.Errorf("expected CSV to contain service name, got:\n%s", csvStr)
	}
	// String slices render as one delimited cell, not one column each.
	if !strings.Contains(csvStr, "over budget; single region") {
		t.Errorf("expected concerns joined with '; ', got:\n%s", csvStr)
	}
}

func TestToPromptCSVMapSlice(t *testing.T) {
	data := []map[string]interface{}{
		{"service": "Lambda", "provider": "aws"},
		{"service": "Cloud Functions", "provider": "gcp"},
	}

	csvStr, err := ToPromptCSV(data, false)
	if err != nil {
		t.Fatalf("ToPromptCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(csvStr), "\n")
	// Keys are sorted for a stable column order.
	if lines[0] != "provider,service" {
		t.Errorf("header = %q, want sorted keys %q", lines[0], "provider,service")
	}
	if lines[1] != "aws,Lambda" {
		t.Errorf("row = %q, want %q", lines[1], "aws,Lambda")
	}
}

func TestToPromptCSVPrimitiveSlice(t *testing.T) {
	csvStr, err := ToPromptCSV([]string{"compute", "database", "storage"}, false)
	if err != nil {
		t.Fatalf("ToPromptCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(csvStr), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 single-column rows, got %d", len(lines))
	}
	if lines[1] != "database" {
		t.Errorf("row = %q, want %q", lines[1], "database")
	}
}

func TestToPromptCSVRejectsNonSlice(t *testing.T) {
	if _, err := ToPromptCSV("not a slice", false); err == nil {
		t.Error("expected error for non-slice input")
	}
	if _, err := ToPromptCSV(map[string]string{"a": "b"}, false); err == nil {
		t.Error("expected error for map input")
	}
}

func TestToPromptCSVEmptySlice(t *testing.T) {
	csvStr, err := ToPromptCSV([]RecommendationRow{}, false)
	if err != nil {
		t.Fatalf("ToPromptCSV failed: %v", err)
	}
	if csvStr != "" {
		t.Errorf("expected empty output for empty slice, got %q", csvStr)
	}
}

func TestToPromptCSVEnsureASCII(t *testing.T) {
	data := []map[string]interface{}{
		{"name": "Zürich region"},
	}

	csvStr, err := ToPromptCSV(data, true)
	if err != nil {
		t.Fatalf("ToPromptCSV failed: %v", err)
	}
	if !strings.Contains(csvStr, `\u00fc`) {
		t.Errorf("expected non-ASCII escaped, got %q", csvStr)
	}
	if strings.Contains(csvStr, "ü") {
		t.Errorf("raw unicode should not survive escaping, got %q", csvStr)
	}

	plain, err := ToPromptCSV(data, false)
	if err != nil {
		t.Fatalf("ToPromptCSV failed: %v", err)
	}
	if !strings.Contains(plain, "Zürich") {
		t.Errorf("expected raw unicode preserved, got %q", plain)
	}
}

func TestToPromptJSON(t *testing.T) {
	data := map[string]interface{}{"budget": 500}

	compact, err := ToPromptJSON(data, 0)
	if err != nil {
		t.Fatalf("ToPromptJSON failed: %v", err)
	}
	if compact != `{"budget":500}` {
		t.Errorf("compact JSON = %q", compact)
	}

	indented, err := ToPromptJSON(data, 2)
	if err != nil {
		t.Fatalf("ToPromptJSON failed: %v", err)
	}
	if !strings.Contains(indented, "\n") {
		t.Errorf("expected indented JSON to span lines, got %q", indented)
	}
}

func TestToPromptYAML(t *testing.T) {
	data := map[string]interface{}{
		"provider": "aws",
		"min_vcpu": 4,
	}

	yamlStr, err := ToPromptYAML(data)
	if err != nil {
		t.Fatalf("ToPromptYAML failed: %v", err)
	}
	if !strings.Contains(yamlStr, "provider: aws") {
		t.Errorf("expected YAML key/value, got:\n%s", yamlStr)
	}
}

func TestNewPromptVersionAppendsUnicodeInstruction(t *testing.T) {
	version := NewPromptVersion(func(context map[string]interface{}) ([]types.Message, error) {
		return []types.Message{
			nlp.NewSystemMessage("system body"),
			nlp.NewUserMessage("user body"),
		}, nil
	})

	messages, err := version.Call(map[string]interface{}{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if !strings.Contains(messages[0].Content, "Do not escape unicode characters.") {
		t.Errorf("system message missing unicode instruction: %q", messages[0].Content)
	}
	if strings.Contains(messages[1].Content, "Do not escape unicode characters.") {
		t.Errorf("user message should not carry the unicode instruction: %q", messages[1].Content)
	}
}

func TestNewPromptVersionPropagatesError(t *testing.T) {
	wantErr := errors.New("bad context")
	version := NewPromptVersion(func(context map[string]interface{}) ([]types.Message, error) {
		return nil, wantErr
	})

	if _, err := version.Call(nil); !errors.Is(err, wantErr) {
		t.Errorf("Call error = %v, want %v", err, wantErr)
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{name: "nil", input: nil, want: ""},
		{name: "string", input: "ebs", want: "ebs"},
		{name: "int", input: 42, want: "42"},
		{name: "float drops trailing zeros", input: 0.5, want: "0.5"},
		{name: "bool", input: true, want: "true"},
		{name: "string slice joined", input: []string{"a", "b"}, want: "a; b"},
		{name: "int slice joined", input: []int{1, 2, 3}, want: "1; 2; 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cellValue(tt.input, false)
			if got != tt.want {
				t.Errorf("cellValue(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

package nlp

import "testing"

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"https", "https://api.example.com", false},
		{"http", "http://localhost:11434", false},
		{"with path", "https://vllm.internal:8000/v1", false},
		{"empty", "", true},
		{"no scheme", "localhost:11434", true},
		{"wrong scheme", "ftp://files.example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBaseURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateBaseURL(%q) = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestHasAPIPath(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"http://localhost:11434/v1", true},
		{"http://localhost:11434/v1/", true},
		{"http://localhost:8080/api", true},
		{"http://localhost:8080/api/", true},
		{"http://localhost:11434", false},
		{"https://api.openai.com/v2", false},
	}
	for _, tt := range tests {
		if got := hasAPIPath(tt.raw); got != tt.want {
			t.Errorf("hasAPIPath(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

package authn

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantNorm   string
		wantDomain string
		wantErr    bool
	}{
		{"valid simple", "user@example.com", "user@example.com", "example.com", false},
		{"valid mixed case", "User@Example.COM", "user@example.com", "example.com", false},
		{"valid with plus", "user+tag@example.com", "user+tag@example.com", "example.com", false},
		{"invalid empty", "", "", "", true},
		{"invalid no at", "userexample.com", "", "", true},
		{"invalid no domain", "user@", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			norm, domain, err := ValidateEmail(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if norm != tt.wantNorm {
				t.Errorf("ValidateEmail(%q) normalized = %q, want %q", tt.input, norm, tt.wantNorm)
			}
			if domain != tt.wantDomain {
				t.Errorf("ValidateEmail(%q) domain = %q, want %q", tt.input, domain, tt.wantDomain)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "alice", false},
		{"valid with underscore", "alice_bob", false},
		{"too short", "a", true},
		{"too long", strings.Repeat("a", 33), true},
		{"invalid space", "alice bob", true},
		{"invalid dash", "alice-bob", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUsername(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid 8 chars", "12345678", false},
		{"too short", "1234567", true},
		{"too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

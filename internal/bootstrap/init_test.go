package bootstrap

import "testing"

func TestSanitizeUsernameStripsInvalidCharacters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"alice+admin", "aliceadmin"},
		{"alice.smith_99", "alice.smith_99"},
		{"a l i c e", "alice"},
	}
	for _, tt := range tests {
		if got := sanitizeUsername.ReplaceAllString(tt.in, ""); got != tt.want {
			t.Errorf("sanitizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

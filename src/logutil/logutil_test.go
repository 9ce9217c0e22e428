package logutil

import "testing"

func TestRedactKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "********"},
		{"short", "********"},
		{"12345678", "********"},
		{"sk-or-v1-abcdef123456", "sk-o...3456"},
	}
	for _, tt := range tests {
		if got := RedactKey(tt.in); got != tt.want {
			t.Errorf("RedactKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("a\nb\tc\x01d"); got != "a\\nb\\tc?d" {
		t.Errorf("Sanitize() = %q", got)
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := Sanitize(string(long))
	if len(got) != 103 || got[100:] != "..." {
		t.Errorf("Sanitize long input: len=%d tail=%q", len(got), got[len(got)-3:])
	}
}

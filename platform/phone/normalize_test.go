package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"06 12345678", "+31612345678"},
		{"+31 6 12345678", "+31612345678"},
		{"  +31612345678  ", "+31612345678"},
		{"", ""},
		{"not a number", "not a number"},
	}

	for _, tt := range tests {
		if got := NormalizeE164(tt.input); got != tt.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateE164(t *testing.T) {
	got, err := ValidateE164("06 12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+31612345678" {
		t.Fatalf("got %q", got)
	}

	for _, bad := range []string{"", "   ", "abc", "123"} {
		if _, err := ValidateE164(bad); err == nil {
			t.Errorf("ValidateE164(%q) expected error", bad)
		}
	}
}

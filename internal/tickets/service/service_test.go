package service

import "testing"

func TestTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"open", "in_progress", true},
		{"open", "resolved", true},
		{"open", "closed", true},
		{"in_progress", "open", true},
		{"resolved", "closed", true},
		{"resolved", "open", true},
		{"resolved", "in_progress", false},
		{"closed", "open", false},
		{"closed", "resolved", false},
		{"open", "open", true},
	}

	for _, tt := range tests {
		if got := transitionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("transitionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

package domain

import (
	"errors"
	"strings"
)

// ErrMissingProviderCallID is returned when the provider call identifier is
// absent or carries the rejected legacy placeholder shape.
var ErrMissingProviderCallID = errors.New("missing or placeholder provider call id")

// ValidateProviderCallID rejects empty provider call identifiers and the
// legacy placeholder shape (a configurable prefix, historically "webcall:",
// composited with the internal call id). Rows with that shape were a
// data-quality bug class; they are refused outright before any persistence.
func ValidateProviderCallID(vapiCallID, rejectedPrefix string) error {
	trimmed := strings.TrimSpace(vapiCallID)
	if trimmed == "" {
		return ErrMissingProviderCallID
	}
	if rejectedPrefix != "" && strings.HasPrefix(trimmed, rejectedPrefix) {
		return ErrMissingProviderCallID
	}
	return nil
}

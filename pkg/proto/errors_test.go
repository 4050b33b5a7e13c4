package proto

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfClassifiedErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{Validationf("user_request cannot be empty"), KindValidation},
		{NotFoundf("session %s not found", "abc"), KindNotFound},
		{InvalidStatef("session is finalized"), KindInvalidState},
		{Enrichmentf(errors.New("timeout"), "pricing service failed"), KindEnrichment},
	}

	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tc.err, got, tc.kind)
		}
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := NotFoundf("session missing")
	wrapped := fmt.Errorf("handling request: %w", inner)
	if KindOf(wrapped) != KindNotFound {
		t.Error("classification should survive fmt.Errorf wrapping")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should classify as unknown")
	}
}

func TestEnrichmentUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Enrichmentf(cause, "crm lookup failed")
	if !errors.Is(err, cause) {
		t.Error("enrichment error should unwrap to its cause")
	}
}

func TestErrorMessageIncludesKind(t *testing.T) {
	err := Validationf("comments are required")
	if got := err.Error(); got != "validation_error: comments are required" {
		t.Errorf("unexpected error string: %q", got)
	}
}

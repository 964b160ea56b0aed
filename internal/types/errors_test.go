package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	cases := []struct {
		err    error
		target error
	}{
		{NotFound("customer", 7), ErrNotFound},
		{Conflict("vehicle", "license_plate"), ErrConflict},
		{Invalid("phone", "is required"), ErrValidation},
		{&InvalidTransitionError{From: "COMPLETED", Event: "CANCEL"}, ErrInvalidTransition},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("handler: %w", tc.err)
		if !errors.Is(wrapped, tc.target) {
			t.Errorf("%v should match %v", tc.err, tc.target)
		}
	}
	if errors.Is(NotFound("customer", 1), ErrConflict) {
		t.Fatal("not found must not match conflict")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NotFound("vehicle", 12).Error(); got != "vehicle 12 not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Invalid("", "vehicle does not belong to customer").Error(); got != "vehicle does not belong to customer" {
		t.Fatalf("unexpected message %q", got)
	}
	var ve *ValidationError
	if !errors.As(Invalid("labor_hours", "must be positive"), &ve) || ve.Field != "labor_hours" {
		t.Fatalf("expected ValidationError with field labor_hours")
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Fatalf("ParseID(42) = %v, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := ParseID(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseID(%q) expected validation error, got %v", bad, err)
		}
	}
}

package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidatorSuccess(t *testing.T) {
	validator := DefaultPasswordValidator()

	for _, password := range []string{"NewPass123", "InitPass123", "Br1ght!Harbor#2041"} {
		if err := validator.Validate(password); err != nil {
			t.Fatalf("expected %q to pass validation, got %v", password, err)
		}
	}
}

func TestDefaultPasswordValidatorViolations(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		password string
		wantCode string
	}{
		{"Sh0rt", "min_length"},
		{"12345678901", "letter"},
		{"passwordonly", "digit"},
		{"", "min_length"},
	}
	for _, tc := range cases {
		err := validator.Validate(tc.password)
		if err == nil {
			t.Fatalf("expected %q to fail with %s", tc.password, tc.wantCode)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != tc.wantCode {
			t.Fatalf("password %q: expected code %s, got %s", tc.password, tc.wantCode, vErr.Code)
		}
	}
}

func TestCustomPasswordValidator(t *testing.T) {
	validator := NewPasswordValidator(
		MinLengthRule(4),
		RequireDigitRule(),
		RequireDifferentFrom("existing1"),
	)

	if err := validator.Validate("existing1"); err == nil {
		t.Fatal("want an error when the new password matches the comparator")
	}

	if err := validator.Validate("diff"); err == nil {
		t.Fatal("expected validation error for missing digit")
	}

	if err := validator.Validate("diff1"); err != nil {
		t.Fatalf("expected password to pass custom validation, got %v", err)
	}
}

func TestStrengthRuleUsesUserInputs(t *testing.T) {
	rule := RequirePasswordStrengthRule(3, "dragomir@eventlink.ro")

	if err := rule("dragomir@eventlink.ro"); err == nil {
		t.Fatal("expected strength rule to reject password equal to a user input")
	}
}

package security

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	defaultMinPasswordLength = 8
	defaultMinZxcvbnScore    = 1

	maxZxcvbnScore = 4
)

// PasswordValidationError describes why a candidate password was rejected.
// Code is a stable machine-readable identifier; Message is safe to show to
// the caller.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func rejectPassword(code, format string, args ...any) error {
	return &PasswordValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PasswordRule checks one aspect of the password policy and returns a
// *PasswordValidationError when the candidate violates it.
type PasswordRule func(password string) error

// PasswordValidator runs an ordered set of policy rules against candidate
// passwords, stopping at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator builds a validator from the given rules. The slice is
// copied, so callers may reuse their argument afterwards.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	v := &PasswordValidator{rules: make([]PasswordRule, len(rules))}
	copy(v.rules, rules)
	return v
}

// DefaultPasswordValidator enforces the service password policy: a length
// floor, at least one letter and one digit, and a zxcvbn strength floor
// rejecting the most guessable values.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireLetterRule(),
		RequireDigitRule(),
		RequirePasswordStrengthRule(defaultMinZxcvbnScore),
	)
}

// Validate reports the first policy violation, or nil when the password
// passes every rule.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule rejects passwords shorter than min characters. Length is
// counted in runes so multi-byte characters are not penalized.
func MinLengthRule(min int) PasswordRule {
	return func(password string) error {
		if utf8.RuneCountInString(password) < min {
			return rejectPassword("min_length", "password must be at least %d characters long", min)
		}
		return nil
	}
}

// RequireLetterRule rejects passwords without a unicode letter.
func RequireLetterRule() PasswordRule {
	return func(password string) error {
		if anyRune(password, unicode.IsLetter) {
			return nil
		}
		return rejectPassword("letter", "password must include at least one letter")
	}
}

// RequireDigitRule rejects passwords without a digit.
func RequireDigitRule() PasswordRule {
	return func(password string) error {
		if anyRune(password, unicode.IsDigit) {
			return nil
		}
		return rejectPassword("digit", "password must include at least one digit")
	}
}

// RequireDifferentFrom rejects passwords equal to comparator, so a
// replacement credential cannot repeat the value it replaces.
func RequireDifferentFrom(comparator string) PasswordRule {
	return func(password string) error {
		if password == comparator {
			return rejectPassword("different", "new password must differ from the current one")
		}
		return nil
	}
}

// RequirePasswordStrengthRule scores the password with zxcvbn and rejects
// anything below minScore (0 to 4). Extra userInputs, such as the account
// email, are fed to the estimator so passwords derived from them score low.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	floor := min(minScore, maxZxcvbnScore)
	return func(password string) error {
		if floor <= 0 {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score < floor {
			return rejectPassword("weak_password", "password is too easy to guess; use a longer or less common value")
		}
		return nil
	}
}

func anyRune(s string, match func(rune) bool) bool {
	for _, r := range s {
		if match(r) {
			return true
		}
	}
	return false
}

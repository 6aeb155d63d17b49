package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/model"
)

// Validation constants.
const (
	MinPasswordLength = 8
	PhoneDigits       = 11
	CPFDigits         = 11
	MaxNameLength     = 120
)

// emailPattern accepts the same addresses the mobile client validates
// against: word characters, dots and dashes, then one or more dotted labels
// and a 2 to 4 letter top-level label.
var emailPattern = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

// UserInput carries the fields a client may set on a user. It is shared by
// registration, admin creation and profile update.
type UserInput struct {
	Name      string
	Email     string
	Phone     string
	CPF       string
	DateBirth *model.Date
	Password  string
}

// normalize trims surrounding whitespace from the text fields. Passwords are
// left alone: a trailing space is a legitimate password character.
func (in *UserInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.CPF = strings.TrimSpace(in.CPF)
}

// validate checks formats only. Uniqueness needs the repository and is
// checked separately by checkUnique.
//
// requirePassword is false for profile updates, where an empty password
// means "keep the current one".
func (in *UserInput) validate(requirePassword bool) error {
	if in.Name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if len(in.Name) > MaxNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if !emailPattern.MatchString(in.Email) {
		return apperror.ValidationFailed("email", "email is invalid")
	}
	if !allDigits(in.Phone, PhoneDigits) {
		return apperror.ValidationFailed("phone",
			fmt.Sprintf("phone must have exactly %d digits", PhoneDigits))
	}
	if !allDigits(in.CPF, CPFDigits) {
		return apperror.ValidationFailed("cpf",
			fmt.Sprintf("CPF must have exactly %d digits", CPFDigits))
	}
	if in.Password == "" && !requirePassword {
		return nil
	}
	return validatePassword(in.Password)
}

// validatePassword requires at least MinPasswordLength characters with at
// least one letter and one digit. bcrypt only reads the first 72 bytes, so
// anything longer is rejected instead of silently truncated.
func validatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apperror.ValidationFailed("password",
			"password must contain at least one letter and one digit")
	}
	return nil
}

// allDigits reports whether s is exactly n ASCII digits.
func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

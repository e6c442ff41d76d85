package auth

import (
	"regexp"
	"strings"
	"unicode"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError is one field-level validation failure, shaped like the auth
// service's own details entries so clients render both identically.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateCredentials runs the client-side checks that must block a request
// before any network call is made.
func ValidateCredentials(email, password string) []FieldError {
	var details []FieldError
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		details = append(details, FieldError{Field: "email", Message: "enter a valid email address"})
	}
	details = append(details, validatePassword(password)...)
	return details
}

// ValidateSignup extends credential checks with the profile fields.
func ValidateSignup(email, password, firstName, lastName string) []FieldError {
	details := ValidateCredentials(email, password)
	if strings.TrimSpace(firstName) == "" {
		details = append(details, FieldError{Field: "firstName", Message: "first name is required"})
	}
	if strings.TrimSpace(lastName) == "" {
		details = append(details, FieldError{Field: "lastName", Message: "last name is required"})
	}
	return details
}

func validatePassword(password string) []FieldError {
	var details []FieldError
	if len(password) < minPasswordLength {
		details = append(details, FieldError{Field: "password", Message: "password must be at least 8 characters"})
		return details
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
		details = append(details, FieldError{Field: "password", Message: "password must contain letters and numbers"})
	}
	return details
}

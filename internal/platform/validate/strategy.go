// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// # Strategies

// Kind names a registered validation strategy.
type Kind string

const (
	KindEmail    Kind = "email"
	KindPassword Kind = "password"
	KindName     Kind = "name"
	KindPhone    Kind = "phone"
)

// Result is the uniform outcome of every strategy.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Func validates a single raw value.
type Func func(value string) Result

const (
	maxEmailLength    = 254
	minPasswordLength = 8
	maxPasswordLength = 128
	minNameLength     = 2
	maxNameLength     = 50
	passwordSpecials  = `!@#$%^&*(),.?":{}|<>`
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nameRegex  = regexp.MustCompile(`^[\p{L}\s'-]+$`)
	phoneRegex = regexp.MustCompile(`^[+]?[\d\s\-()]{8,15}$`)
)

// strategies is the dispatch table consulted by [Check].
var strategies = map[Kind]Func{
	KindEmail:    Email,
	KindPassword: Password,
	KindName:     Name,
	KindPhone:    Phone,
}

// Check dispatches value to the strategy registered for kind.
// An unknown kind is itself a failure so typos never pass silently.
func Check(kind Kind, value string) Result {
	strategy, found := strategies[kind]
	if !found {
		return fail(fmt.Sprintf("Unknown validation kind %q", kind))
	}
	return strategy(value)
}

// Email requires a plausible address of at most 254 characters.
func Email(value string) Result {
	if value == "" {
		return fail("Email is required")
	}

	var errs []string
	if !emailRegex.MatchString(value) {
		errs = append(errs, "Email format is invalid")
	}
	if len(value) > maxEmailLength {
		errs = append(errs, "Email is too long")
	}
	return collect(errs)
}

// Password enforces length and character-class rules.
func Password(value string) Result {
	if value == "" {
		return fail("Password is required")
	}

	var errs []string
	length := utf8.RuneCountInString(value)
	if length < minPasswordLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if length > maxPasswordLength {
		errs = append(errs, "Password is too long")
	}
	if !strings.ContainsFunc(value, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = append(errs, "Password must contain an uppercase letter")
	}
	if !strings.ContainsFunc(value, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = append(errs, "Password must contain a lowercase letter")
	}
	if !strings.ContainsFunc(value, unicode.IsDigit) {
		errs = append(errs, "Password must contain a digit")
	}
	if !strings.ContainsAny(value, passwordSpecials) {
		errs = append(errs, "Password must contain a special character")
	}
	return collect(errs)
}

// Name accepts letters of any script, spaces, hyphens and apostrophes.
// The value is trimmed and NFC-normalized first so composed and decomposed
// Cyrillic input count the same.
func Name(value string) Result {
	trimmed := NormalizeName(value)
	if trimmed == "" {
		return fail("Name is required")
	}

	var errs []string
	length := utf8.RuneCountInString(trimmed)
	if length < minNameLength {
		errs = append(errs, fmt.Sprintf("Name must be at least %d characters", minNameLength))
	}
	if length > maxNameLength {
		errs = append(errs, "Name is too long")
	}
	if !nameRegex.MatchString(trimmed) {
		errs = append(errs, "Name may only contain letters, spaces, hyphens and apostrophes")
	}
	return collect(errs)
}

// Phone is optional; a non-blank value must look like a phone number.
func Phone(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Result{Valid: true}
	}
	if !phoneRegex.MatchString(trimmed) {
		return fail("Phone number format is invalid")
	}
	return Result{Valid: true}
}

// NormalizeName trims surrounding space and applies Unicode NFC.
func NormalizeName(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// # Generic Rules

// Rules describes an ad-hoc field constraint set.
type Rules struct {
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Custom    func(value string) bool
}

// Generic builds a strategy from [Rules]. Optional empty values pass.
func Generic(fieldName string, rules Rules) Func {
	return func(value string) Result {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			if rules.Required {
				return fail(fieldName + " is required")
			}
			return Result{Valid: true}
		}

		var errs []string
		length := utf8.RuneCountInString(trimmed)
		if rules.MinLength > 0 && length < rules.MinLength {
			errs = append(errs, fmt.Sprintf("%s must be at least %d characters", fieldName, rules.MinLength))
		}
		if rules.MaxLength > 0 && length > rules.MaxLength {
			errs = append(errs, fmt.Sprintf("%s must be at most %d characters", fieldName, rules.MaxLength))
		}
		if rules.Pattern != nil && !rules.Pattern.MatchString(trimmed) {
			errs = append(errs, fieldName+" format is invalid")
		}
		if rules.Custom != nil && !rules.Custom(trimmed) {
			errs = append(errs, fieldName+" is invalid")
		}
		return collect(errs)
	}
}

func fail(message string) Result {
	return Result{Valid: false, Errors: []string{message}}
}

func collect(errs []string) Result {
	return Result{Valid: len(errs) == 0, Errors: errs}
}

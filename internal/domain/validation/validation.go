// Package validation checks customer form fields. Each check is a pure
// function of a field kind and a string value, so callers may re-run it on
// every keystroke or on submit.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the declared shape of a form field
type Kind int

const (
	KindText       Kind = iota // free text; only the required check applies
	KindEmail                  // local@domain.tld
	KindPhone                  // digits with optional +, after separators are stripped
	KindPostalCode             // 5-digit ZIP or ZIP+4
)

// Field describes one form input
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
}

// Result is the outcome of validating one field
type Result struct {
	Valid  bool
	Reason string
}

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	postalPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phoneNoise    = regexp.MustCompile(`[\s\-()]`)
)

// tag names registered on the validator
const (
	tagEmail  = "storefront_email"
	tagPhone  = "storefront_phone"
	tagPostal = "storefront_postal"
)

// Validator wraps a go-playground validator carrying the storefront rules
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the storefront tags registered
func New() *Validator {
	v := validator.New()
	Register(v)
	return &Validator{v: v}
}

// Register adds the storefront tags to an existing validator, such as the
// one gin uses for request binding.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation(tagEmail, func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	_ = v.RegisterValidation(tagPhone, func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	_ = v.RegisterValidation(tagPostal, func(fl validator.FieldLevel) bool {
		return IsPostalCode(fl.Field().String())
	})
}

// IsEmail reports whether s has the local@domain.tld shape
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizePhone strips spaces, hyphens and parentheses, then drops a single
// leading local trunk zero ("071..." becomes "71...").
func NormalizePhone(s string) string {
	s = phoneNoise.ReplaceAllString(s, "")
	return strings.TrimPrefix(s, "0")
}

// IsPhone reports whether s is a plausible phone number
func IsPhone(s string) bool {
	return phonePattern.MatchString(NormalizePhone(s))
}

// IsPostalCode reports whether s is a 5 digit code with an optional +4 suffix
func IsPostalCode(s string) bool {
	return postalPattern.MatchString(s)
}

func (k Kind) tag() string {
	switch k {
	case KindEmail:
		return tagEmail
	case KindPhone:
		return tagPhone
	case KindPostalCode:
		return tagPostal
	default:
		return ""
	}
}

// ValidateField checks value against the field's declaration. The required
// check runs first; shape checks only run on non-empty values.
func (val *Validator) ValidateField(f Field, value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if f.Required {
			return Result{Reason: f.label() + " is required"}
		}
		return Result{Valid: true}
	}

	tag := f.Kind.tag()
	if tag == "" {
		return Result{Valid: true}
	}
	if err := val.v.Var(trimmed, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Result{Reason: messageForTag(verrs[0].Tag())}
		}
		return Result{Reason: err.Error()}
	}
	return Result{Valid: true}
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func messageForTag(tag string) string {
	switch tag {
	case tagEmail:
		return "Please enter a valid email address"
	case tagPhone:
		return "Please enter a valid phone number"
	case tagPostal:
		return "Please enter a valid ZIP code"
	default:
		return "Invalid value"
	}
}

// Package validation checks decoded request payloads against their
// `validate` struct tags and reports per-field English messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

// FieldError describes one rejected field, keyed by its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the set of field problems found in one payload.
// It matches common.ErrInvalidInput with errors.Is.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) Unwrap() error { return common.ErrInvalidInput }

// Validator wraps a configured validator.Validate and its English translator.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

// New registers the default English messages plus the "password" rule.
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")

	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return PasswordProblem(fl.Field().String()) == ""
	}); err != nil {
		return nil, fmt.Errorf("register password rule: %w", err)
	}

	if err := v.RegisterTranslation("password", trans,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			s, _ := fe.Value().(string)
			return PasswordProblem(s)
		},
	); err != nil {
		return nil, fmt.Errorf("register password message: %w", err)
	}

	if err := v.RegisterTranslation("email", trans,
		func(t ut.Translator) error { return t.Add("email", "Invalid email format", true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("email")
			return msg
		},
	); err != nil {
		return nil, fmt.Errorf("register email message: %w", err)
	}

	return &Validator{v: v, trans: trans}, nil
}

// Struct validates s. Rule violations come back as Errors; anything else
// (s is not a struct) is wrapped in common.ErrInvalidInput.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fe.Translate(v.trans)})
	}
	return out
}

// PasswordProblem returns the first password policy violation in p, or ""
// when p is acceptable.
func PasswordProblem(p string) string {
	if len(p) < 8 {
		return "Password must be at least 8 characters"
	}
	if len(p) > maxPasswordBytes {
		return "Password must be at most 72 bytes"
	}

	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsNumber(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	switch {
	case !lower:
		return "Password must contain a lowercase letter"
	case !upper:
		return "Password must contain an uppercase letter"
	case !digit:
		return "Password must contain a number"
	case !special:
		return "Password must contain a special character"
	}
	return ""
}

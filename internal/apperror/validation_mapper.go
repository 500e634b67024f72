package apperror

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// formatFieldName turns a json field name into a label: hireDate -> Hire Date.
func formatFieldName(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	caser := cases.Title(language.English, cases.NoLower)
	return caser.String(strings.ReplaceAll(b.String(), "_", " "))
}

// MapValidationError converts the first validator failure into a
// VALIDATION_ERROR with a readable message.
func MapValidationError(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		e := errs[0]
		field := formatFieldName(e.Field())

		switch e.Tag() {
		case "required":
			return RequiredField(field)
		case "max":
			return Validation(field + " must be at most " + e.Param() + " characters")
		case "oneof":
			return Validation(field + " must be one of: " + e.Param())
		default:
			return InvalidField(field)
		}
	}

	return Validation("Invalid input")
}

package library

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("isbn_len", validateISBNLength); err != nil {
		panic(fmt.Sprintf("register isbn_len validation: %v", err))
	}
}

// validateISBNLength mirrors the form's 10–13 character gate. Checksums are
// the server's business.
func validateISBNLength(fl validator.FieldLevel) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(fl.Field().String()))
	return n >= 10 && n <= 13
}

// FieldError is one failed form rule.
type FieldError struct {
	Field   string
	Message string
}

// ValidateForm runs the client-side gate over f. A nil result means the form
// may be submitted.
func ValidateForm(f BookForm) []FieldError {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "form", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldLabel(fe.Field()), Message: fieldMessage(fe)})
	}
	return out
}

func fieldLabel(name string) string {
	switch name {
	case "ISBN":
		return "isbn"
	case "PublishedDate":
		return "published_date"
	case "AvailableCopies":
		return "available_copies"
	default:
		return strings.ToLower(name)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "AvailableCopies" {
			return "must be at least 1"
		}
		return "is required"
	case "isbn_len":
		return "must be 10 to 13 characters"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return "is invalid"
	}
}

// FormFromBook copies a record into a form buffer.
func FormFromBook(b Book) BookForm {
	return BookForm{
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		ISBN:            b.ISBN,
		PublishedDate:   b.PublishedDate,
		AvailableCopies: b.AvailableCopies,
	}
}

package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateForm(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*BookForm)
		wantFields []string
	}{
		{
			name:   "valid form",
			mutate: func(*BookForm) {},
		},
		{
			name:       "empty form",
			mutate:     func(f *BookForm) { *f = BookForm{} },
			wantFields: []string{"title", "author", "category", "isbn", "published_date", "available_copies"},
		},
		{
			name:       "isbn too short",
			mutate:     func(f *BookForm) { f.ISBN = "123456789" },
			wantFields: []string{"isbn"},
		},
		{
			name:       "isbn too long",
			mutate:     func(f *BookForm) { f.ISBN = "12345678901234" },
			wantFields: []string{"isbn"},
		},
		{
			name:   "ten character isbn",
			mutate: func(f *BookForm) { f.ISBN = "0441013597" },
		},
		{
			name:       "negative copies",
			mutate:     func(f *BookForm) { f.AvailableCopies = -2 },
			wantFields: []string{"available_copies"},
		},
		{
			name:       "malformed date",
			mutate:     func(f *BookForm) { f.PublishedDate = "01/08/1965" },
			wantFields: []string{"published_date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			errs := ValidateForm(f)

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
				assert.NotEmpty(t, e.Message)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestFormatFieldErrors(t *testing.T) {
	msg := formatFieldErrors([]FieldError{
		{Field: "isbn", Message: "must be 10 to 13 characters"},
		{Field: "available_copies", Message: "must be at least 1"},
	})
	assert.Equal(t, "Please fix the following fields:\n  - isbn must be 10 to 13 characters\n  - available_copies must be at least 1", msg)
}

func TestISBNRuleRegistered(t *testing.T) {
	assert.NoError(t, validate.Var("0441013597", "isbn_len"))
	assert.Error(t, validate.Var("123", "isbn_len"))
}

// Package validation wraps go-playground/validator with the tags used by
// request bodies and profile updates.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/creditsea/creditsea/internal/models"
	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar date format accepted for dob.
const DateLayout = "2006-01-02"

var rePAN = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

func New() *Validator {
	cv := &Validator{v: validator.New(), now: time.Now}

	// report json names, not Go field names
	cv.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = cv.v.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return rePAN.MatchString(fl.Field().String())
	})
	_ = cv.v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		return models.Gender(fl.Field().String()).Valid()
	})
	_ = cv.v.RegisterValidation("dob", func(fl validator.FieldLevel) bool {
		dob, err := ParseDate(fl.Field().String())
		return err == nil && !dob.After(cv.now())
	})

	return cv
}

func (cv *Validator) Validate(i any) error { return cv.v.Struct(i) }

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ToFieldErrors maps validator.ValidationErrors to readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "email":
			out = append(out, FieldError{Field: field, Message: "must be a valid email address"})
		case "pan":
			out = append(out, FieldError{Field: field, Message: "must be a valid PAN (e.g. ABCDE1234F)"})
		case "gender":
			out = append(out, FieldError{Field: field, Message: "must be one of Male, Female, Other"})
		case "dob":
			out = append(out, FieldError{Field: field, Message: "must be a past date in YYYY-MM-DD format"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}

// Summary joins field errors into a single client message.
func Summary(err error) string {
	fields := ToFieldErrors(err)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}

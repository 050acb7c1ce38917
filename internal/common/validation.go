package common

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationRule checks one value. A nil result means the value passed.
type ValidationRule func(fieldName string, value any) *ValidationError

// Validator collects rule failures across fields:
//
//	err := common.NewValidator().
//		Field("invoice_number", req.InvoiceNumber, common.Required, common.MaxLen(64)).
//		Field("items", len(req.Items), common.MinCount(1)).
//		Error()
type Validator struct {
	failures []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs rules against value in order and keeps every failure.
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if f := rule(fieldName, value); f != nil {
			v.failures = append(v.failures, *f)
		}
	}
	return v
}

// Failures returns the collected failures in the order they were found.
func (v *Validator) Failures() []ValidationError {
	return v.failures
}

// Error returns nil when every rule passed, otherwise a VALIDATION_ERROR
// listing the failures.
func (v *Validator) Error() error {
	if len(v.failures) == 0 {
		return nil
	}
	msgs := make([]string, len(v.failures))
	for i, f := range v.failures {
		msgs[i] = f.Error()
	}
	return ValidationFailed(strings.Join(msgs, "; "))
}

func stringValue(value any) (string, bool) {
	switch s := value.(type) {
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	}
	return "", false
}

// Required rejects nil and blank strings. Other types pass.
func Required(fieldName string, value any) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	if p, ok := value.(*string); ok && p == nil {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	if s, ok := stringValue(value); ok && strings.TrimSpace(s) == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// MaxLen limits a string to max runes.
func MaxLen(max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		s, ok := stringValue(value)
		if !ok || utf8.RuneCountInString(s) <= max {
			return nil
		}
		return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
}

// PositiveDecimal rejects zero, negative and non-decimal values.
func PositiveDecimal(fieldName string, value any) *ValidationError {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a decimal"}
	}
	if !d.IsPositive() {
		return &ValidationError{Field: fieldName, Value: d.String(), Message: "must be greater than zero"}
	}
	return nil
}

// ISODate accepts YYYY-MM-DD strings. Empty values are left to Required.
func ISODate(fieldName string, value any) *ValidationError {
	s, ok := stringValue(value)
	if !ok || s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a YYYY-MM-DD date"}
	}
	return nil
}

// MinCount takes a length and requires at least min.
func MinCount(min int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		n, ok := value.(int)
		if !ok || n < min {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must contain at least %d entries", min)}
		}
		return nil
	}
}

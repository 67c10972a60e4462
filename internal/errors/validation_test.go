package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("roll_no", "is required", "")

	if err.Field != "roll_no" {
		t.Errorf("Expected field to be 'roll_no', got '%s'", err.Field)
	}

	if err.Message != "is required" {
		t.Errorf("Expected message to be 'is required', got '%s'", err.Message)
	}

	expected := "validation error on field 'roll_no': is required"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("answer", "is ambiguous", nil))
	expected := "validation failed: answer is ambiguous"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("choices", "must not be empty", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("minutes", "must be a positive number of minutes", "extension_minutes", -5)

	if err.Rule != "extension_minutes" {
		t.Errorf("Expected rule to be 'extension_minutes', got '%s'", err.Rule)
	}

	if err.Field != "minutes" {
		t.Errorf("Expected field to be 'minutes', got '%s'", err.Field)
	}
}

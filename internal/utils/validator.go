package utils

import (
	"reflect"
	"strings"

	apperrors "github.com/TechFest-2026/exam-session-service/internal/errors"
	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground struct validation with the custom rules the
// session engine needs.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the shared validator instance.
func NewValidator() *Validator {
	validate := validator.New()
	registerCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate validates struct tags and converts failures into the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if converted := apperrors.ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("finish_reason", validateFinishReason)
	validate.RegisterValidation("violation_kind", validateViolationKind)

	// Report json field names in error messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.QuestionChoice, models.QuestionFreeText:
		return true
	}
	return false
}

// Only candidate-facing reasons are valid on the wire; violation_threshold
// and admin_forced are set server-side.
func validateFinishReason(fl validator.FieldLevel) bool {
	switch models.FinishReason(fl.Field().String()) {
	case models.FinishManual, models.FinishTimeout:
		return true
	}
	return false
}

func validateViolationKind(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

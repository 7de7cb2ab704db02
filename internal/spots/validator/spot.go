package validator

import (
	"errors"
	"fmt"
	"parkd/pkg/logger"
	"parkd/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SpotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSpotValidator(log *logger.Logger) *SpotValidator {
	return &SpotValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *SpotValidator) ValidateSpot(spot *model.Spot) error {
	err := v.validate.Struct(spot)
	if err == nil {
		return nil
	}

	var invalidErr *validator.InvalidValidationError
	if errors.As(err, &invalidErr) {
		v.logger.Error("Invalid validation target", "error", err)
		return fmt.Errorf("internal validation error: %w", err)
	}

	var validationErrors ValidationErrors
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Message: messageForTag(fe),
			})
		}
	}

	return validationErrors
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "mongodb":
		return "must be a valid object ID"
	default:
		return fmt.Sprintf("failed validation on '%s'", fe.Tag())
	}
}

package validator

import (
	"errors"
	"fmt"
	availerrors "parkd/internal/availability/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/logger"
	"parkd/pkg/model"
	"strings"
	"time"

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

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	return &AvailabilityValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// ParseRequest checks the request shape and returns the canonical day keys
// in request order. The whole batch is rejected on the first bad date; no
// caller sees a partially parsed result.
func (v *AvailabilityValidator) ParseRequest(req *model.AvailabilityRequest, maxBatch int) ([]time.Time, error) {
	if err := v.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			var validationErrors ValidationErrors
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, ValidationError{
					Field:   fe.Field(),
					Message: messageForTag(fe),
				})
			}
			return nil, validationErrors
		}
		v.logger.Error("Invalid validation target", "error", err)
		return nil, fmt.Errorf("internal validation error: %w", err)
	}

	if maxBatch > 0 && len(req.Dates) > maxBatch {
		return nil, fmt.Errorf("%w: %d dates, maximum is %d", availerrors.ErrBatchTooLarge, len(req.Dates), maxBatch)
	}

	seen := make(map[time.Time]struct{}, len(req.Dates))
	days := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		day, err := calendar.ParseDayKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", calendar.ErrInvalidDate, raw)
		}
		if _, dup := seen[day]; dup {
			return nil, fmt.Errorf("%w: %s", availerrors.ErrDuplicateDate, calendar.FormatDayKey(day))
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}

	return days, nil
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed validation on '%s'", fe.Tag())
	}
}

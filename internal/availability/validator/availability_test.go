package validator

import (
	"errors"
	"testing"
	"time"

	availerrors "parkd/internal/availability/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/logger"
	"parkd/pkg/model"
)

func newValidator() *AvailabilityValidator {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewAvailabilityValidator(log)
}

func TestParseRequest(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name     string
		dates    []string
		maxBatch int
		wantErr  error
		wantLen  int
	}{
		{
			name:     "single day string",
			dates:    []string{"2024-06-10"},
			maxBatch: 90,
			wantLen:  1,
		},
		{
			name:     "timestamp collapses to day key",
			dates:    []string{"2024-06-10T15:04:05Z"},
			maxBatch: 90,
			wantLen:  1,
		},
		{
			name:     "multiple days keep order",
			dates:    []string{"2024-06-12", "2024-06-10", "2024-06-11"},
			maxBatch: 90,
			wantLen:  3,
		},
		{
			name:     "duplicate day strings",
			dates:    []string{"2024-06-10", "2024-06-10"},
			maxBatch: 90,
			wantErr:  availerrors.ErrDuplicateDate,
		},
		{
			name:     "timestamp duplicating a day string",
			dates:    []string{"2024-06-10", "2024-06-10T23:00:00Z"},
			maxBatch: 90,
			wantErr:  availerrors.ErrDuplicateDate,
		},
		{
			name:     "malformed date",
			dates:    []string{"June 10th, 2024"},
			maxBatch: 90,
			wantErr:  calendar.ErrInvalidDate,
		},
		{
			name:     "over batch limit",
			dates:    []string{"2024-06-10", "2024-06-11", "2024-06-12"},
			maxBatch: 2,
			wantErr:  availerrors.ErrBatchTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := v.ParseRequest(&model.AvailabilityRequest{Dates: tt.dates, Released: true}, tt.maxBatch)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(days) != tt.wantLen {
				t.Fatalf("expected %d days, got %d", tt.wantLen, len(days))
			}
			for _, day := range days {
				if !day.Equal(calendar.DayKey(day)) {
					t.Errorf("day %v is not a canonical day key", day)
				}
			}
		})
	}
}

func TestParseRequestEmptyDates(t *testing.T) {
	v := newValidator()

	_, err := v.ParseRequest(&model.AvailabilityRequest{Dates: nil, Released: true}, 90)
	var validationErrors ValidationErrors
	if !errors.As(err, &validationErrors) {
		t.Fatalf("expected field validation errors, got %v", err)
	}
}

func TestParseRequestOrderPreserved(t *testing.T) {
	v := newValidator()

	days, err := v.ParseRequest(&model.AvailabilityRequest{
		Dates:    []string{"2024-06-12", "2024-06-10"},
		Released: true,
	}, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, _ := time.Parse("2006-01-02", "2024-06-12")
	if !days[0].Equal(calendar.DayKey(first)) {
		t.Errorf("expected request order preserved, got %v first", days[0])
	}
}

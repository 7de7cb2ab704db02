package service

import (
	"context"
	"errors"
	"time"

	availerrors "parkd/internal/availability/errors"
	"parkd/internal/availability/repository"
	"parkd/internal/availability/validator"
	spotserrors "parkd/internal/spots/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/config"
	apperrors "parkd/pkg/errors"
	"parkd/pkg/model"
)

// SpotFinder is the slice of the spot registry the ledger needs: ownership
// checks only, no mutation.
type SpotFinder interface {
	FindByID(ctx context.Context, id string) (*model.Spot, error)
}

// ActiveReservationCounter reports how many ACTIVE reservations exist on the
// given days, used to block a holder from reclaiming an already booked day.
type ActiveReservationCounter interface {
	CountActiveOnDates(ctx context.Context, spotID string, dates []time.Time) (int64, error)
}

// Notifier delivers release events to the notification channel. Errors are
// the caller's to log; they never fail the marking request.
type Notifier interface {
	SpotReleased(ctx context.Context, event model.SpotReleasedEvent) error
}

type AvailabilityService interface {
	SetAvailability(ctx context.Context, principal model.Principal, spotID string, req *model.AvailabilityRequest) error
	GetAvailability(ctx context.Context, spotID string, from time.Time) ([]*model.AvailabilityMark, error)
}

type availabilityService struct {
	repo         repository.AvailabilityRepository
	spots        SpotFinder
	reservations ActiveReservationCounter
	notifier     Notifier
	validator    *validator.AvailabilityValidator
	cfg          *config.Config
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	spots SpotFinder,
	reservations ActiveReservationCounter,
	notifier Notifier,
	validator *validator.AvailabilityValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:         repo,
		spots:        spots,
		reservations: reservations,
		notifier:     notifier,
		validator:    validator,
		cfg:          cfg,
	}
}

// SetAvailability validates the whole batch up front and only then writes.
// Checks run in a fixed order: request shape, caller authorization, per-date
// calendar rules, then the reclaim conflict check. A failure at any stage
// rejects the entire batch with no writes.
func (s *availabilityService) SetAvailability(ctx context.Context, principal model.Principal, spotID string, req *model.AvailabilityRequest) error {
	if spotID == "" {
		return apperrors.InvalidInput("Spot ID cannot be empty")
	}

	days, err := s.validator.ParseRequest(req, s.cfg.MaxAvailabilityBatch)
	if err != nil {
		return s.mapParseError(err)
	}

	spot, err := s.spots.FindByID(ctx, spotID)
	if err != nil {
		if errors.Is(err, spotserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Spot", spotID)
		}
		if errors.Is(err, spotserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid spot ID format")
		}
		return apperrors.Internal("Failed to load spot", err)
	}

	switch principal.Role {
	case model.RoleAdmin:
	case model.RoleDirection:
		if spot.AssignedEmployeeID != principal.EmployeeID {
			return apperrors.Forbidden("Spot is not assigned to this employee")
		}
	default:
		return apperrors.Forbidden("Only the spot holder or an admin can mark availability")
	}

	today := calendar.Today()
	for _, day := range days {
		if calendar.IsPast(day, today) {
			return apperrors.Validation("Dates must not be in the past", map[string]any{
				"date": calendar.FormatDayKey(day),
			})
		}
		if !calendar.IsWorkday(day) {
			return apperrors.Validation("Dates must fall on workdays", map[string]any{
				"date": calendar.FormatDayKey(day),
			})
		}
	}

	if !req.Released {
		count, err := s.reservations.CountActiveOnDates(ctx, spotID, days)
		if err != nil {
			return apperrors.Internal("Failed to check reservations for reclaim", err)
		}
		if count > 0 {
			return apperrors.Conflict("Cannot reclaim a day that already has an active reservation")
		}
	}

	released := make(map[time.Time]bool, len(days))
	existing, err := s.repo.FindBySpotDates(ctx, spotID, days)
	if err != nil {
		return apperrors.Internal("Failed to load existing availability marks", err)
	}
	for _, mark := range existing {
		released[calendar.DayKey(mark.Date)] = mark.Released
	}

	var newlyReleased []time.Time
	for _, day := range days {
		mark := &model.AvailabilityMark{
			SpotID:   spotID,
			Date:     day,
			Released: req.Released,
			MarkedBy: principal.EmployeeID,
		}
		if err := s.repo.Upsert(ctx, mark); err != nil {
			s.cfg.Log.Error("Failed to upsert availability mark",
				"spot_id", spotID, "date", calendar.FormatDayKey(day), "error", err)
			return apperrors.Internal("Failed to save availability", err)
		}
		if req.Released && !released[day] {
			newlyReleased = append(newlyReleased, day)
		}
	}

	s.cfg.Log.Info("Availability updated",
		"spot_id", spotID,
		"dates", len(days),
		"released", req.Released,
		"marked_by", principal.EmployeeID,
	)

	if len(newlyReleased) > 0 {
		go s.notifyReleased(spot, principal.EmployeeID, newlyReleased)
	}

	return nil
}

// notifyReleased runs detached from the request. Delivery failures are
// logged and dropped; the marks are already committed.
func (s *availabilityService) notifyReleased(spot *model.Spot, markedBy string, days []time.Time) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	for _, day := range days {
		event := model.SpotReleasedEvent{
			SpotID:     spot.ID,
			SpotNumber: spot.Number,
			SpotZone:   spot.Zone,
			Date:       calendar.FormatDayKey(day),
			MarkedBy:   markedBy,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.notifier.SpotReleased(ctx, event); err != nil {
			s.cfg.Log.Warn("Failed to publish release notification",
				"spot_id", spot.ID, "date", event.Date, "error", err)
		}
	}
}

func (s *availabilityService) GetAvailability(ctx context.Context, spotID string, from time.Time) ([]*model.AvailabilityMark, error) {
	if spotID == "" {
		return nil, apperrors.InvalidInput("Spot ID cannot be empty")
	}

	start := calendar.DayKey(from)
	if today := calendar.Today(); start.Before(today) {
		start = today
	}

	marks, err := s.repo.FindBySpotFrom(ctx, spotID, start)
	if err != nil {
		s.cfg.Log.Error("Failed to list availability marks", "spot_id", spotID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve availability", err)
	}
	return marks, nil
}

func (s *availabilityService) mapParseError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make(map[string]any, len(validationErrors))
		for _, ve := range validationErrors {
			details[ve.Field] = ve.Message
		}
		return apperrors.Validation("Availability request validation failed", details)
	}
	switch {
	case errors.Is(err, availerrors.ErrBatchTooLarge),
		errors.Is(err, availerrors.ErrDuplicateDate):
		return apperrors.Validation(err.Error(), nil)
	case errors.Is(err, calendar.ErrInvalidDate):
		return apperrors.InvalidInput(err.Error())
	default:
		return apperrors.Internal("Availability request validation failed", err)
	}
}

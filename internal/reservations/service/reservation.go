package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	employeesrepo "parkd/internal/employees/repository"
	reservationserrors "parkd/internal/reservations/errors"
	"parkd/internal/reservations/repository"
	"parkd/internal/reservations/validator"
	spotserrors "parkd/internal/spots/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/config"
	apperrors "parkd/pkg/errors"
	"parkd/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ReleaseReader is the slice of the availability ledger the engine needs:
// whether the holder released the requested day.
type ReleaseReader interface {
	FindBySpotDates(ctx context.Context, spotID string, dates []time.Time) ([]*model.AvailabilityMark, error)
}

// SpotFinder resolves spots for existence checks and display fields.
type SpotFinder interface {
	FindByID(ctx context.Context, id string) (*model.Spot, error)
}

// EmployeeFinder resolves the booking employee's display name.
type EmployeeFinder interface {
	FindByID(ctx context.Context, id string) (*model.Employee, error)
}

type ReservationService interface {
	Reserve(ctx context.Context, principal model.Principal, req *model.ReservationRequest) (*model.ReservationDetail, error)
	Cancel(ctx context.Context, principal model.Principal, reservationID string) error
	ListUpcoming(ctx context.Context, principal model.Principal, employeeID string) ([]*model.Reservation, error)
	ListHistory(ctx context.Context, principal model.Principal, employeeID string, includePast bool) ([]*model.Reservation, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.ReservationLockRepository
	releases  ReleaseReader
	spots     SpotFinder
	employees EmployeeFinder
	validator *validator.ReservationValidator
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	releases ReleaseReader,
	spots SpotFinder,
	employees EmployeeFinder,
	validator *validator.ReservationValidator,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		releases:  releases,
		spots:     spots,
		employees: employees,
		validator: validator,
		cfg:       cfg,
	}
}

// Reserve books a released slot for the caller. The release and
// no-active-reservation checks and the insert run inside one transaction;
// the advisory lock narrows the race window up front and the partial unique
// index on (spot_id, date, ACTIVE) catches anything that slips through.
// Exactly one of N concurrent callers for the same slot wins.
func (s *reservationService) Reserve(ctx context.Context, principal model.Principal, req *model.ReservationRequest) (*model.ReservationDetail, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			details := make(map[string]any, len(validationErrors))
			for _, ve := range validationErrors {
				details[ve.Field] = ve.Message
			}
			return nil, apperrors.Validation("Reservation request validation failed", details)
		}
		return nil, apperrors.Internal("Reservation request validation failed", err)
	}

	if principal.Role != model.RoleGeneral {
		return nil, apperrors.Forbidden("Only general employees can reserve a spot")
	}

	day, err := calendar.ParseDayKey(req.Date)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Invalid date: %q", req.Date))
	}
	if calendar.IsPast(day, calendar.Today()) {
		return nil, apperrors.Validation("Date must not be in the past", map[string]any{
			"date": calendar.FormatDayKey(day),
		})
	}
	if !calendar.IsWorkday(day) {
		return nil, apperrors.Validation("Date must fall on a workday", map[string]any{
			"date": calendar.FormatDayKey(day),
		})
	}

	spot, err := s.spots.FindByID(ctx, req.SpotID)
	if err != nil {
		if errors.Is(err, spotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Spot", req.SpotID)
		}
		if errors.Is(err, spotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid spot ID format")
		}
		return nil, apperrors.Internal("Failed to load spot", err)
	}

	employee, err := s.employees.FindByID(ctx, principal.EmployeeID)
	if err != nil {
		if errors.Is(err, employeesrepo.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Employee", principal.EmployeeID)
		}
		return nil, apperrors.Internal("Failed to load employee", err)
	}

	lockID, err := s.acquireSlotLock(ctx, spot.ID, day)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	reservation := &model.Reservation{
		SpotID:     spot.ID,
		EmployeeID: employee.ID,
		Date:       day,
		Status:     model.ReservationActive,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyReleased(sessCtx, spot.ID, day); err != nil {
			return err
		}
		if err := s.verifySlotFree(sessCtx, spot.ID, day); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			if errors.Is(err, reservationserrors.ErrAlreadyReserved) {
				return apperrors.Conflict("This slot already has an active reservation")
			}
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reserve slot",
			"spot_id", spot.ID, "date", calendar.FormatDayKey(day), "employee_id", employee.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created",
		"id", reservation.ID,
		"spot_id", spot.ID,
		"date", calendar.FormatDayKey(day),
		"employee_id", employee.ID,
	)

	return &model.ReservationDetail{
		Reservation:  *reservation,
		SpotNumber:   spot.Number,
		SpotZone:     spot.Zone,
		EmployeeName: employee.Name,
	}, nil
}

func (s *reservationService) verifyReleased(ctx context.Context, spotID string, day time.Time) error {
	marks, err := s.releases.FindBySpotDates(ctx, spotID, []time.Time{day})
	if err != nil {
		return apperrors.Internal("Failed to check spot release", err)
	}
	for _, mark := range marks {
		if mark.Released {
			return nil
		}
	}
	return apperrors.Conflict("Spot is not released for this day")
}

func (s *reservationService) verifySlotFree(ctx context.Context, spotID string, day time.Time) error {
	_, err := s.repo.FindActiveBySlot(ctx, spotID, day)
	if err == nil {
		return apperrors.Conflict("This slot already has an active reservation")
	}
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return nil
	}
	return apperrors.Internal("Failed to check existing reservations", err)
}

func (s *reservationService) acquireSlotLock(ctx context.Context, spotID string, day time.Time) (string, error) {
	lockID := fmt.Sprintf("reservation_lock_%s_%s", spotID, calendar.FormatDayKey(day))

	lock := &model.ReservationLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.ReservationLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire reservation lock", err)
	}

	return lockID, nil
}

func (s *reservationService) Cancel(ctx context.Context, principal model.Principal, reservationID string) error {
	if reservationID == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Reservation", reservationID)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid reservation ID format")
		}
		return apperrors.Internal("Failed to load reservation", err)
	}

	if reservation.EmployeeID != principal.EmployeeID && !principal.IsAdmin() {
		return apperrors.Forbidden("Only the booking employee or an admin can cancel a reservation")
	}
	if !reservation.Active() {
		return apperrors.Conflict("Reservation is already cancelled")
	}

	cancelledAt := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.repo.Cancel(ctx, reservationID, cancelledAt); err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			// lost a race with another cancel; the slot is already free
			return apperrors.Conflict("Reservation is already cancelled")
		}
		s.cfg.Log.Error("Failed to cancel reservation", "id", reservationID, "error", err)
		return apperrors.Internal("Failed to cancel reservation", err)
	}

	s.cfg.Log.Info("Reservation cancelled",
		"id", reservationID,
		"spot_id", reservation.SpotID,
		"date", calendar.FormatDayKey(reservation.Date),
		"cancelled_by", principal.EmployeeID,
	)
	return nil
}

func (s *reservationService) ListUpcoming(ctx context.Context, principal model.Principal, employeeID string) ([]*model.Reservation, error) {
	if err := s.authorizeListing(principal, employeeID); err != nil {
		return nil, err
	}

	reservations, err := s.repo.FindActiveByEmployeeFrom(ctx, employeeID, calendar.Today())
	if err != nil {
		s.cfg.Log.Error("Failed to list upcoming reservations", "employee_id", employeeID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return reservations, nil
}

func (s *reservationService) ListHistory(ctx context.Context, principal model.Principal, employeeID string, includePast bool) ([]*model.Reservation, error) {
	if err := s.authorizeListing(principal, employeeID); err != nil {
		return nil, err
	}

	var from *time.Time
	if !includePast {
		today := calendar.Today()
		from = &today
	}

	reservations, err := s.repo.FindByEmployee(ctx, employeeID, from)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservation history", "employee_id", employeeID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return reservations, nil
}

func (s *reservationService) authorizeListing(principal model.Principal, employeeID string) error {
	if employeeID == "" {
		return apperrors.InvalidInput("Employee ID cannot be empty")
	}
	if employeeID != principal.EmployeeID && !principal.IsAdmin() {
		return apperrors.Forbidden("Employees can only list their own reservations")
	}
	return nil
}

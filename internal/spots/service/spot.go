package service

import (
	"context"
	"errors"

	employeesrepo "parkd/internal/employees/repository"
	spotserrors "parkd/internal/spots/errors"
	"parkd/internal/spots/repository"
	"parkd/internal/spots/validator"
	"parkd/pkg/config"
	apperrors "parkd/pkg/errors"
	"parkd/pkg/model"
	"parkd/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type SpotService interface {
	Create(ctx context.Context, principal model.Principal, spot *model.Spot) error
	GetByID(ctx context.Context, id string) (*model.Spot, error)
	List(ctx context.Context) ([]*model.Spot, error)
	Assign(ctx context.Context, principal model.Principal, spotID, employeeID string) error
	Unassign(ctx context.Context, principal model.Principal, employeeID string) error
}

type spotService struct {
	repo         repository.SpotRepository
	employeeRepo employeesrepo.EmployeeRepository
	validator    *validator.SpotValidator
	cfg          *config.Config
}

func NewSpotService(
	repo repository.SpotRepository,
	employeeRepo employeesrepo.EmployeeRepository,
	validator *validator.SpotValidator,
	cfg *config.Config,
) SpotService {
	return &spotService{
		repo:         repo,
		employeeRepo: employeeRepo,
		validator:    validator,
		cfg:          cfg,
	}
}

func (s *spotService) Create(ctx context.Context, principal model.Principal, spot *model.Spot) error {
	if !principal.IsAdmin() {
		return apperrors.Forbidden("Only admins can provision spots")
	}

	spot.AssignedEmployeeID = ""
	spot.AssignedName = ""
	if err := s.validator.ValidateSpot(spot); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			details := make(map[string]any, len(validationErrors))
			for _, ve := range validationErrors {
				details[ve.Field] = ve.Message
			}
			return apperrors.Validation("Spot validation failed", details)
		}
		return apperrors.Internal("Spot validation failed", err)
	}

	if err := s.repo.Create(ctx, spot); err != nil {
		if errors.Is(err, spotserrors.ErrDuplicateNumber) {
			return apperrors.Conflict("A spot with this number already exists")
		}
		s.cfg.Log.Error("Failed to create spot", "number", spot.Number, "error", err)
		return apperrors.Internal("Failed to create spot", err)
	}

	s.cfg.Log.Info("Spot created", "id", spot.ID, "number", spot.Number, "zone", spot.Zone)
	return nil
}

func (s *spotService) GetByID(ctx context.Context, id string) (*model.Spot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Spot ID cannot be empty")
	}

	spot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, spotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Spot", id)
		}
		if errors.Is(err, spotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid spot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve spot", err)
	}

	return spot, nil
}

func (s *spotService) List(ctx context.Context) ([]*model.Spot, error) {
	spots, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list spots", "error", err)
		return nil, apperrors.Internal("Failed to retrieve spots", err)
	}
	return spots, nil
}

// Assign binds employee and spot both ways in one transaction. Any prior
// binding on either side is cleared first, so the 1:1 relation never ends
// up with a dangling half.
func (s *spotService) Assign(ctx context.Context, principal model.Principal, spotID, employeeID string) error {
	if !principal.IsAdmin() {
		return apperrors.Forbidden("Only admins can assign spots")
	}
	if spotID == "" || employeeID == "" {
		return apperrors.InvalidInput("Spot ID and employee ID are required")
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		employee, err := s.employeeRepo.FindByID(sessCtx, employeeID)
		if err != nil {
			if errors.Is(err, employeesrepo.ErrNotFound) {
				return apperrors.NotFoundWithID("Employee", employeeID)
			}
			if errors.Is(err, employeesrepo.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid employee ID format")
			}
			return apperrors.Internal("Failed to load employee", err)
		}
		if employee.Role != model.RoleDirection {
			return apperrors.Forbidden("Only direction employees can hold a fixed spot")
		}

		spot, err := s.repo.FindByID(sessCtx, spotID)
		if err != nil {
			if errors.Is(err, spotserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Spot", spotID)
			}
			if errors.Is(err, spotserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid spot ID format")
			}
			return apperrors.Internal("Failed to load spot", err)
		}

		if employee.AssignedSpotID == spot.ID {
			return nil
		}

		if employee.HoldsSpot() {
			if err := s.repo.ClearHolder(sessCtx, employee.AssignedSpotID); err != nil {
				return apperrors.Internal("Failed to release previous spot", err)
			}
		}
		if spot.Assigned() {
			if err := s.employeeRepo.ClearAssignedSpot(sessCtx, spot.AssignedEmployeeID); err != nil {
				return apperrors.Internal("Failed to unbind previous holder", err)
			}
		}

		holderName := sanitizer.NormalizeName(employee.Name)
		if err := s.repo.SetHolder(sessCtx, spot.ID, employee.ID, holderName); err != nil {
			return apperrors.Internal("Failed to bind spot to employee", err)
		}
		if err := s.employeeRepo.SetAssignedSpot(sessCtx, employee.ID, spot.ID); err != nil {
			return apperrors.Internal("Failed to bind employee to spot", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to assign spot", "spot_id", spotID, "employee_id", employeeID, "error", err)
		return err
	}

	s.cfg.Log.Info("Spot assigned", "spot_id", spotID, "employee_id", employeeID)
	return nil
}

func (s *spotService) Unassign(ctx context.Context, principal model.Principal, employeeID string) error {
	if !principal.IsAdmin() {
		return apperrors.Forbidden("Only admins can unassign spots")
	}
	if employeeID == "" {
		return apperrors.InvalidInput("Employee ID is required")
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		employee, err := s.employeeRepo.FindByID(sessCtx, employeeID)
		if err != nil {
			if errors.Is(err, employeesrepo.ErrNotFound) {
				return apperrors.NotFoundWithID("Employee", employeeID)
			}
			if errors.Is(err, employeesrepo.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid employee ID format")
			}
			return apperrors.Internal("Failed to load employee", err)
		}
		if !employee.HoldsSpot() {
			return apperrors.Conflict("Employee has no assigned spot")
		}

		if err := s.repo.ClearHolder(sessCtx, employee.AssignedSpotID); err != nil {
			if errors.Is(err, spotserrors.ErrNotFound) {
				// the back-reference points at a missing spot; clearing the
				// employee side below restores consistency
				s.cfg.Log.Warn("Assigned spot missing during unassign",
					"employee_id", employeeID, "spot_id", employee.AssignedSpotID)
			} else {
				return apperrors.Internal("Failed to clear spot holder", err)
			}
		}
		if err := s.employeeRepo.ClearAssignedSpot(sessCtx, employee.ID); err != nil {
			return apperrors.Internal("Failed to clear employee assignment", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to unassign spot", "employee_id", employeeID, "error", err)
		return err
	}

	s.cfg.Log.Info("Spot unassigned", "employee_id", employeeID)
	return nil
}

package service

import (
	"context"
	"sort"
	"time"

	"parkd/pkg/calendar"
	"parkd/pkg/config"
	apperrors "parkd/pkg/errors"
	"parkd/pkg/model"
)

// ReleaseReader lists released marks from the availability ledger.
type ReleaseReader interface {
	FindReleasedOnDate(ctx context.Context, date time.Time) ([]*model.AvailabilityMark, error)
	FindReleasedInRange(ctx context.Context, from, to time.Time) ([]*model.AvailabilityMark, error)
}

// ActiveReservationReader lists active reservations from the engine.
type ActiveReservationReader interface {
	FindActiveOnDate(ctx context.Context, date time.Time) ([]*model.Reservation, error)
	FindActiveInRange(ctx context.Context, from, to time.Time) ([]*model.Reservation, error)
}

// SpotResolver turns spot IDs into full records, ordered by spot number.
type SpotResolver interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.Spot, error)
}

type OverviewService interface {
	AvailableSpotsOnDate(ctx context.Context, date time.Time) ([]*model.Spot, error)
	DaysWithAvailabilityInRange(ctx context.Context, start, end time.Time) ([]string, error)
}

type overviewService struct {
	releases     ReleaseReader
	reservations ActiveReservationReader
	spots        SpotResolver
	cfg          *config.Config
}

func NewOverviewService(
	releases ReleaseReader,
	reservations ActiveReservationReader,
	spots SpotResolver,
	cfg *config.Config,
) OverviewService {
	return &overviewService{
		releases:     releases,
		reservations: reservations,
		spots:        spots,
		cfg:          cfg,
	}
}

// AvailableSpotsOnDate recomputes the projection from live state on every
// call: spots released for the day minus spots with an active reservation.
func (s *overviewService) AvailableSpotsOnDate(ctx context.Context, date time.Time) ([]*model.Spot, error) {
	day := calendar.DayKey(date)

	marks, err := s.releases.FindReleasedOnDate(ctx, day)
	if err != nil {
		s.cfg.Log.Error("Failed to load released marks", "date", calendar.FormatDayKey(day), "error", err)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	reservations, err := s.reservations.FindActiveOnDate(ctx, day)
	if err != nil {
		s.cfg.Log.Error("Failed to load active reservations", "date", calendar.FormatDayKey(day), "error", err)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	booked := make(map[string]struct{}, len(reservations))
	for _, r := range reservations {
		booked[r.SpotID] = struct{}{}
	}

	ids := make([]string, 0, len(marks))
	for _, mark := range marks {
		if _, taken := booked[mark.SpotID]; !taken {
			ids = append(ids, mark.SpotID)
		}
	}
	if len(ids) == 0 {
		return []*model.Spot{}, nil
	}

	spots, err := s.spots.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve available spots", "date", calendar.FormatDayKey(day), "error", err)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	sort.Slice(spots, func(i, j int) bool { return spots[i].Number < spots[j].Number })
	return spots, nil
}

// DaysWithAvailabilityInRange groups marks and reservations by day so the
// cost stays linear in the rows scanned, not days times spots.
func (s *overviewService) DaysWithAvailabilityInRange(ctx context.Context, start, end time.Time) ([]string, error) {
	from, to := calendar.DayKey(start), calendar.DayKey(end)
	if to.Before(from) {
		return nil, apperrors.InvalidInput("End date must not precede start date")
	}

	marks, err := s.releases.FindReleasedInRange(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to load released marks in range", "error", err)
		return nil, apperrors.Internal("Failed to compute available days", err)
	}

	reservations, err := s.reservations.FindActiveInRange(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to load active reservations in range", "error", err)
		return nil, apperrors.Internal("Failed to compute available days", err)
	}

	bookedByDay := make(map[string]map[string]struct{})
	for _, r := range reservations {
		day := calendar.FormatDayKey(r.Date)
		if bookedByDay[day] == nil {
			bookedByDay[day] = make(map[string]struct{})
		}
		bookedByDay[day][r.SpotID] = struct{}{}
	}

	available := make(map[string]struct{})
	for _, mark := range marks {
		day := calendar.FormatDayKey(mark.Date)
		if _, taken := bookedByDay[day][mark.SpotID]; !taken {
			available[day] = struct{}{}
		}
	}

	days := make([]string, 0, len(available))
	for day := range available {
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

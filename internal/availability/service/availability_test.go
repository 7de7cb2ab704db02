package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"parkd/internal/availability/validator"
	spotserrors "parkd/internal/spots/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/config"
	apperrors "parkd/pkg/errors"
	"parkd/pkg/logger"
	"parkd/pkg/model"
)

const (
	spotID   = "665f1d2e8b4c2a0001aa0001"
	holderID = "665f1d2e8b4c2a0001bb0001"
)

type mockAvailabilityRepo struct {
	mu      sync.Mutex
	marks   map[string]*model.AvailabilityMark
	upserts int
	failOn  string
}

func newMockAvailabilityRepo() *mockAvailabilityRepo {
	return &mockAvailabilityRepo{marks: make(map[string]*model.AvailabilityMark)}
}

func markKey(spotID string, day time.Time) string {
	return spotID + "|" + calendar.FormatDayKey(day)
}

func (m *mockAvailabilityRepo) Upsert(ctx context.Context, mark *model.AvailabilityMark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := markKey(mark.SpotID, mark.Date)
	if m.failOn != "" && m.failOn == calendar.FormatDayKey(mark.Date) {
		return fmt.Errorf("write failed for %s", key)
	}
	m.upserts++
	copied := *mark
	m.marks[key] = &copied
	return nil
}

func (m *mockAvailabilityRepo) FindBySpotDates(ctx context.Context, spotID string, dates []time.Time) ([]*model.AvailabilityMark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AvailabilityMark
	for _, d := range dates {
		if mark, ok := m.marks[markKey(spotID, d)]; ok {
			out = append(out, mark)
		}
	}
	return out, nil
}

func (m *mockAvailabilityRepo) FindBySpotFrom(ctx context.Context, spotID string, from time.Time) ([]*model.AvailabilityMark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AvailabilityMark
	for _, mark := range m.marks {
		if mark.SpotID == spotID && !mark.Date.Before(from) {
			out = append(out, mark)
		}
	}
	return out, nil
}

func (m *mockAvailabilityRepo) FindReleasedOnDate(ctx context.Context, date time.Time) ([]*model.AvailabilityMark, error) {
	return nil, nil
}

func (m *mockAvailabilityRepo) FindReleasedInRange(ctx context.Context, from, to time.Time) ([]*model.AvailabilityMark, error) {
	return nil, nil
}

type stubSpotFinder struct {
	spot *model.Spot
	err  error
}

func (s *stubSpotFinder) FindByID(ctx context.Context, id string) (*model.Spot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.spot, nil
}

type stubReservationCounter struct {
	count int64
}

func (s *stubReservationCounter) CountActiveOnDates(ctx context.Context, spotID string, dates []time.Time) (int64, error) {
	return s.count, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.SpotReleasedEvent
	done   chan struct{}
	want   int
}

func newRecordingNotifier(want int) *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}), want: want}
}

func (n *recordingNotifier) SpotReleased(ctx context.Context, event model.SpotReleasedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if len(n.events) == n.want {
		close(n.done)
	}
	return nil
}

func (n *recordingNotifier) wait(t *testing.T) []model.SpotReleasedEvent {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %d notification(s)", n.want)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json", Service: "availability-test"})
	return &config.Config{
		Log:                  log,
		MaxAvailabilityBatch: 90,
		WriteTimeout:         2 * time.Second,
	}
}

func holderSpot() *model.Spot {
	return &model.Spot{
		ID:                 spotID,
		Number:             17,
		Zone:               model.ZoneUnderground,
		AssignedEmployeeID: holderID,
		AssignedName:       "Dana Levi",
	}
}

func newAvailabilityService(t *testing.T, repo *mockAvailabilityRepo, spots SpotFinder, reservations ActiveReservationCounter, notifier Notifier) AvailabilityService {
	t.Helper()
	cfg := testConfig(t)
	return NewAvailabilityService(repo, spots, reservations, notifier, validator.NewAvailabilityValidator(cfg.Log), cfg)
}

// nextWorkdays returns n future workdays as day strings.
func nextWorkdays(n int) []string {
	var out []string
	day := calendar.Today().AddDate(0, 0, 1)
	for len(out) < n {
		if calendar.IsWorkday(day) {
			out = append(out, calendar.FormatDayKey(day))
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func holder() model.Principal {
	return model.Principal{EmployeeID: holderID, Role: model.RoleDirection}
}

func TestSetAvailabilityReleasesDays(t *testing.T) {
	repo := newMockAvailabilityRepo()
	dates := nextWorkdays(3)
	notifier := newRecordingNotifier(len(dates))
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{}, notifier)

	err := svc.SetAvailability(context.Background(), holder(), spotID, &model.AvailabilityRequest{
		Dates:    dates,
		Released: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserts != len(dates) {
		t.Errorf("expected %d upserts, got %d", len(dates), repo.upserts)
	}

	events := notifier.wait(t)
	if len(events) != len(dates) {
		t.Fatalf("expected %d release events, got %d", len(dates), len(events))
	}
	if events[0].SpotID != spotID || events[0].SpotNumber != 17 {
		t.Errorf("unexpected event payload: %+v", events[0])
	}
}

func TestSetAvailabilityIsIdempotent(t *testing.T) {
	repo := newMockAvailabilityRepo()
	dates := nextWorkdays(2)
	notifier := newRecordingNotifier(len(dates))
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{}, notifier)

	req := &model.AvailabilityRequest{Dates: dates, Released: true}
	if err := svc.SetAvailability(context.Background(), holder(), spotID, req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	notifier.wait(t)

	if err := svc.SetAvailability(context.Background(), holder(), spotID, req); err != nil {
		t.Fatalf("second call: %v", err)
	}

	// Second call rewrites the marks but the days were already released, so
	// no further notifications follow.
	time.Sleep(50 * time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != len(dates) {
		t.Errorf("expected %d events after repeat call, got %d", len(dates), len(notifier.events))
	}
}

func TestSetAvailabilityValidationOrder(t *testing.T) {
	pastMonday := "2020-01-06"
	saturday := "2024-12-14"

	tests := []struct {
		name     string
		req      *model.AvailabilityRequest
		caller   model.Principal
		wantCode string
	}{
		{
			name:     "empty dates",
			req:      &model.AvailabilityRequest{Dates: nil, Released: true},
			caller:   holder(),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "duplicate dates",
			req:      &model.AvailabilityRequest{Dates: []string{nextWorkdays(1)[0], nextWorkdays(1)[0]}, Released: true},
			caller:   holder(),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "malformed date",
			req:      &model.AvailabilityRequest{Dates: []string{"June 10th"}, Released: true},
			caller:   holder(),
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name:     "general caller",
			req:      &model.AvailabilityRequest{Dates: nextWorkdays(1), Released: true},
			caller:   model.Principal{EmployeeID: "someone", Role: model.RoleGeneral},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "direction caller for someone else's spot",
			req:      &model.AvailabilityRequest{Dates: nextWorkdays(1), Released: true},
			caller:   model.Principal{EmployeeID: "other-director", Role: model.RoleDirection},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "past date",
			req:      &model.AvailabilityRequest{Dates: []string{pastMonday}, Released: true},
			caller:   holder(),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "weekend date",
			req:      &model.AvailabilityRequest{Dates: []string{saturday}, Released: true},
			caller:   holder(),
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockAvailabilityRepo()
			svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{}, nil)

			err := svc.SetAvailability(context.Background(), tt.caller, spotID, tt.req)
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.Code != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if repo.upserts != 0 {
				t.Errorf("expected no writes on rejected batch, got %d", repo.upserts)
			}
		})
	}
}

func TestSetAvailabilityBatchTooLarge(t *testing.T) {
	repo := newMockAvailabilityRepo()
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{}, nil)

	err := svc.SetAvailability(context.Background(), holder(), spotID, &model.AvailabilityRequest{
		Dates:    nextWorkdays(91),
		Released: true,
	})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetAvailabilityAdminBypassesOwnership(t *testing.T) {
	repo := newMockAvailabilityRepo()
	dates := nextWorkdays(1)
	notifier := newRecordingNotifier(1)
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{}, notifier)

	err := svc.SetAvailability(context.Background(), model.Principal{EmployeeID: "admin-1", Role: model.RoleAdmin}, spotID, &model.AvailabilityRequest{
		Dates:    dates,
		Released: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notifier.wait(t)
}

func TestReclaimBlockedByActiveReservation(t *testing.T) {
	repo := newMockAvailabilityRepo()
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{count: 1}, nil)

	err := svc.SetAvailability(context.Background(), holder(), spotID, &model.AvailabilityRequest{
		Dates:    nextWorkdays(2),
		Released: false,
	})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if repo.upserts != 0 {
		t.Errorf("expected no writes on blocked reclaim, got %d", repo.upserts)
	}
}

func TestReclaimWithoutReservationsSucceeds(t *testing.T) {
	repo := newMockAvailabilityRepo()
	dates := nextWorkdays(1)
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{count: 0}, nil)

	req := &model.AvailabilityRequest{Dates: dates, Released: false}
	if err := svc.SetAvailability(context.Background(), holder(), spotID, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserts != 1 {
		t.Errorf("expected 1 upsert, got %d", repo.upserts)
	}
}

func TestSetAvailabilitySpotNotFound(t *testing.T) {
	svc := newAvailabilityService(t, newMockAvailabilityRepo(), &stubSpotFinder{err: spotserrors.ErrNotFound}, &stubReservationCounter{}, nil)

	err := svc.SetAvailability(context.Background(), holder(), spotID, &model.AvailabilityRequest{
		Dates:    nextWorkdays(1),
		Released: true,
	})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestGetAvailabilityFutureOnly(t *testing.T) {
	repo := newMockAvailabilityRepo()
	past := calendar.Today().AddDate(0, 0, -3)
	future := calendar.Today().AddDate(0, 0, 3)
	for _, d := range []time.Time{past, future} {
		repo.marks[markKey(spotID, d)] = &model.AvailabilityMark{
			SpotID: spotID, Date: d, Released: true, MarkedBy: holderID,
		}
	}
	svc := newAvailabilityService(t, repo, &stubSpotFinder{spot: holderSpot()}, &stubReservationCounter{}, nil)

	marks, err := svc.GetAvailability(context.Background(), spotID, past)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(marks) != 1 {
		t.Fatalf("expected only the future mark, got %d marks", len(marks))
	}
	if !marks[0].Date.Equal(calendar.DayKey(future)) {
		t.Errorf("unexpected mark date: %v", marks[0].Date)
	}
}

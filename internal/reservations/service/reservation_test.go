package service

import (
	"context"
	"sync"
	"testing"
	"time"

	employeesrepo "parkd/internal/employees/repository"
	reservationserrors "parkd/internal/reservations/errors"
	"parkd/internal/reservations/validator"
	spotserrors "parkd/internal/spots/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/config"
	mongotx "parkd/pkg/db/mongo"
	apperrors "parkd/pkg/errors"
	"parkd/pkg/logger"
	"parkd/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	spotID   = "665f1d2e8b4c2a0001aa0001"
	bookerID = "665f1d2e8b4c2a0001bb0001"
	otherID  = "665f1d2e8b4c2a0001bb0002"
)

// mockReservationRepo guards its state with a mutex and rejects a second
// ACTIVE row per slot, mirroring the partial unique index.
type mockReservationRepo struct {
	mu           sync.Mutex
	byID         map[string]*model.Reservation
	activeBySlot map[string]string
	nextID       int
}

func newMockReservationRepo() *mockReservationRepo {
	return &mockReservationRepo{
		byID:         make(map[string]*model.Reservation),
		activeBySlot: make(map[string]string),
	}
}

func slotKey(spotID string, day time.Time) string {
	return spotID + "|" + calendar.FormatDayKey(day)
}

func (m *mockReservationRepo) Create(ctx context.Context, reservation *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey(reservation.SpotID, reservation.Date)
	if _, taken := m.activeBySlot[key]; taken {
		return reservationserrors.ErrAlreadyReserved
	}

	m.nextID++
	reservation.ID = calendar.FormatDayKey(reservation.Date) + "-" + reservation.SpotID[:6] + string(rune('a'+m.nextID%26))
	reservation.CreatedAt = time.Now()
	copied := *reservation
	m.byID[reservation.ID] = &copied
	m.activeBySlot[key] = reservation.ID
	return nil
}

func (m *mockReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepo) FindActiveBySlot(ctx context.Context, spotID string, date time.Time) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.activeBySlot[slotKey(spotID, date)]; ok {
		copied := *m.byID[id]
		return &copied, nil
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepo) CountActiveOnDates(ctx context.Context, spotID string, dates []time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, d := range dates {
		if _, ok := m.activeBySlot[slotKey(spotID, d)]; ok {
			count++
		}
	}
	return count, nil
}

func (m *mockReservationRepo) FindActiveOnDate(ctx context.Context, date time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepo) FindActiveInRange(ctx context.Context, from, to time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepo) FindActiveByEmployeeFrom(ctx context.Context, employeeID string, from time.Time) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.byID {
		if r.EmployeeID == employeeID && r.Active() && !r.Date.Before(from) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockReservationRepo) FindByEmployee(ctx context.Context, employeeID string, from *time.Time) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.byID {
		if r.EmployeeID != employeeID {
			continue
		}
		if from != nil && r.Date.Before(*from) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockReservationRepo) Cancel(ctx context.Context, id string, cancelledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok || !r.Active() {
		return reservationserrors.ErrNotFound
	}
	r.Status = model.ReservationCancelled
	r.CancelledAt = &cancelledAt
	delete(m.activeBySlot, slotKey(r.SpotID, r.Date))
	return nil
}

func (m *mockReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

// noopLockRepo always grants the lock so tests exercise the transactional
// re-check and unique-insert defenses directly.
type noopLockRepo struct{}

func (noopLockRepo) Create(ctx context.Context, lock *model.ReservationLock) (*model.ReservationLock, error) {
	return lock, nil
}

func (noopLockRepo) Delete(ctx context.Context, lockID string) error {
	return nil
}

type stubReleases struct {
	mu       sync.Mutex
	released map[string]bool
}

func newStubReleases() *stubReleases {
	return &stubReleases{released: make(map[string]bool)}
}

func (s *stubReleases) release(spotID string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released[slotKey(spotID, day)] = true
}

func (s *stubReleases) FindBySpotDates(ctx context.Context, spotID string, dates []time.Time) ([]*model.AvailabilityMark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AvailabilityMark
	for _, d := range dates {
		if released, ok := s.released[slotKey(spotID, d)]; ok {
			out = append(out, &model.AvailabilityMark{
				SpotID: spotID, Date: d, Released: released,
			})
		}
	}
	return out, nil
}

type stubSpots struct {
	spot *model.Spot
	err  error
}

func (s *stubSpots) FindByID(ctx context.Context, id string) (*model.Spot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.spot, nil
}

type stubEmployees struct {
	employees map[string]*model.Employee
}

func (s *stubEmployees) FindByID(ctx context.Context, id string) (*model.Employee, error) {
	if e, ok := s.employees[id]; ok {
		return e, nil
	}
	return nil, employeesrepo.ErrNotFound
}

type fixture struct {
	repo     *mockReservationRepo
	releases *stubReleases
	svc      ReservationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json", Service: "reservations-test"})
	cfg := &config.Config{
		Log:                log,
		ReservationLockTTL: 10 * time.Second,
	}

	repo := newMockReservationRepo()
	releases := newStubReleases()
	spots := &stubSpots{spot: &model.Spot{ID: spotID, Number: 17, Zone: model.ZoneUnderground}}
	employees := &stubEmployees{employees: map[string]*model.Employee{
		bookerID: {ID: bookerID, Name: "Noa Mizrahi", Role: model.RoleGeneral},
		otherID:  {ID: otherID, Name: "Avi Cohen", Role: model.RoleGeneral},
	}}

	svc := NewReservationService(repo, noopLockRepo{}, releases, spots, employees,
		validator.NewReservationValidator(log), cfg)

	return &fixture{repo: repo, releases: releases, svc: svc}
}

func nextWorkday() time.Time {
	day := calendar.Today().AddDate(0, 0, 1)
	for !calendar.IsWorkday(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func booker() model.Principal {
	return model.Principal{EmployeeID: bookerID, Role: model.RoleGeneral}
}

func TestReserveSucceedsOnReleasedSlot(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)

	detail, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(day),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Status != model.ReservationActive {
		t.Errorf("expected ACTIVE status, got %s", detail.Status)
	}
	if detail.SpotNumber != 17 || detail.SpotZone != model.ZoneUnderground {
		t.Errorf("unexpected spot detail: %+v", detail)
	}
	if detail.EmployeeName != "Noa Mizrahi" {
		t.Errorf("unexpected employee name: %s", detail.EmployeeName)
	}
	if !detail.Date.Equal(calendar.DayKey(day)) {
		t.Errorf("unexpected reservation date: %v", detail.Date)
	}
}

func TestReserveRequiresRelease(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()

	_, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(day),
	})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict error for unreleased slot, got %v", err)
	}
}

func TestReserveRejectsReclaimedDay(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)
	f.releases.mu.Lock()
	f.releases.released[slotKey(spotID, day)] = false
	f.releases.mu.Unlock()

	_, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(day),
	})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict error for reclaimed slot, got %v", err)
	}
}

func TestReserveRoleAndDateChecks(t *testing.T) {
	day := nextWorkday()

	tests := []struct {
		name     string
		caller   model.Principal
		date     string
		wantCode string
	}{
		{"direction caller", model.Principal{EmployeeID: bookerID, Role: model.RoleDirection}, calendar.FormatDayKey(day), apperrors.CodeForbidden},
		{"admin caller", model.Principal{EmployeeID: bookerID, Role: model.RoleAdmin}, calendar.FormatDayKey(day), apperrors.CodeForbidden},
		{"past date", booker(), "2020-01-06", apperrors.CodeValidation},
		{"saturday", booker(), "2024-12-14", apperrors.CodeValidation},
		{"sunday", booker(), "2024-12-15", apperrors.CodeValidation},
		{"malformed date", booker(), "June 10th", apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.releases.release(spotID, day)

			_, err := f.svc.Reserve(context.Background(), tt.caller, &model.ReservationRequest{
				SpotID: spotID,
				Date:   tt.date,
			})
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.Code != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestReserveSpotNotFound(t *testing.T) {
	f := newFixture(t)
	log := logger.New(logger.Config{Level: "error", Format: "json", Service: "reservations-test"})
	cfg := &config.Config{Log: log, ReservationLockTTL: 10 * time.Second}
	svc := NewReservationService(f.repo, noopLockRepo{}, f.releases,
		&stubSpots{err: spotserrors.ErrNotFound},
		&stubEmployees{}, validator.NewReservationValidator(log), cfg)

	_, err := svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(nextWorkday()),
	})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

// TestReserveMutualExclusivity races N callers at one slot: exactly one
// reservation may win and every loser must see a conflict.
func TestReserveMutualExclusivity(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)

	const callers = 20
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
				SpotID: spotID,
				Date:   calendar.FormatDayKey(day),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		appErr := apperrors.AsAppError(err)
		if appErr == nil || appErr.Code != apperrors.CodeConflict {
			t.Fatalf("unexpected error from racing caller: %v", err)
		}
		conflicts++
	}

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != callers-1 {
		t.Errorf("expected %d conflicts, got %d", callers-1, conflicts)
	}
	if got := len(f.repo.activeBySlot); got != 1 {
		t.Errorf("expected 1 active reservation, got %d", got)
	}
}

func TestCancelByOwnerReopensSlot(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)

	req := &model.ReservationRequest{SpotID: spotID, Date: calendar.FormatDayKey(day)}
	detail, err := f.svc.Reserve(context.Background(), booker(), req)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := f.svc.Cancel(context.Background(), booker(), detail.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stored, err := f.repo.FindByID(context.Background(), detail.ID)
	if err != nil {
		t.Fatalf("expected cancelled reservation kept for history: %v", err)
	}
	if stored.Status != model.ReservationCancelled || stored.CancelledAt == nil {
		t.Errorf("unexpected stored state: %+v", stored)
	}

	// the slot is free again, so a second booking succeeds
	other := model.Principal{EmployeeID: otherID, Role: model.RoleGeneral}
	if _, err := f.svc.Reserve(context.Background(), other, req); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)

	detail, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(day),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	stranger := model.Principal{EmployeeID: otherID, Role: model.RoleGeneral}
	err = f.svc.Cancel(context.Background(), stranger, detail.ID)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}

	admin := model.Principal{EmployeeID: "admin-1", Role: model.RoleAdmin}
	if err := f.svc.Cancel(context.Background(), admin, detail.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestCancelMissingAndRepeated(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)

	err := f.svc.Cancel(context.Background(), booker(), "missing-id")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	detail, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(day),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.svc.Cancel(context.Background(), booker(), detail.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	err = f.svc.Cancel(context.Background(), booker(), detail.ID)
	appErr = apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict for repeated cancel, got %v", err)
	}
}

func TestListUpcomingAndHistory(t *testing.T) {
	f := newFixture(t)
	day := nextWorkday()
	f.releases.release(spotID, day)

	detail, err := f.svc.Reserve(context.Background(), booker(), &model.ReservationRequest{
		SpotID: spotID,
		Date:   calendar.FormatDayKey(day),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	upcoming, err := f.svc.ListUpcoming(context.Background(), booker(), bookerID)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != detail.ID {
		t.Fatalf("expected the new reservation in upcoming, got %+v", upcoming)
	}

	if err := f.svc.Cancel(context.Background(), booker(), detail.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	upcoming, err = f.svc.ListUpcoming(context.Background(), booker(), bookerID)
	if err != nil {
		t.Fatalf("list upcoming after cancel: %v", err)
	}
	if len(upcoming) != 0 {
		t.Errorf("expected no upcoming reservations after cancel, got %d", len(upcoming))
	}

	history, err := f.svc.ListHistory(context.Background(), booker(), bookerID, true)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].Status != model.ReservationCancelled {
		t.Fatalf("expected the cancelled reservation in history, got %+v", history)
	}

	// listing someone else's reservations requires admin
	stranger := model.Principal{EmployeeID: otherID, Role: model.RoleGeneral}
	_, err = f.svc.ListUpcoming(context.Background(), stranger, bookerID)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{
			name:  "already midnight UTC",
			input: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "afternoon timestamp truncates",
			input: time.Date(2024, 6, 10, 15, 42, 7, 12345, time.UTC),
			want:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "non-UTC zone collapses to the UTC day",
			input: time.Date(2024, 6, 11, 1, 30, 0, 0, time.FixedZone("CEST", 2*60*60)),
			want:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DayKey(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("DayKey(%v) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("DayKey(%v) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}
}

func TestParseDayKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "plain day string",
			input: "2024-06-10",
			want:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "full RFC3339 timestamp collapses to the same key",
			input: "2024-06-10T18:30:00Z",
			want:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "offset timestamp normalizes through UTC",
			input: "2024-06-11T01:00:00+03:00",
			want:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			input:   "tomorrow",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "wrong separator",
			input:   "2024/06/10",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDayKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Errorf("ParseDayKey(%q) error = %v, want ErrInvalidDate", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDayKey(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDayKey(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsWorkday(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"monday", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), true},
		{"friday", time.Date(2024, 12, 13, 0, 0, 0, 0, time.UTC), true},
		{"saturday", time.Date(2024, 12, 14, 0, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWorkday(tt.day); got != tt.want {
				t.Errorf("IsWorkday(%v) = %v, want %v", tt.day, got, tt.want)
			}
		})
	}
}

func TestIsPast(t *testing.T) {
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	if !IsPast(time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC), today) {
		t.Error("yesterday should be past")
	}
	if IsPast(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC), today) {
		t.Error("today should not be past")
	}
	if IsPast(time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), today) {
		t.Error("tomorrow should not be past")
	}
}

func TestDaysInRange(t *testing.T) {
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

	days := DaysInRange(start, end)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if !days[0].Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first day = %v, want 2024-06-10", days[0])
	}
	if !days[2].Equal(time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last day = %v, want 2024-06-12", days[2])
	}

	if got := DaysInRange(end, start); got != nil {
		t.Errorf("inverted range should yield nil, got %v", got)
	}

	single := DaysInRange(start, start)
	if len(single) != 1 {
		t.Errorf("same-day range should yield one day, got %d", len(single))
	}
}

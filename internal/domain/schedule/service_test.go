package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

// -- Mock Repository --

type mockRepo struct {
	byOwner map[string]*Schedule
	saves   int
	saveErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{byOwner: make(map[string]*Schedule)}
}

func (m *mockRepo) GetByOwner(_ context.Context, ownerID string) (*Schedule, error) {
	s, ok := m.byOwner[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) Save(_ context.Context, s *Schedule) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	if existing, ok := m.byOwner[s.OwnerID]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	} else {
		s.ID = uuid.New()
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()
	m.byOwner[s.OwnerID] = s
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func block(day zonedtime.DayOfWeek, start, end string) Availability {
	return Availability{
		DayOfWeek: day,
		StartTime: zonedtime.MustParseTimeOfDay(start),
		EndTime:   zonedtime.MustParseTimeOfDay(end),
	}
}

func TestService_SaveSchedule(t *testing.T) {
	svc, repo := newTestService()
	sched, err := svc.SaveSchedule(context.Background(), "owner-1", "America/New_York", []Availability{
		block(zonedtime.Wednesday, "13:00", "17:00"),
		block(zonedtime.Monday, "9:00", "12:00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if sched.Availabilities[0].DayOfWeek != zonedtime.Monday {
		t.Errorf("expected blocks sorted by day, got %s first", sched.Availabilities[0].DayOfWeek)
	}
	if repo.saves != 1 {
		t.Errorf("expected 1 save, got %d", repo.saves)
	}
}

func TestService_SaveSchedule_ReplacesWholesale(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	first, err := svc.SaveSchedule(ctx, "owner-1", "UTC", []Availability{
		block(zonedtime.Monday, "9:00", "12:00"),
		block(zonedtime.Tuesday, "9:00", "12:00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := svc.SaveSchedule(ctx, "owner-1", "Europe/Berlin", []Availability{
		block(zonedtime.Friday, "10:00", "11:00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected the same schedule to be updated in place")
	}

	got, err := svc.GetSchedule(ctx, "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Timezone != "Europe/Berlin" || len(got.Availabilities) != 1 {
		t.Errorf("expected replaced schedule, got %+v", got)
	}
}

func TestService_SaveSchedule_Validation(t *testing.T) {
	tests := []struct {
		name   string
		owner  string
		tz     string
		blocks []Availability
	}{
		{"missing owner", "", "UTC", nil},
		{"bad zone", "o", "Not/AZone", nil},
		{"empty zone", "o", "", nil},
		{"bad day", "o", "UTC", []Availability{block("someday", "9:00", "10:00")}},
		{"end before start", "o", "UTC", []Availability{block(zonedtime.Monday, "12:00", "9:00")}},
		{"empty block", "o", "UTC", []Availability{block(zonedtime.Monday, "9:00", "9:00")}},
		{"starts at end of day", "o", "UTC", []Availability{block(zonedtime.Monday, "24:00", "24:00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			_, err := svc.SaveSchedule(context.Background(), tt.owner, tt.tz, tt.blocks)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if repo.saves != 0 {
				t.Error("expected no save on invalid input")
			}
		})
	}
}

func TestService_SaveSchedule_AllowsOverlappingBlocks(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.SaveSchedule(context.Background(), "owner-1", "UTC", []Availability{
		block(zonedtime.Monday, "9:00", "12:00"),
		block(zonedtime.Monday, "11:00", "14:00"),
	})
	if err != nil {
		t.Fatalf("overlapping blocks should be accepted: %v", err)
	}
}

func TestService_SaveSchedule_AcceptsEndOfDay(t *testing.T) {
	svc, _ := newTestService()
	sched, err := svc.SaveSchedule(context.Background(), "owner-1", "UTC", []Availability{
		block(zonedtime.Friday, "22:00", "24:00"),
	})
	if err != nil {
		t.Fatalf("a block ending at 24:00 should be accepted: %v", err)
	}
	if got := sched.Availabilities[0].EndTime; got.Minutes() != 1440 {
		t.Errorf("expected end minute 1440, got %d", got.Minutes())
	}
}

func TestService_GetSchedule_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetSchedule(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchedule_BlocksFor(t *testing.T) {
	s := &Schedule{Availabilities: []Availability{
		block(zonedtime.Monday, "9:00", "12:00"),
		block(zonedtime.Tuesday, "9:00", "12:00"),
		block(zonedtime.Monday, "13:00", "17:00"),
	}}
	if got := s.BlocksFor(zonedtime.Monday); len(got) != 2 {
		t.Errorf("expected 2 monday blocks, got %d", len(got))
	}
	if got := s.BlocksFor(zonedtime.Sunday); len(got) != 0 {
		t.Errorf("expected no sunday blocks, got %d", len(got))
	}
}

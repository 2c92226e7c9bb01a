package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

func TestRepoPG_GetByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepoPG(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM schedules WHERE owner_id").
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id", "timezone", "created_at", "updated_at"}).
			AddRow(id, "owner-1", "America/New_York", now, now))
	mock.ExpectQuery("FROM schedule_availabilities").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"day_of_week", "start_minute", "end_minute"}).
			AddRow("tuesday", 540, 720).
			AddRow("monday", 780, 1020).
			AddRow("monday", 540, 720))

	s, err := repo.GetByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != id || s.Timezone != "America/New_York" {
		t.Errorf("unexpected schedule %+v", s)
	}
	if len(s.Availabilities) != 3 {
		t.Fatalf("expected 3 availabilities, got %d", len(s.Availabilities))
	}
	first := s.Availabilities[0]
	if first.DayOfWeek != zonedtime.Monday || first.StartTime.String() != "09:00" || first.EndTime.String() != "12:00" {
		t.Errorf("unexpected first block %+v", first)
	}
	if s.Availabilities[2].DayOfWeek != zonedtime.Tuesday {
		t.Errorf("expected tuesday last, got %s", s.Availabilities[2].DayOfWeek)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_GetByOwner_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("FROM schedules WHERE owner_id").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewRepoPG(mock).GetByOwner(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoPG_Save_ReplacesAvailabilities(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO schedules").
		WithArgs(pgxmock.AnyArg(), "owner-1", "Europe/Paris").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))
	mock.ExpectExec("DELETE FROM schedule_availabilities").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("INSERT INTO schedule_availabilities").
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	s := &Schedule{
		OwnerID:  "owner-1",
		Timezone: "Europe/Paris",
		Availabilities: []Availability{
			{DayOfWeek: zonedtime.Monday, StartTime: zonedtime.MustParseTimeOfDay("9:00"), EndTime: zonedtime.MustParseTimeOfDay("12:00")},
			{DayOfWeek: zonedtime.Friday, StartTime: zonedtime.MustParseTimeOfDay("14:00"), EndTime: zonedtime.MustParseTimeOfDay("18:30")},
		},
	}
	if err := NewRepoPG(mock).Save(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != id {
		t.Errorf("expected id %s, got %s", id, s.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_Save_EmptySetSkipsInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO schedules").
		WithArgs(pgxmock.AnyArg(), "owner-1", "UTC").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, time.Now(), time.Now()))
	mock.ExpectExec("DELETE FROM schedule_availabilities").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	if err := NewRepoPG(mock).Save(context.Background(), &Schedule{OwnerID: "owner-1", Timezone: "UTC"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_Save_RollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO schedules").
		WithArgs(pgxmock.AnyArg(), "owner-1", "UTC").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, time.Now(), time.Now()))
	mock.ExpectExec("DELETE FROM schedule_availabilities").
		WithArgs(id).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = NewRepoPG(mock).Save(context.Background(), &Schedule{OwnerID: "owner-1", Timezone: "UTC"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

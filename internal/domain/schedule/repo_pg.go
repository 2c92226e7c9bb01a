package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

// PgxIface is satisfied by *pgxpool.Pool and by pgxmock pools.
type PgxIface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type repoPG struct{ db PgxIface }

func NewRepoPG(db PgxIface) Repository { return &repoPG{db: db} }

const scheduleCols = `id, owner_id, timezone, created_at, updated_at`

func (r *repoPG) GetByOwner(ctx context.Context, ownerID string) (*Schedule, error) {
	var s Schedule
	err := r.db.QueryRow(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE owner_id = $1`, ownerID).
		Scan(&s.ID, &s.OwnerID, &s.Timezone, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select schedule: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT day_of_week, start_minute, end_minute
		FROM schedule_availabilities
		WHERE schedule_id = $1
		ORDER BY start_minute, end_minute`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("select availabilities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day        string
			start, end int
		)
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		s.Availabilities = append(s.Availabilities, Availability{
			DayOfWeek: zonedtime.DayOfWeek(day),
			StartTime: zonedtime.FromMinutes(start),
			EndTime:   zonedtime.FromMinutes(end),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availabilities: %w", err)
	}
	SortAvailabilities(s.Availabilities)
	return &s, nil
}

func (r *repoPG) Save(ctx context.Context, s *Schedule) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO schedules (id, owner_id, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		uuid.New(), s.OwnerID, s.Timezone,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_availabilities WHERE schedule_id = $1`, s.ID); err != nil {
		return fmt.Errorf("clear availabilities: %w", err)
	}

	if len(s.Availabilities) > 0 {
		days := make([]string, len(s.Availabilities))
		starts := make([]int32, len(s.Availabilities))
		ends := make([]int32, len(s.Availabilities))
		for i, a := range s.Availabilities {
			days[i] = string(a.DayOfWeek)
			starts[i] = int32(a.StartTime.Minutes())
			ends[i] = int32(a.EndTime.Minutes())
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_availabilities (schedule_id, day_of_week, start_minute, end_minute)
			SELECT $1, d, s, e FROM unnest($2::text[], $3::int[], $4::int[]) AS t(d, s, e)`,
			s.ID, days, starts, ends,
		); err != nil {
			return fmt.Errorf("insert availabilities: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	return nil
}

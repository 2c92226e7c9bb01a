package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

func NewRepoPG(db queryable) Repository { return &repoPG{db: db} }

const eventCols = `id, owner_id, name, description, duration_minutes, is_active, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.DurationMinutes,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	return r.db.QueryRow(ctx, `
		INSERT INTO events (id, owner_id, name, description, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		e.ID, e.OwnerID, e.Name, e.Description, e.DurationMinutes, e.IsActive,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Event, error) {
	return scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

func (r *repoPG) Update(ctx context.Context, e *Event) error {
	err := r.db.QueryRow(ctx, `
		UPDATE events SET name = $3, description = $4, duration_minutes = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING created_at, updated_at`,
		e.ID, e.OwnerID, e.Name, e.Description, e.DurationMinutes, e.IsActive,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByOwner(ctx context.Context, ownerID string, activeOnly bool, limit, offset int) ([]*Event, int, error) {
	where := ` WHERE owner_id = $1`
	if activeOnly {
		where += ` AND is_active`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events`+where, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+eventCols+` FROM events`+where+` ORDER BY name ASC, created_at ASC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-events-app/internal/database"
)

var ErrNotFound = errors.New("event not found")

// Repository keeps events in the events table
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an event owned by userID
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, ne NewEvent) (*Event, error) {
	dbEvent := &database.Event{
		Title:    ne.Title,
		Members:  ne.Members,
		Messages: ne.Messages,
		Datetime: ne.Datetime.UTC(),
		UserID:   userID,
	}

	_, err := r.db.NewInsert().
		Model(dbEvent).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return mapDBEventToModel(dbEvent), nil
}

// GetByID returns the event regardless of its owner
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	dbEvent := new(database.Event)
	err := r.db.NewSelect().
		Model(dbEvent).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return mapDBEventToModel(dbEvent), nil
}

// ListByUser returns the user's events ordered by datetime ascending
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Event, error) {
	var dbEvents []database.Event

	q := r.db.NewSelect().
		Model(&dbEvents).
		Where("user_id = ?", userID).
		OrderExpr("datetime ASC, created_at ASC")
	if filter.From != nil {
		q = q.Where("datetime >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("datetime < ?", filter.To.UTC())
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*Event, 0, len(dbEvents))
	for i := range dbEvents {
		events = append(events, mapDBEventToModel(&dbEvents[i]))
	}
	return events, nil
}

// Update applies the non-nil fields of p and returns the updated event
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p Patch) (*Event, error) {
	if p.Empty() {
		return r.GetByID(ctx, id)
	}

	dbEvent := new(database.Event)
	q := r.db.NewUpdate().
		Model(dbEvent).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Returning("*")
	if p.Title != nil {
		q = q.Set("title = ?", *p.Title)
	}
	if p.Members != nil {
		q = q.Set("members = ?", *p.Members)
	}
	if p.Messages != nil {
		q = q.Set("messages = ?", *p.Messages)
	}
	if p.Datetime != nil {
		q = q.Set("datetime = ?", p.Datetime.UTC())
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return mapDBEventToModel(dbEvent), nil
}

// Delete removes the event
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapDBEventToModel(dbe *database.Event) *Event {
	return &Event{
		ID:        dbe.ID,
		Title:     dbe.Title,
		Members:   dbe.Members,
		Messages:  dbe.Messages,
		Datetime:  dbe.Datetime.UTC(),
		UserID:    dbe.UserID,
		CreatedAt: dbe.CreatedAt,
		UpdatedAt: dbe.UpdatedAt,
	}
}

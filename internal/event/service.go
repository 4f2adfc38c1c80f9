package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/metrics"
	"github.com/redmonkez12/go-events-app/internal/sanitize"
)

var ErrForbidden = errors.New("event belongs to another user")

// Store is the event persistence the service needs
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, ne NewEvent) (*Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Event, error)
	Update(ctx context.Context, id uuid.UUID, p Patch) (*Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service implements ownership-scoped event CRUD
type Service struct {
	store  Store
	logger *logging.Logger
}

func NewService(store Store, logger *logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create stores a new event for userID. Text fields are stripped of HTML and
// must still be non-blank afterwards.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, ne NewEvent) (*Event, error) {
	ne.Title = sanitize.Text(ne.Title)
	ne.Members = sanitize.Text(ne.Members)
	ne.Messages = sanitize.Text(ne.Messages)

	if err := requireText(map[string]*string{"title": &ne.Title, "members": &ne.Members}); err != nil {
		return nil, err
	}

	e, err := s.store.Create(ctx, userID, ne)
	if err != nil {
		return nil, err
	}

	metrics.EventMutations.WithLabelValues("create").Inc()
	s.logger.Info("event created", "event_id", e.ID, "user_id", userID)
	return e, nil
}

// FindAll lists the user's events ordered by datetime
func (s *Service) FindAll(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Event, error) {
	return s.store.ListByUser(ctx, userID, filter)
}

// FindOne returns the event if userID owns it
func (s *Service) FindOne(ctx context.Context, id, userID uuid.UUID) (*Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, ErrForbidden
	}
	return e, nil
}

// Update applies p after checking ownership
func (s *Service) Update(ctx context.Context, id, userID uuid.UUID, p Patch) (*Event, error) {
	p.Title = sanitize.TextPtr(p.Title)
	p.Members = sanitize.TextPtr(p.Members)
	p.Messages = sanitize.TextPtr(p.Messages)

	if err := requireText(map[string]*string{"title": p.Title, "members": p.Members}); err != nil {
		return nil, err
	}

	current, err := s.FindOne(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return current, nil
	}

	e, err := s.store.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}

	metrics.EventMutations.WithLabelValues("update").Inc()
	s.logger.Info("event updated", "event_id", id, "user_id", userID)
	return e, nil
}

// Remove deletes the event after checking ownership
func (s *Service) Remove(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.FindOne(ctx, id, userID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	metrics.EventMutations.WithLabelValues("delete").Inc()
	s.logger.Info("event deleted", "event_id", id, "user_id", userID)
	return nil
}

// requireText rejects fields that are present but blank after sanitizing
func requireText(fields map[string]*string) error {
	var errs []httputil.FieldError
	for _, name := range []string{"title", "members"} {
		v, ok := fields[name]
		if !ok || v == nil || *v != "" {
			continue
		}
		errs = append(errs, httputil.FieldError{
			Field:      name,
			Message:    fmt.Sprintf("%s should not be empty", name),
			Constraint: "notblank",
		})
	}
	if len(errs) > 0 {
		return &httputil.ValidationError{Fields: errs}
	}
	return nil
}

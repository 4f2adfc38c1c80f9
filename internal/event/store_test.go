package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*Event
	writes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: make(map[uuid.UUID]*Event)}
}

func (s *memoryStore) Create(_ context.Context, userID uuid.UUID, ne NewEvent) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	e := &Event{
		ID:        uuid.New(),
		Title:     ne.Title,
		Members:   ne.Members,
		Messages:  ne.Messages,
		Datetime:  ne.Datetime.UTC(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.events[e.ID] = e
	s.writes++
	cp := *e
	return &cp, nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID uuid.UUID, filter ListFilter) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, 0)
	for _, e := range s.events {
		if e.UserID != userID {
			continue
		}
		if filter.From != nil && e.Datetime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.Datetime.Before(*filter.To) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, id uuid.UUID, p Patch) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Members != nil {
		e.Members = *p.Members
	}
	if p.Messages != nil {
		e.Messages = *p.Messages
	}
	if p.Datetime != nil {
		e.Datetime = p.Datetime.UTC()
	}
	e.UpdatedAt = time.Now().UTC()
	s.writes++
	cp := *e
	return &cp, nil
}

func (s *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	s.writes++
	return nil
}

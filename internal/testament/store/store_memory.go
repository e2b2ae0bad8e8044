package store

import (
	"context"
	"sync"
	"time"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
	"testament/pkg/platform/sentinel"
)

// InMemory keeps testaments and their outbox in process. It is the default store
// for development and tests; transactional isolation comes from the service's
// sharded StoreTx, while the mutex here only protects the maps themselves.
type InMemory struct {
	mu         sync.RWMutex
	testaments map[id.TestamentID]*models.Testament
	events     map[id.TestamentID][]models.Event
	published  map[id.EventID]time.Time
	held       map[id.EventID]bool
	order      []id.EventID
	byID       map[id.EventID]models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{
		testaments: make(map[id.TestamentID]*models.Testament),
		events:     make(map[id.TestamentID][]models.Event),
		published:  make(map[id.EventID]time.Time),
		held:       make(map[id.EventID]bool),
		byID:       make(map[id.EventID]models.Event),
	}
}

func (s *InMemory) Create(_ context.Context, t *models.Testament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.testaments[t.ID]; ok {
		return sentinel.ErrConflict
	}
	s.testaments[t.ID] = t.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, testamentID id.TestamentID) (*models.Testament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.testaments[testamentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *InMemory) Save(_ context.Context, t *models.Testament, events ...*models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.testaments[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.testaments[t.ID] = t.Clone()
	s.appendLocked(events)
	return nil
}

// ReleaseEvent makes a held event visible to ListEvents and the outbox.
func (s *InMemory) ReleaseEvent(_ context.Context, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[eventID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.held, eventID)
	return nil
}

// DiscardEvent drops an event that has not been published. Published and
// unknown events are not found.
func (s *InMemory) DiscardEvent(_ context.Context, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.byID[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, done := s.published[eventID]; done {
		return sentinel.ErrNotFound
	}
	delete(s.byID, eventID)
	delete(s.held, eventID)
	s.order = removeEventID(s.order, eventID)
	kept := s.events[ev.TestamentID][:0]
	for _, other := range s.events[ev.TestamentID] {
		if other.ID != eventID {
			kept = append(kept, other)
		}
	}
	s.events[ev.TestamentID] = kept
	return nil
}

func removeEventID(ids []id.EventID, target id.EventID) []id.EventID {
	out := ids[:0]
	for _, eventID := range ids {
		if eventID != target {
			out = append(out, eventID)
		}
	}
	return out
}

func (s *InMemory) appendLocked(events []*models.Event) {
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.ID.IsNil() {
			ev.ID = id.NewEventID()
		}
		ev.Seq = s.nextSeqLocked(ev.TestamentID)
		stored := *ev
		stored.Held = false
		if ev.Held {
			s.held[ev.ID] = true
		}
		s.events[ev.TestamentID] = append(s.events[ev.TestamentID], stored)
		s.byID[ev.ID] = stored
		s.order = append(s.order, ev.ID)
	}
}

func (s *InMemory) nextSeqLocked(testamentID id.TestamentID) int64 {
	events := s.events[testamentID]
	if len(events) == 0 {
		return 1
	}
	return events[len(events)-1].Seq + 1
}

func (s *InMemory) ListEvents(_ context.Context, testamentID id.TestamentID) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Event{}
	for _, ev := range s.events[testamentID] {
		if !s.held[ev.ID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

// PendingEvents returns up to limit unpublished events in append order.
func (s *InMemory) PendingEvents(_ context.Context, limit int) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, eventID := range s.order {
		if _, done := s.published[eventID]; done || s.held[eventID] {
			continue
		}
		out = append(out, s.byID[eventID])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished records that events were relayed downstream.
func (s *InMemory) MarkPublished(_ context.Context, eventIDs []id.EventID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eventID := range eventIDs {
		if _, ok := s.byID[eventID]; ok {
			s.published[eventID] = at
		}
	}
	return nil
}

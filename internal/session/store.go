// Package session keeps the per-user working state of the presentation layer:
// the current dataset and the current indicator exercise. State values are
// replaced wholesale, never mutated in place.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-incident-etl/internal/cache"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

// LatestID addresses the read-only session holding the dataset most recently
// published by the upload pipeline.
const LatestID = "latest"

var (
	// ErrNotFound is returned for unknown or evicted session IDs.
	ErrNotFound = errors.New("session not found")

	// ErrReadOnly is returned when a write targets the latest session.
	ErrReadOnly = errors.New("session is read-only")

	// ErrNoDataset is returned when a view is requested before any upload.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrNoQuiz is returned when answers are checked before a table exists.
	ErrNoQuiz = errors.New("no indicator table loaded")
)

// State is the complete working state of one session.
type State struct {
	ID        string            `json:"id"`
	Dataset   *domain.Dataset   `json:"-"`
	Source    string            `json:"source,omitempty"`
	Quiz      *domain.QuizState `json:"quiz,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RequireDataset returns the session's dataset or ErrNoDataset.
func (s State) RequireDataset() (domain.Dataset, error) {
	if s.Dataset == nil {
		return domain.Dataset{}, ErrNoDataset
	}
	return *s.Dataset, nil
}

// RequireQuiz returns the session's exercise or ErrNoQuiz.
func (s State) RequireQuiz() (domain.QuizState, error) {
	if s.Quiz == nil {
		return domain.QuizState{}, ErrNoQuiz
	}
	return *s.Quiz, nil
}

// Store holds session states in a bounded LRU; the least recently used
// session is dropped once capacity is exceeded. The latest session is kept
// outside the LRU and never evicted.
type Store struct {
	sessions *cache.LRU[State]
	latest   *cache.LRU[State]
	clock    clockwork.Clock
}

// NewStore creates a store for up to capacity sessions. A nil clock uses
// the real clock.
func NewStore(capacity int, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{
		sessions: cache.NewLRU[State](capacity),
		latest:   cache.NewLRU[State](1),
		clock:    clock,
	}
	now := clock.Now().UTC()
	s.latest.Put(LatestID, State{ID: LatestID, CreatedAt: now, UpdatedAt: now})
	return s
}

// Create starts an empty session with a random ID.
func (s *Store) Create() State {
	now := s.clock.Now().UTC()
	st := State{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	s.sessions.Put(st.ID, st)
	return st
}

// Get returns the state of a session.
func (s *Store) Get(id string) (State, error) {
	if id == LatestID {
		st, _ := s.latest.Get(LatestID)
		return st, nil
	}
	st, ok := s.sessions.Get(id)
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return st, nil
}

// SetDataset replaces the session's dataset. The quiz is left untouched.
func (s *Store) SetDataset(id string, ds domain.Dataset, source string) (State, error) {
	return s.update(id, func(st State) State {
		st.Dataset = &ds
		st.Source = source
		return st
	})
}

// SetQuiz replaces the session's indicator exercise.
func (s *Store) SetQuiz(id string, q domain.QuizState) (State, error) {
	return s.update(id, func(st State) State {
		st.Quiz = &q
		return st
	})
}

func (s *Store) update(id string, fn func(State) State) (State, error) {
	if id == LatestID {
		return State{}, fmt.Errorf("%w: %s", ErrReadOnly, id)
	}

	var out State
	err := s.sessions.Update(id, func(st State) (State, error) {
		out = fn(st)
		out.UpdatedAt = s.clock.Now().UTC()
		return out, nil
	})
	if errors.Is(err, cache.ErrNotFound) {
		return State{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return out, err
}

// ReplaceLatest publishes a dataset produced by the upload pipeline.
func (s *Store) ReplaceLatest(ds domain.Dataset, source string) {
	_ = s.latest.Update(LatestID, func(st State) (State, error) {
		st.Dataset = &ds
		st.Source = source
		st.UpdatedAt = s.clock.Now().UTC()
		return st, nil
	})
}

// Len returns the number of live user sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

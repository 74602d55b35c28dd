package showcase

import (
	"errors"
	"sort"
	"sync"
)

// Repository defines the concurrency-safe contract for tracking mounted
// sessions.
type Repository interface {
	// Create records a new session. An id already in use is rejected.
	Create(s *Session) error

	// Get returns the session with the given id.
	Get(id SessionID) (*Session, bool)

	// Delete removes the session and returns it. The ok return is false if
	// no such session exists.
	Delete(id SessionID) (s *Session, ok bool)

	// List returns every session ordered by creation time.
	List() []*Session

	// ActiveCount returns the number of mounted sessions. Used for metrics.
	ActiveCount() int
}

// ErrSessionExists is returned when creating a session whose id is taken.
var ErrSessionExists = errors.New("session already exists")

// InMemoryRepository is a concurrency-safe implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Create implements Repository.Create.
func (r *InMemoryRepository) Create(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID); exists {
		return ErrSessionExists
	}
	r.store.SetSession(s)
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetSession(id)
}

// Delete implements Repository.Delete.
func (r *InMemoryRepository) Delete(id SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return nil, false
	}
	r.store.DeleteSession(id)
	return s, true
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListSessionIDs()
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.GetSession(id); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCount implements Repository.ActiveCount.
func (r *InMemoryRepository) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListSessionIDs())
}

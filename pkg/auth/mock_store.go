package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory SessionStore with error injection for tests
type MockStore struct {
	states map[string]SessionState
	mu     sync.RWMutex

	SaveError   error
	LoadError   error
	ListError   error
	DeleteError error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{states: make(map[string]SessionState)}
}

// NewMockManager returns a manager backed by a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Save(state *SessionState) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if state == nil || state.Username == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Username] = *state
	return nil
}

func (m *MockStore) Load(username string) (*SessionState, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[username]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MockStore) List() ([]*SessionState, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*SessionState, 0, len(m.states))
	for _, s := range m.states {
		s := s
		result = append(result, &s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[username]; !ok {
		return ErrSessionNotFound
	}
	delete(m.states, username)
	return nil
}

// Count returns the number of stored states
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

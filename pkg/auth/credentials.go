package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// Cookie names carried by an authenticated feed session
const (
	SessionCookie = "sessionid"
	CSRFCookie    = "csrftoken"
)

// SessionState is the persisted authentication state of a feed account
type SessionState struct {
	Username  string    `json:"username"`
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
	UserAgent string    `json:"user_agent,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// Validate checks that the state can authenticate a session
func (s *SessionState) Validate() error {
	if s == nil {
		return ErrInvalidSession
	}
	var errs []error
	if s.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if s.SessionID == "" {
		errs = append(errs, errors.New("session ID is required"))
	}
	if s.CSRFToken == "" {
		errs = append(errs, errors.New("CSRF token is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSession, errors.Join(errs...))
	}
	return nil
}

// Cookies returns the cookies to install on an HTTP session
func (s *SessionState) Cookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: SessionCookie, Value: s.SessionID, Path: "/"},
		{Name: CSRFCookie, Value: s.CSRFToken, Path: "/"},
	}
}

// SessionStore persists SessionStates keyed by username
type SessionStore interface {
	Save(state *SessionState) error
	Load(username string) (*SessionState, error)
	List() ([]*SessionState, error)
	Delete(username string) error
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []SessionStore
}

// NewManager chains the system keyring (when available), an encrypted file
// in dir and the environment.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		d, err := configDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		dir = d
	}

	var stores []SessionStore
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	encrypted, err := NewEncryptedFileStore(filepath.Join(dir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encrypted, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over explicit stores, in priority order
func NewManagerWithStores(stores ...SessionStore) *Manager {
	return &Manager{stores: stores}
}

// Save writes state to the first store that accepts it
func (m *Manager) Save(state *SessionState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	state.SavedAt = time.Now().UTC()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(state); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Load returns the state for username from the first store holding it.
// An empty username returns the most recently saved state.
func (m *Manager) Load(username string) (*SessionState, error) {
	if username == "" {
		states, _ := m.List()
		if len(states) == 0 {
			return nil, ErrSessionNotFound
		}
		return states[0], nil
	}
	for _, store := range m.stores {
		if state, err := store.Load(username); err == nil && state != nil {
			return state, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, username)
}

// List returns every stored state, newest first, one per username
func (m *Manager) List() ([]*SessionState, error) {
	latest := make(map[string]*SessionState)
	for _, store := range m.stores {
		states, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range states {
			if existing, ok := latest[s.Username]; !ok || s.SavedAt.After(existing.SavedAt) {
				latest[s.Username] = s
			}
		}
	}

	result := make([]*SessionState, 0, len(latest))
	for _, s := range latest {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SavedAt.Equal(result[j].SavedAt) {
			return result[i].Username < result[j].Username
		}
		return result[i].SavedAt.After(result[j].SavedAt)
	})
	return result, nil
}

// Delete removes username from every store
func (m *Manager) Delete(username string) error {
	deleted := false
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrSessionNotFound, username)
}

func configDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "tagsync")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "tagsync")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "tagsync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "tagsync")
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Sanitize returns a copy of state with secrets masked
func Sanitize(state *SessionState) *SessionState {
	if state == nil {
		return nil
	}
	c := *state
	c.SessionID = maskString(c.SessionID)
	c.CSRFToken = maskString(c.CSRFToken)
	return &c
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session state")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

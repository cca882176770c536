package auth

import (
	"os"
)

// EnvironmentStore reads a single read-only session from TAGSYNC_* variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(state *SessionState) error {
	return ErrStoreUnavailable
}

// Load returns the environment session when username matches it or is empty
func (e *EnvironmentStore) Load(username string) (*SessionState, error) {
	sessionID := os.Getenv("TAGSYNC_SESSION_ID")
	csrfToken := os.Getenv("TAGSYNC_CSRF_TOKEN")
	if sessionID == "" || csrfToken == "" {
		return nil, ErrSessionNotFound
	}

	envUser := os.Getenv("TAGSYNC_USERNAME")
	if envUser == "" {
		envUser = "default"
	}
	if username != "" && username != envUser {
		return nil, ErrSessionNotFound
	}

	return &SessionState{
		Username:  envUser,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: os.Getenv("TAGSYNC_USER_AGENT"),
	}, nil
}

func (e *EnvironmentStore) List() ([]*SessionState, error) {
	state, err := e.Load("")
	if err != nil {
		return nil, nil
	}
	return []*SessionState{state}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

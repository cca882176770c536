package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "tagsync"
	keyringPrefix   = "session_"
	keyringIndexKey = "index"
)

// KeyringStore keeps session states in the system keychain. Usernames are
// tracked under an index entry since keychains cannot be enumerated.
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unusable
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Save(state *SessionState) error {
	if state == nil || state.Username == "" {
		return ErrInvalidSession
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+state.Username, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	index, _ := k.index()
	index[state.Username] = struct{}{}
	return k.saveIndex(index)
}

func (k *KeyringStore) Load(username string) (*SessionState, error) {
	if username == "" {
		return nil, ErrInvalidSession
	}
	data, err := keyring.Get(keyringService, keyringPrefix+username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

func (k *KeyringStore) List() ([]*SessionState, error) {
	index, err := k.index()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	sort.Strings(names)

	var states []*SessionState
	for _, name := range names {
		if s, err := k.Load(name); err == nil {
			states = append(states, s)
		}
	}
	return states, nil
}

func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidSession
	}
	if err := keyring.Delete(keyringService, keyringPrefix+username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	index, _ := k.index()
	delete(index, username)
	return k.saveIndex(index)
}

func (k *KeyringStore) index() (map[string]struct{}, error) {
	index := make(map[string]struct{})
	data, err := keyring.Get(keyringService, keyringIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return index, nil
		}
		return index, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return index, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	for _, n := range names {
		index[n] = struct{}{}
	}
	return index, nil
}

func (k *KeyringStore) saveIndex(index map[string]struct{}) error {
	names := make([]string, 0, len(index))
	for n := range index {
		names = append(names, n)
	}
	sort.Strings(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndexKey, string(data))
}

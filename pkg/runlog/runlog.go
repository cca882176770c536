package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"tagsync/pkg/logger"
)

// Status is the outcome of a run
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry records one finished run
type Entry struct {
	RunID      string    `json:"run_id"`
	BrandID    string    `json:"brand_id"`
	BrandName  string    `json:"brand_name"`
	TargetDay  string    `json:"target_day"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	StopReason string    `json:"stop_reason,omitempty"`
	Rounds     int       `json:"rounds"`
	Records    int       `json:"records"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	ExportPath string    `json:"export_path,omitempty"`
	ErrorType  string    `json:"error_type,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the run took
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

type ledger struct {
	Version   int              `json:"version"`
	UpdatedAt time.Time        `json:"updated_at"`
	Brands    map[string]Entry `json:"brands"`
}

// Manager keeps the last run of every brand in a JSON file
type Manager struct {
	path   string
	logger logger.Logger
	mu     sync.Mutex
}

// NewManager creates a manager writing to path, creating its directory
func NewManager(path string, log logger.Logger) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("run log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{path: path, logger: log}, nil
}

// Path returns the ledger file location
func (m *Manager) Path() string {
	return m.path
}

// Record stores entry as the latest run of its brand
func (m *Manager) Record(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.load()
	if err != nil {
		return err
	}
	l.Brands[entry.BrandID] = entry
	if err := m.save(l); err != nil {
		return err
	}

	m.logger.DebugWithFields("Run recorded", map[string]interface{}{
		"run_id":   entry.RunID,
		"brand_id": entry.BrandID,
		"status":   entry.Status,
	})
	return nil
}

// Last returns the latest run of brandID, or nil when it never ran
func (m *Manager) Last(brandID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.load()
	if err != nil {
		return nil, err
	}
	e, ok := l.Brands[brandID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// List returns the latest run of every brand, ordered by brand id
func (m *Manager) List() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.load()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(l.Brands))
	for _, e := range l.Brands {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].BrandID < entries[j].BrandID })
	return entries, nil
}

// Delete forgets brandID
func (m *Manager) Delete(brandID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.load()
	if err != nil {
		return err
	}
	if _, ok := l.Brands[brandID]; !ok {
		return nil
	}
	delete(l.Brands, brandID)
	return m.save(l)
}

func (m *Manager) load() (*ledger, error) {
	l := &ledger{Version: 1, Brands: make(map[string]Entry)}

	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(l); err != nil {
		return nil, fmt.Errorf("failed to decode run log: %w", err)
	}
	if l.Brands == nil {
		l.Brands = make(map[string]Entry)
	}
	return l, nil
}

// save writes the ledger to a temporary file and renames it into place
func (m *Manager) save(l *ledger) error {
	l.UpdatedAt = time.Now().UTC()

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary run log: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run log: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close run log: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace run log: %w", err)
	}
	return nil
}

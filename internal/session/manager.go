package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"greenprint/internal/logging"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when the session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// State is the mutable run state tracked per session.
type State struct {
	Session      *Session   `json:"session"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStep  string     `json:"current_step"`
	Error        string     `json:"error,omitempty"`
	PlaybookPath string     `json:"playbook_path,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Manager is the in-memory session registry. Each session's pipeline runs
// on its own goroutine and reports progress here; readers are the HTTP
// handlers. Sessions expire after the configured TTL.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*State
	ttl      time.Duration

	// onExpire runs outside the lock for each expired session, letting the
	// caller remove artifacts and playbook files.
	onExpire func(sessionID string)

	now func() time.Time
}

// NewManager creates a registry whose sessions expire ttl after creation.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// OnExpire registers a callback invoked with each expired session id.
func (m *Manager) OnExpire(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Add registers a new session in the created state.
func (m *Manager) Add(s *Session) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := &State{
		Session:     s,
		Status:      StatusCreated,
		Progress:    0,
		CurrentStep: "Initializing session",
	}
	m.sessions[s.ID] = state

	logging.Session("Session created: id=%s industry=%s framework=%s level=%s",
		s.ID, s.IndustryFocus, s.RegulatoryFramework, s.TrainingLevel)
	return state
}

// Get returns a snapshot of a session's state.
func (m *Manager) Get(sessionID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return State{}, ErrNotFound
	}
	return *state, nil
}

// List returns snapshots of all live sessions, newest first.
func (m *Manager) List() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]State, 0, len(m.sessions))
	for _, state := range m.sessions {
		out = append(out, *state)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Session.CreatedAt.After(out[j].Session.CreatedAt)
	})
	return out
}

// SetProgress records pipeline progress. Marks the session running on the
// first update.
func (m *Manager) SetProgress(sessionID string, progress int, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	if state.Status == StatusCreated {
		state.Status = StatusRunning
	}
	state.Progress = progress
	state.CurrentStep = step

	logging.Session("Session %s: %d%% - %s", sessionID, progress, step)
}

// Complete marks a session finished and records its playbook path.
func (m *Manager) Complete(sessionID, playbookPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	done := m.now().UTC()
	state.Status = StatusCompleted
	state.Progress = 100
	state.CurrentStep = "Training playbook ready"
	state.PlaybookPath = playbookPath
	state.CompletedAt = &done

	logging.Session("Session completed: id=%s playbook=%s", sessionID, playbookPath)
}

// Fail marks a session failed. Progress resets to zero so clients do not
// see a stale partial percentage alongside a failure.
func (m *Manager) Fail(sessionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	done := m.now().UTC()
	state.Status = StatusFailed
	state.Progress = 0
	state.Error = err.Error()
	state.CurrentStep = "Training failed: " + err.Error()
	state.CompletedAt = &done

	logging.Session("Session failed: id=%s error=%v", sessionID, err)
}

// Remove drops a session from the registry.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Cleanup removes sessions older than the TTL and returns how many were
// dropped. Expiry callbacks run after the lock is released.
func (m *Manager) Cleanup() int {
	cutoff := m.now().UTC().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	for id, state := range m.sessions {
		if state.Session.CreatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.sessions, id)
	}
	onExpire := m.onExpire
	m.mu.Unlock()

	for _, id := range expired {
		logging.Session("Session expired: id=%s", id)
		if onExpire != nil {
			onExpire(id)
		}
	}
	return len(expired)
}

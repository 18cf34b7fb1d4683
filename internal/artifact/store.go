package artifact

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"greenprint/internal/logging"
)

// ErrNotFound is returned by Get when no artifact exists for the key.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts in SQLite, one row per (session, stage).
// Writers replace on conflict, so re-running a stage is idempotent. The
// pipeline writes one session and one stage at a time in dependency order;
// the mutex only guards the handle against concurrent sessions.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore initializes the SQLite database at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		fields TEXT NOT NULL,
		valid INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, stage)
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create artifacts table: %w", err)
	}
	return nil
}

// Put stores an artifact, replacing any prior artifact for the same
// (session, stage) key.
func (s *Store) Put(a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := json.Marshal(a.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode artifact fields: %w", err)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO artifacts (session_id, stage, fields, valid, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.SessionID, string(a.Stage), string(fields), boolToInt(a.Valid), createdAt,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store artifact: session=%s stage=%s: %v", a.SessionID, a.Stage, err)
		return err
	}

	logging.StoreDebug("Artifact stored: session=%s stage=%s valid=%v size=%d",
		a.SessionID, a.Stage, a.Valid, len(fields))
	return nil
}

// Get retrieves the artifact for a (session, stage) key.
func (s *Store) Get(sessionID string, stage Stage) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fieldsJSON string
	var valid int
	var createdAt time.Time
	err := s.db.QueryRow(
		`SELECT fields, valid, created_at FROM artifacts WHERE session_id = ? AND stage = ?`,
		sessionID, string(stage),
	).Scan(&fieldsJSON, &valid, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode artifact fields: %w", err)
	}

	return &Artifact{
		SessionID: sessionID,
		Stage:     stage,
		Fields:    fields,
		Valid:     valid != 0,
		CreatedAt: createdAt,
	}, nil
}

// List returns a session's artifacts in stage dependency order.
func (s *Store) List(sessionID string) ([]*Artifact, error) {
	out := make([]*Artifact, 0, len(stageOrder))
	for _, stage := range stageOrder {
		a, err := s.Get(sessionID, stage)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Delete removes all artifacts for a session. Used by session cleanup.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM artifacts WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session artifacts: %w", err)
	}

	logging.StoreDebug("Artifacts deleted: session=%s", sessionID)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

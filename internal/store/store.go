// Package store implements the harness's only cross-session shared
// structure: a mapping from session id to Scratchpad, with atomic insert,
// lookup, and delete. Every Get returns the live pointer, not a copy — the
// spec's concurrency model gives each session exclusive ownership of its
// scratchpad between suspension points, so there is no racing reader to
// guard against the way the teacher's storage layer does with deep copies.
//
// A Store is in-memory only unless built with NewSQLite, which attaches a
// SQLite-backed write-through layer behind the same map: every mutation is
// applied to the map first (so readers never block on disk) and then
// persisted, mirroring the teacher's SQLiteStorage-wraps-MemoryStorage
// cache idiom in internal/storage/sqlite.go.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"thesisharness/internal/scratchpad"
)

// Store is a thread-safe session-id -> *scratchpad.Scratchpad map, with an
// optional SQLite-backed persistence layer bolted on by NewSQLite.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*scratchpad.Scratchpad

	db         *sql.DB
	stmtUpsert *sql.Stmt
	stmtDelete *sql.Stmt
}

// New creates an empty in-memory-only store.
func New() *Store {
	return &Store{sessions: make(map[string]*scratchpad.Scratchpad)}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// NewSQLite opens (creating if absent) a SQLite database at dbPath and
// returns a Store backed by it, warmed with every session already on disk.
// Every Insert/Put/Delete after this call writes through to the database;
// Get and List are served from the in-memory map alone, same as New.
func NewSQLite(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	stmtUpsert, err := db.Prepare(`
		INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = unixepoch()
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	stmtDelete, err := db.Prepare(`DELETE FROM sessions WHERE id = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare delete: %w", err)
	}

	s := &Store{
		sessions:   make(map[string]*scratchpad.Scratchpad),
		db:         db,
		stmtUpsert: stmtUpsert,
		stmtDelete: stmtDelete,
	}
	if err := s.warmFromDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("warm cache: %w", err)
	}
	return s, nil
}

// warmFromDB loads every persisted session's scratchpad into the in-memory
// map on startup, the way the teacher's SQLiteStorage.warmCache preloads
// recent thoughts before serving any request.
func (s *Store) warmFromDB() error {
	rows, err := s.db.Query(`SELECT id, data FROM sessions`)
	if err != nil {
		return fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scan session row: %w", err)
		}
		pad := &scratchpad.Scratchpad{}
		if err := json.Unmarshal(data, pad); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("dropping unreadable persisted session")
			continue
		}
		s.sessions[id] = pad
	}
	return rows.Err()
}

// persist writes a session's scratchpad to the database, when one is
// attached. Failures are logged, not returned: the in-memory map already
// reflects the write, and a caller mid-cycle shouldn't fail its pass
// because disk persistence lagged.
func (s *Store) persist(sessionID string, pad *scratchpad.Scratchpad) {
	if s.db == nil {
		return
	}
	data, err := json.Marshal(pad)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal scratchpad for persistence")
		return
	}
	if _, err := s.stmtUpsert.Exec(sessionID, data); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist scratchpad")
	}
}

// Insert adds a new session's scratchpad. It returns an error if the
// session id is already in use, since insert is meant for session creation
// only; use Put to overwrite an existing session after a resumed run.
func (s *Store) Insert(sessionID string, pad *scratchpad.Scratchpad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; exists {
		return fmt.Errorf("session already exists: %s", sessionID)
	}
	s.sessions[sessionID] = pad
	s.persist(sessionID, pad)
	return nil
}

// Put inserts or overwrites a session's scratchpad unconditionally.
func (s *Store) Put(sessionID string, pad *scratchpad.Scratchpad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = pad
	s.persist(sessionID, pad)
}

// Get looks up a session's scratchpad.
func (s *Store) Get(sessionID string) (*scratchpad.Scratchpad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pad, ok := s.sessions[sessionID]
	return pad, ok
}

// Delete removes a session. Deleting a missing session is a no-op.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	if s.db != nil {
		if _, err := s.stmtDelete.Exec(sessionID); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete persisted session")
		}
	}
}

// Close releases the database handle, when one is attached. Closing a
// Store built with New is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List returns all session ids in sorted order, for the MCP list-sessions
// tool and the HTTP health surface.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

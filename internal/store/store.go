// Package store implements the persistent local store: a key/value
// abstraction over a synchronous small-value tier and an asynchronous
// larger-capacity payload tier, both backed by SQLite.
//
// When the database cannot be opened or a write fails (no disk, read-only
// sandbox), the store transparently degrades to an in-memory map for the
// rest of the process lifetime. Callers never observe a storage failure,
// only a loss of durability, which is logged once.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"tempo/internal/logging"
)

// Store is the process-wide local store. All value-tier operations are
// synchronous; payload-tier writes are serviced by a background writer.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string

	// In-memory overlay. Holds everything in degraded mode; in normal mode
	// it only carries payloads that are queued but not yet flushed.
	mem         map[string]string
	memPayloads map[string][]byte
	degraded    bool

	writes chan payloadWrite
	doneWr chan struct{}
}

type payloadWrite struct {
	key  string
	data []byte
}

// Open initializes the store at the given path. It never fails: when the
// database is unavailable the returned store runs memory-only.
func Open(path string) *Store {
	s := &Store{
		dbPath:      path,
		mem:         make(map[string]string),
		memPayloads: make(map[string][]byte),
		writes:      make(chan payloadWrite, 64),
		doneWr:      make(chan struct{}),
	}

	db, err := openDatabase(path)
	if err != nil {
		logging.StoreWarn("persistence unavailable, running in-memory only: %v", err)
		s.degraded = true
	} else {
		s.db = db
		logging.Store("local store opened at %s", path)
	}

	go s.payloadWriter()
	return s
}

func openDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payloads (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Close flushes pending payload writes and closes the database.
func (s *Store) Close() error {
	close(s.writes)
	<-s.doneWr

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	logging.Store("closing local store")
	return s.db.Close()
}

// degrade switches the store to memory-only mode. Called with s.mu held.
func (s *Store) degrade(err error) {
	if s.degraded {
		return
	}
	logging.StoreWarn("persistence lost, degrading to in-memory store: %v", err)
	s.degraded = true
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.mem[key]; ok {
		return v, true
	}
	if s.degraded || s.db == nil {
		return "", false
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.StoreDebug("kv read failed for %s: %v", key, err)
		}
		return "", false
	}
	return value, true
}

// Set stores a value. Failures degrade to memory; callers never see them.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.degraded && s.db != nil {
		_, err := s.db.Exec(
			"INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, value)
		if err == nil {
			delete(s.mem, key)
			return
		}
		s.degrade(err)
	}
	s.mem[key] = value
}

// Remove deletes a key from both tiers.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.mem, key)
	if !s.degraded && s.db != nil {
		if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			s.degrade(err)
		}
	}
}

// GetJSON reads and unmarshals a stored JSON value into out. Returns false
// when the key is absent or the stored value does not parse.
func (s *Store) GetJSON(key string, out interface{}) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logging.StoreDebug("stored value for %s is not valid JSON: %v", key, err)
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.StoreWarn("failed to marshal value for %s: %v", key, err)
		return
	}
	s.Set(key, string(data))
}

// KeysWithPrefix returns every key starting with prefix, from both tiers.
func (s *Store) KeysWithPrefix(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var keys []string
	for k := range s.mem {
		if strings.HasPrefix(k, prefix) {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if s.degraded || s.db == nil {
		return keys
	}

	rows, err := s.db.Query("SELECT key FROM kv WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		logging.StoreDebug("key scan failed for prefix %s: %v", prefix, err)
		return keys
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// SetPayload stores a large value through the asynchronous tier. The write
// is visible to GetPayload immediately and persisted in the background.
func (s *Store) SetPayload(key string, data []byte) {
	s.mu.Lock()
	s.memPayloads[key] = data
	s.mu.Unlock()

	select {
	case s.writes <- payloadWrite{key: key, data: data}:
	default:
		// Queue full: persist synchronously rather than dropping the write.
		s.flushPayload(key, data)
	}
}

// GetPayload returns a payload value and whether it was present.
func (s *Store) GetPayload(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.memPayloads[key]; ok {
		return v, true
	}
	if s.degraded || s.db == nil {
		return nil, false
	}

	var value []byte
	err := s.db.QueryRow("SELECT value FROM payloads WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.StoreDebug("payload read failed for %s: %v", key, err)
		}
		return nil, false
	}
	return value, true
}

// RemovePayload deletes a payload from both tiers.
func (s *Store) RemovePayload(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.memPayloads, key)
	if !s.degraded && s.db != nil {
		if _, err := s.db.Exec("DELETE FROM payloads WHERE key = ?", key); err != nil {
			s.degrade(err)
		}
	}
}

// PayloadKeysWithPrefix returns payload keys starting with prefix.
func (s *Store) PayloadKeysWithPrefix(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var keys []string
	for k := range s.memPayloads {
		if strings.HasPrefix(k, prefix) {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if s.degraded || s.db == nil {
		return keys
	}

	rows, err := s.db.Query("SELECT key FROM payloads WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		logging.StoreDebug("payload key scan failed for prefix %s: %v", prefix, err)
		return keys
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Store) payloadWriter() {
	defer close(s.doneWr)
	for w := range s.writes {
		s.flushPayload(w.key, w.data)
	}
}

func (s *Store) flushPayload(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded || s.db == nil {
		return // stays in memPayloads
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO payloads (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		key, data)
	if err != nil {
		s.degrade(err)
		return
	}
	// Persisted; the overlay copy is no longer needed unless a newer write
	// for the same key is still queued. Overwriting order is preserved by
	// the single writer goroutine.
	if cur, ok := s.memPayloads[key]; ok && string(cur) == string(data) {
		delete(s.memPayloads, key)
	}
}

// Degraded reports whether the store has lost persistence.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Stats returns row counts for the store tables.
func (s *Store) Stats() map[string]int64 {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int64{
		"mem_keys":     int64(len(s.mem)),
		"mem_payloads": int64(len(s.memPayloads)),
	}
	if s.degraded || s.db == nil {
		return stats
	}
	for _, table := range []string{"kv", "payloads"} {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats
}

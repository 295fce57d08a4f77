// Package datastore provides generic document storage over SQLite: one
// database file per logical location, collections as keyed JSON documents.
// Raw, common, and summary collections are subsystem-exclusive, so no
// cross-call locking is needed beyond per-document transactions.
package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);`

// Manager owns one database handle per logical location. Handles are created
// on first use, reused for every later call to the same location, and torn
// down together on shutdown. Always injected, never package state.
type Manager struct {
	dataDir string

	mu      sync.Mutex
	handles map[string]*sql.DB
}

func NewManager(dataDir string) *Manager {
	return &Manager{
		dataDir: dataDir,
		handles: map[string]*sql.DB{},
	}
}

// Handle returns the cached database for a location, opening it on first
// use.
func (m *Manager) Handle(location string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.handles[location]; ok {
		return db, nil
	}

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(m.dataDir, location+".db")
	// No shared cache: writers in shared-cache mode fail with SQLITE_LOCKED,
	// which busy_timeout does not retry. WAL plus busy_timeout serialize
	// concurrent writers across connections.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", location, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare datastore %s: %w", location, err)
	}

	m.handles[location] = db
	return db, nil
}

// Close tears down every open handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for location, db := range m.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close datastore %s: %w", location, err)
		}
		delete(m.handles, location)
	}
	return firstErr
}

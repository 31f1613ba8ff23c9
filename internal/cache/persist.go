package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// snapshotMagic and snapshotVersion are written into every persisted row so
// a future schema change (or a snapshot from an incompatible build) is
// recognized and discarded rather than misread.
const (
	snapshotMagic   = "cgsnap1"
	snapshotVersion = 1
)

// debounceWindow is the coalescing delay between a cache mutation and the
// snapshot write it triggers.
const debounceWindow = 5 * time.Second

// Store persists cache-snapshot rows to a project-local sqlite database
// (WAL mode, pragma tuning, schema ensured on open).
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) the sqlite snapshot database at
// dbPath. Raw responses and symbol trees share one database rather than
// one flat file per URI, which is simpler to keep consistent under the
// debounced background writer.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", p, err)
		}
	}
	if err := ensureSnapshotSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSnapshotSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_symbols (
			uri TEXT NOT NULL,
			hash TEXT NOT NULL,
			magic TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			body BLOB NOT NULL,
			PRIMARY KEY (uri, hash)
		);`,
		`CREATE TABLE IF NOT EXISTS symbol_trees (
			uri TEXT NOT NULL,
			hash TEXT NOT NULL,
			magic TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			body BLOB NOT NULL,
			PRIMARY KEY (uri, hash)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure snapshot schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRaw persists a raw documentSymbol response snapshot, overwriting any
// prior snapshot for the same (uri, hash).
func (s *Store) SaveRaw(uri, hash string, body json.RawMessage) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO raw_symbols(uri, hash, magic, version, created_at, body) VALUES(?, ?, ?, ?, ?, ?);`,
		uri, hash, snapshotMagic, snapshotVersion, time.Now().UTC().Format(time.RFC3339), []byte(body),
	)
	return err
}

// LoadRaw reads back a snapshot, returning (nil, false) if absent or if
// its magic/version don't match what this build writes; unknown snapshots
// are silently discarded rather than surfaced as an error.
func (s *Store) LoadRaw(uri, hash string) (json.RawMessage, bool) {
	var magic string
	var version int
	var body []byte
	row := s.db.QueryRow(`SELECT magic, version, body FROM raw_symbols WHERE uri = ? AND hash = ?;`, uri, hash)
	if err := row.Scan(&magic, &version, &body); err != nil {
		return nil, false
	}
	if magic != snapshotMagic || version != snapshotVersion {
		return nil, false
	}
	return json.RawMessage(body), true
}

// SaveTree persists a pre-serialized symbol tree snapshot.
func (s *Store) SaveTree(uri, hash string, body []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO symbol_trees(uri, hash, magic, version, created_at, body) VALUES(?, ?, ?, ?, ?, ?);`,
		uri, hash, snapshotMagic, snapshotVersion, time.Now().UTC().Format(time.RFC3339), body,
	)
	return err
}

// LoadTree reads back a tree snapshot, discarding on magic/version mismatch
// exactly as LoadRaw does.
func (s *Store) LoadTree(uri, hash string) ([]byte, bool) {
	var magic string
	var version int
	var body []byte
	row := s.db.QueryRow(`SELECT magic, version, body FROM symbol_trees WHERE uri = ? AND hash = ?;`, uri, hash)
	if err := row.Scan(&magic, &version, &body); err != nil {
		return nil, false
	}
	if magic != snapshotMagic || version != snapshotVersion {
		return nil, false
	}
	return body, true
}

// Persister coalesces cache mutations into periodic background snapshot
// flushes. Callers call MarkDirty on
// every mutation; Persister batches them into one flush per window instead
// of writing on every call.
type Persister struct {
	mu      sync.Mutex
	dirty   bool
	store   *Store
	flushFn func(*Store) error
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPersister starts a background goroutine that calls flushFn at most
// once per debounce window while dirty, and once more on Stop for a final
// clean-shutdown flush.
func NewPersister(store *Store, flushFn func(*Store) error) *Persister {
	p := &Persister{
		store:   store,
		flushFn: flushFn,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Persister) loop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.flushIfDirty()
		case <-p.stopCh:
			p.flushIfDirty()
			return
		}
	}
}

func (p *Persister) flushIfDirty() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	p.dirty = false
	p.mu.Unlock()
	_ = p.flushFn(p.store)
}

// MarkDirty records that a flush is owed on the next tick.
func (p *Persister) MarkDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// Stop halts the background loop after one final flush if dirty, for a
// clean shutdown.
func (p *Persister) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// Persisted keys. Everything the timer stores lives under the focus-timer. prefix.
const (
	KeyStartTimestamp         = "focus-timer.start-timestamp"
	KeyInitialDuration        = "focus-timer.initial-duration"
	KeyMode                   = "focus-timer.mode"
	KeyIsActive               = "focus-timer.is-active"
	KeyCompletedFocusSessions = "focus-timer.completed-focus-sessions"
)

// ErrUnavailable is returned by read APIs that must report a missing backing store
var ErrUnavailable = errors.New("storage unavailable")

// Store is the key/value contract used by the timer. Implementations never fail:
// Save becomes a no-op and Load returns the default when the backing store is broken.
type Store interface {
	Save(key, value string)
	Load(key, def string) string
	ClearAll()
}

// Entry is one raw persisted pair
type Entry struct {
	Key   string
	Value string
}

// KV is a Store backed by a SQL table
type KV struct {
	db     *sql.DB
	logger *log.Logger
}

// Open returns a KV for the given options. When the database cannot be opened
// the returned KV is still usable but stores nothing.
func Open(opts Options, logger *log.Logger) *KV {
	if logger == nil {
		logger = log.Default()
	}
	db, err := openDB(opts)
	if err != nil {
		logger.Warn("storage unavailable, state will not persist", "driver", opts.Driver, "path", opts.Path, "err", err)
		return &KV{logger: logger}
	}
	logger.Debug("storage opened", "driver", opts.Driver, "path", opts.Path)
	return &KV{db: db, logger: logger}
}

// Available reports whether writes reach a database
func (s *KV) Available() bool {
	return s != nil && s.db != nil
}

// Close releases the database
func (s *KV) Close() error {
	if !s.Available() {
		return nil
	}
	return s.db.Close()
}

func (s *KV) Save(key, value string) {
	if !s.Available() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		s.logger.Debug("save failed", "key", key, "err", err)
	}
}

func (s *KV) Load(key, def string) string {
	if !s.Available() {
		return def
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("load failed", "key", key, "err", err)
		}
		return def
	}
	return value
}

func (s *KV) ClearAll() {
	if !s.Available() {
		return
	}
	if _, err := s.db.Exec(`DELETE FROM kv`); err != nil {
		s.logger.Debug("clear failed", "err", err)
	}
}

// Entries returns every persisted pair ordered by key
func (s *KV) Entries() ([]Entry, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	rows, err := s.db.Query(`SELECT key, value FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Package archive keeps every exported session in a SQLite file. It is write
// history only; nothing is ever loaded back into a running session.
package archive

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/caster"
	"kartpitsbot/pkg/model"
)

var ErrNotFound = errors.New("export not found")

type Entry struct {
	ID         int64     `json:"id"`
	ExportedAt time.Time `json:"exportedAt"`
	Karts      int       `json:"karts"`
	Teams      int       `json:"teams"`
	Bytes      int       `json:"bytes"`
}

type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	caster caster.ChannelCaster[model.State]
	logger *slog.Logger
}

// Open creates the database file and its table if needed. ":memory:" works
// for throwaway stores.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create archive directory")
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", path)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(buildCreateExportsTable()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init archive")
	}
	logger.Info("export archive ready", "path", path)
	return &Store{db: db, caster: caster.JSONChannelCaster[model.State]{}, logger: logger}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save stores an exported state and returns its archive entry.
func (s *Store) Save(state model.State) (Entry, error) {
	payload, err := s.caster.To(state)
	if err != nil {
		return Entry{}, errors.Wrap(err, "encode export")
	}
	at := state.ExportedAt
	if at.IsZero() {
		at = time.Now()
	}
	entry := Entry{ExportedAt: at.UTC(), Karts: len(state.Karts), Teams: len(state.Teams), Bytes: len(payload)}

	s.mu.Lock()
	defer s.mu.Unlock()

	query, args := buildInsertExport(entry, payload)
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return Entry{}, errors.Wrap(err, "insert export")
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, errors.Wrap(err, "insert export")
	}
	s.logger.Info("export archived", "id", entry.ID, "karts", entry.Karts, "teams", entry.Teams)
	return entry, nil
}

// List returns the newest entries first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query, read := buildSelectExports()
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list exports")
	}
	return read(rows)
}

// Payload returns the JSON document of one export.
func (s *Store) Payload(id int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	err := s.db.QueryRow(buildSelectPayload(), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "export %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read export")
	}
	return payload, nil
}

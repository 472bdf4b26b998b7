// FILE: repertoire/internal/server/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"repertoire/internal/server/core"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	writeQueueSize   = 1000
	drainTimeout     = 2 * time.Second
	sqliteBusyMillis = 5000
)

// writeRequest is one transactional unit for the writer goroutine. done is
// nil for fire-and-forget writes.
type writeRequest struct {
	fn   func(*sql.Tx) error
	done chan error
}

// Store owns the SQLite database. All writes go through a single writer
// goroutine so multi-statement operations commit atomically and never race
// each other; reads use the connection pool directly.
type Store struct {
	db           *sql.DB
	path         string
	log          zerolog.Logger
	writeChan    chan writeRequest
	healthStatus atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	stopped      chan struct{}
}

// NewStore opens the database at path and starts the writer.
func NewStore(path string, wal bool, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if wal {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return newStore(db, path, log), nil
}

func newStore(db *sql.DB, path string, log zerolog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      path,
		log:       log.With().Str("component", "storage").Logger(),
		writeChan: make(chan writeRequest, writeQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	s.healthStatus.Store(true)

	s.wg.Add(1)
	go s.writerLoop()

	return s
}

// dsn adds per-connection pragmas so every pooled connection enforces
// foreign keys, not only the one that ran the PRAGMA.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return fmt.Sprintf("%s%s_foreign_keys=on&_busy_timeout=%d", path, sep, sqliteBusyMillis)
}

// IsHealthy returns true if the storage is operational
func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load()
}

func (s *Store) writerLoop() {
	defer s.wg.Done()
	defer close(s.stopped)

	for {
		select {
		case <-s.ctx.Done():
			// Run what is already queued; later writers see stopped
			for {
				select {
				case req := <-s.writeChan:
					s.handle(req)
				default:
					return
				}
			}

		case req := <-s.writeChan:
			s.handle(req)
		}
	}
}

func (s *Store) handle(req writeRequest) {
	if req.done == nil {
		// Async writes are dropped while degraded
		if !s.healthStatus.Load() {
			return
		}
		if err := s.executeWrite(req.fn); err != nil {
			s.log.Warn().Err(err).Msg("storage degraded: async write failed")
			s.healthStatus.Store(false)
		}
		return
	}
	req.done <- s.executeWrite(req.fn)
}

// executeWrite runs fn in a transaction. Infrastructure failures flip the
// health flag; a successful commit restores it.
func (s *Store) executeWrite(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.Warn().Err(err).Msg("storage degraded: failed to begin transaction")
		s.healthStatus.Store(false)
		return fmt.Errorf("%w: begin: %v", core.ErrStorageUnavailable, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		s.log.Warn().Err(err).Msg("storage degraded: failed to commit")
		s.healthStatus.Store(false)
		return fmt.Errorf("%w: commit: %v", core.ErrStorageUnavailable, err)
	}

	s.healthStatus.Store(true)
	return nil
}

// write runs fn on the writer goroutine and waits for the commit.
func (s *Store) write(ctx context.Context, fn func(*sql.Tx) error) error {
	req := writeRequest{fn: fn, done: make(chan error, 1)}

	select {
	case s.writeChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("%w: store closed", core.ErrStorageUnavailable)
	}

	select {
	case err := <-req.done:
		return err
	case <-s.stopped:
		select {
		case err := <-req.done:
			return err
		default:
			return fmt.Errorf("%w: store closed before write ran", core.ErrStorageUnavailable)
		}
	}
}

// enqueue schedules fn without waiting. Writes are dropped when the queue is
// full or storage is degraded.
func (s *Store) enqueue(fn func(*sql.Tx) error) {
	if !s.healthStatus.Load() {
		return
	}

	select {
	case <-s.ctx.Done():
		return
	default:
	}

	select {
	case s.writeChan <- writeRequest{fn: fn}:
	default:
		s.log.Warn().Msg("storage write queue full, dropping record")
	}
}

// Close gracefully closes the database connection
func (s *Store) Close() error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		s.log.Warn().Msg("storage writer shutdown timeout, some writes may be lost")
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitDB applies pending schema migrations.
func (s *Store) InitDB() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// DeleteDB removes the database file
func (s *Store) DeleteDB() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	// DESTRUCTIVE: removes the database file and its WAL companions
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete database file: %w", err)
		}
	}

	return nil
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

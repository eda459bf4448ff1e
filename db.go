package stashy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	_ "github.com/jackc/pgx/v5/stdlib" // postgresql driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// dbType identifies the SQL engine behind a DB stash.
type dbType int

const (
	dbTypeSQLite dbType = iota
	dbTypePostgres
)

// rwLocker abstracts in-process locking around database access. SQLite needs
// serialization of writers inside the process, PostgreSQL handles concurrency
// on the server so a noop locker is used.
type rwLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// noopLocker is an rwLocker that does nothing.
type noopLocker struct{}

func (noopLocker) Lock()    {}
func (noopLocker) Unlock()  {}
func (noopLocker) RLock()   {}
func (noopLocker) RUnlock() {}

// DB is a Stash persisted in SQLite or PostgreSQL. Stash runs the
// previous-value read and the upsert inside one transaction, Delete uses
// DELETE ... RETURNING, so both keep the capability's exchange semantics.
type DB struct {
	db     *sqlx.DB
	dbType dbType
	mu     rwLocker
}

// interface check
var _ Stash = (*DB)(nil)

// NewDB creates a new DB stash with the given database URL.
// Automatically detects database type from URL:
// - postgres:// or postgresql:// -> PostgreSQL
// - everything else -> SQLite
func NewDB(dbURL string) (*DB, error) {
	typ := detectDBType(dbURL)

	var db *sqlx.DB
	var err error
	var locker rwLocker

	switch typ {
	case dbTypePostgres:
		db, err = connectPostgres(dbURL)
		locker = noopLocker{}
	default:
		db, err = connectSQLite(dbURL)
		locker = &sync.RWMutex{}
	}

	if err != nil {
		return nil, err
	}

	s := &DB{db: db, dbType: typ, mu: locker}

	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[DEBUG] initialized %s stash", s.dbTypeName())
	return s, nil
}

// detectDBType determines database type from URL.
func detectDBType(url string) dbType {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return dbTypePostgres
	}
	return dbTypeSQLite
}

// connectSQLite establishes SQLite connection with pragmas.
func connectSQLite(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// set pragmas for performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// limit connections for SQLite (single writer)
	db.SetMaxOpenConns(1)

	return db, nil
}

// connectPostgres establishes PostgreSQL connection.
func connectPostgres(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// set reasonable connection pool defaults
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// createSchema creates the stash table if it doesn't exist.
func (s *DB) createSchema() error {
	var schema string
	switch s.dbType {
	case dbTypePostgres:
		schema = `
			CREATE TABLE IF NOT EXISTS stash (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT NOW(),
				updated_at TIMESTAMP DEFAULT NOW()
			)`
	default:
		schema = `
			CREATE TABLE IF NOT EXISTS stash (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// dbTypeName returns human-readable database type name.
func (s *DB) dbTypeName() string {
	switch s.dbType {
	case dbTypePostgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// Fetch returns the value stored under key, absence is a miss, not an error.
func (s *DB) Fetch(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	query := s.adoptQuery("SELECT value FROM stash WHERE key = ?")
	err := s.db.GetContext(ctx, &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to fetch key %q: %w", key, err))
	}
	return value, true, nil
}

// Stash validates key, stores value and returns the previous value if the
// key already existed. The read of the previous value and the upsert run in
// one transaction, on PostgreSQL the existing row is locked for the duration.
func (s *DB) Stash(ctx context.Context, key, value string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := "SELECT value FROM stash WHERE key = ?"
	if s.dbType == dbTypePostgres {
		selectQuery += " FOR UPDATE"
	}

	var prev string
	found := true
	err = tx.GetContext(ctx, &prev, s.adoptQuery(selectQuery), key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return "", false, backendErr(fmt.Errorf("failed to read previous value for key %q: %w", key, err))
	}

	now := time.Now().UTC()
	var query string
	switch s.dbType {
	case dbTypePostgres:
		query = `
			INSERT INTO stash (key, value, created_at, updated_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT(key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	default:
		query = `
			INSERT INTO stash (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	}
	if _, err := tx.ExecContext(ctx, query, key, value, now, now); err != nil {
		return "", false, backendErr(fmt.Errorf("failed to stash key %q: %w", key, err))
	}

	if err := tx.Commit(); err != nil {
		return "", false, backendErr(fmt.Errorf("failed to commit stash of key %q: %w", key, err))
	}
	return prev, found, nil
}

// Delete removes the entry for key and returns the removed value if the key
// existed.
func (s *DB) Delete(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed string
	query := s.adoptQuery("DELETE FROM stash WHERE key = ? RETURNING value")
	err := s.db.GetContext(ctx, &removed, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to delete key %q: %w", key, err))
	}
	return removed, true, nil
}

// Close closes the database connection.
func (s *DB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// adoptQuery converts SQLite placeholders (?) to PostgreSQL ($1, $2, ...).
func (s *DB) adoptQuery(query string) string {
	if s.dbType != dbTypePostgres {
		return query
	}

	result := make([]byte, 0, len(query)+10)
	paramNum := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", paramNum)...)
			paramNum++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

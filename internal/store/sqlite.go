package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blrlabs/codelab/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
	// Serializes the read-merge-write of the completed mapping so two
	// concurrent advancing turns for the same user cannot lose an update.
	progressMu sync.Mutex
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS progress (
		username TEXT PRIMARY KEY,
		current_goal TEXT NOT NULL DEFAULT '',
		current_module TEXT NOT NULL DEFAULT '',
		completed_json TEXT NOT NULL DEFAULT '{}',
		last_updated INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureUser creates an empty progress record if none exists.
func (s *SQLiteStore) EnsureUser(ctx context.Context, username string) error {
	query := `
	INSERT INTO progress (username, current_goal, current_module, completed_json, last_updated)
	VALUES (?, '', '', '{}', ?)
	ON CONFLICT(username) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, username, time.Now().Unix()); err != nil {
		return fmt.Errorf("ensure user %s: %w", username, err)
	}
	return nil
}

// GetProgress retrieves the progress record for a username.
func (s *SQLiteStore) GetProgress(ctx context.Context, username string) (*domain.Progress, error) {
	query := `
		SELECT username, current_goal, current_module, completed_json, last_updated
		FROM progress WHERE username = ?`

	row := s.db.QueryRowContext(ctx, query, username)

	var p domain.Progress
	var completedJSON string
	var lastUpdated int64

	err := row.Scan(&p.Username, &p.CurrentGoal, &p.CurrentModule, &completedJSON, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress row: %w", err)
	}

	if err := json.Unmarshal([]byte(completedJSON), &p.Completed); err != nil {
		return nil, fmt.Errorf("decode completed modules for %s: %w", username, err)
	}
	if p.Completed == nil {
		p.Completed = make(map[string]domain.ModuleCompletion)
	}
	p.LastUpdated = time.Unix(lastUpdated, 0)

	return &p, nil
}

// SaveProgress overwrites the goal/module pointer and merges the completion
// into the accumulated completed mapping.
func (s *SQLiteStore) SaveProgress(ctx context.Context, username, goal, module string, completion domain.ModuleCompletion) error {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	current, err := s.GetProgress(ctx, username)
	if err != nil {
		return fmt.Errorf("load progress before save: %w", err)
	}

	completed := make(map[string]domain.ModuleCompletion)
	if current != nil {
		completed = current.Completed
	}
	if completion.Module != "" {
		if _, done := completed[completion.Module]; !done {
			completed[completion.Module] = completion
		}
	}

	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("encode completed modules: %w", err)
	}

	query := `
	INSERT INTO progress (username, current_goal, current_module, completed_json, last_updated)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(username) DO UPDATE SET
		current_goal = excluded.current_goal,
		current_module = excluded.current_module,
		completed_json = excluded.completed_json,
		last_updated = excluded.last_updated`

	_, err = s.db.ExecContext(ctx, query, username, goal, module, string(completedJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save progress for %s: %w", username, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

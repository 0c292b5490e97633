// Package sqlite implements directory.Store on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var schemaVersion = len(migrations)

// Store is a directory.Store backed by a single SQLite database file.
type Store struct {
	conn   *sql.DB
	logger *zap.Logger
	path   string
}

// Open opens or creates the database at path and brings the schema up to date.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; acceptance transactions serialize on this connection.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{conn: conn, logger: logger, path: path}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Debug("sqlite store ready", zap.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(err), zap.NamedError("rollback_error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// migrations[i] brings the schema from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS profiles (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			user_type TEXT NOT NULL,
			technologies TEXT NOT NULL DEFAULT '[]',
			bio TEXT NOT NULL DEFAULT '',
			years_of_experience INTEGER NOT NULL DEFAULT 0,
			rating REAL NOT NULL DEFAULT 0,
			total_mentees INTEGER NOT NULL DEFAULT 0,
			availability TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_user_type ON profiles(user_type)`,
		`CREATE TABLE IF NOT EXISTS mentorships (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			mentee_id TEXT NOT NULL,
			technologies TEXT NOT NULL DEFAULT '[]',
			challenge_description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			mentor_id TEXT NOT NULL DEFAULT '',
			invited_mentor_ids TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentorships_status ON mentorships(status)`,
		`CREATE TABLE IF NOT EXISTS invitations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			mentorship_id TEXT NOT NULL REFERENCES mentorships(id),
			mentor_id TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			responded_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_mentorship ON invitations(mentorship_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_mentor ON invitations(mentor_id)`,
	},
	{
		// One invitation per mentor and mentorship; the oldest duplicate wins.
		`DELETE FROM invitations WHERE seq NOT IN (
			SELECT MIN(seq) FROM invitations GROUP BY mentorship_id, mentor_id
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_pair ON invitations(mentorship_id, mentor_id)`,
	},
}

func (s *Store) migrate(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
			return fmt.Errorf("create schema_version: %w", err)
		}

		var current int
		err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if current >= schemaVersion {
			return nil
		}

		for version := current; version < schemaVersion; version++ {
			for _, stmt := range migrations[version] {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("apply schema version %d: %w", version+1, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}

		s.logger.Info("database schema migrated",
			zap.String("path", s.path),
			zap.Int("from_version", current),
			zap.Int("version", schemaVersion),
		)
		return nil
	})
}

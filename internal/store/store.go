// Package store provides the SQLite data source for students, progress
// reports, and answers.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS User (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		studentId TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'STUDENT',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		sede TEXT NOT NULL DEFAULT '',
		academicYear TEXT NOT NULL DEFAULT '',
		division TEXT NOT NULL DEFAULT '',
		subjects TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS ProgressReport (
		id TEXT PRIMARY KEY,
		userId TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		weekStart TEXT NOT NULL DEFAULT '',
		weekEnd TEXT NOT NULL DEFAULT '',
		submittedAt TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (userId) REFERENCES User(id)
	);

	CREATE TABLE IF NOT EXISTS Answer (
		id TEXT PRIMARY KEY,
		progressReportId TEXT NOT NULL,
		questionId TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (progressReportId) REFERENCES ProgressReport(id)
	);

	CREATE INDEX IF NOT EXISTS idx_progress_report_user ON ProgressReport(userId);
	CREATE INDEX IF NOT EXISTS idx_progress_report_submitted ON ProgressReport(submittedAt);
	CREATE INDEX IF NOT EXISTS idx_answer_report ON Answer(progressReportId);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Package history persists terminal run outcomes in a local SQLite database
// and serves the history view and its aggregate summary.
package history

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ideaforge/ideaforge/internal/pipeline"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run history persistence.
type Store struct {
	db *sql.DB
}

// New opens or creates the history database at the given path. An unreadable
// existing database is moved aside and replaced with a fresh one: run history
// is a convenience record, never worth blocking the next run over.
func New(dbPath string) (*Store, error) {
	s, err := open(dbPath)
	if err == nil {
		return s, nil
	}
	if dbPath == ":memory:" {
		return nil, err
	}

	aside := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	if renameErr := os.Rename(dbPath, aside); renameErr != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	log.Printf("history database unreadable, moved aside to %s: %v", aside, err)
	return open(dbPath)
}

func open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one terminal run record. Non-terminal records are rejected:
// the controller appends exactly once, at the end of a run.
func (s *Store) Append(rec *pipeline.RunRecord) error {
	if !rec.Status.Terminal() {
		return fmt.Errorf("refusing to store non-terminal run %s (%s)", rec.ID, rec.Status)
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, created_at, status, project_title, description, epics_count, features_count, repo_url, elapsed_seconds, error, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.CreatedAt,
		string(rec.Status),
		rec.ProjectTitle,
		rec.Description,
		rec.EpicsCount,
		rec.FeaturesCount,
		rec.RepoURL,
		rec.ElapsedSeconds,
		rec.Error,
		rec.Degraded,
	)
	return err
}

// Recent returns up to n records, newest first. n <= 0 returns everything.
func (s *Store) Recent(n int) ([]pipeline.RunRecord, error) {
	query := `
		SELECT id, created_at, status, project_title, description, epics_count, features_count, repo_url, elapsed_seconds, error, degraded
		FROM runs ORDER BY seq DESC
	`
	var args []interface{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []pipeline.RunRecord
	for rows.Next() {
		var rec pipeline.RunRecord
		var status string
		if err := rows.Scan(
			&rec.ID,
			&rec.CreatedAt,
			&status,
			&rec.ProjectTitle,
			&rec.Description,
			&rec.EpicsCount,
			&rec.FeaturesCount,
			&rec.RepoURL,
			&rec.ElapsedSeconds,
			&rec.Error,
			&rec.Degraded,
		); err != nil {
			return nil, err
		}
		rec.Status = pipeline.RunStatus(status)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Aggregate summarizes the stored history.
type Aggregate struct {
	Total             int
	Successful        int
	AvgElapsedSeconds float64
	TotalFeatures     int
}

// Summary computes the aggregate over all stored runs. An empty store yields
// a zero aggregate, not an error.
func (s *Store) Summary() (Aggregate, error) {
	var agg Aggregate
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(elapsed_seconds), 0),
			COALESCE(SUM(features_count), 0)
		FROM runs
	`).Scan(&agg.Total, &agg.Successful, &agg.AvgElapsedSeconds, &agg.TotalFeatures)
	if err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

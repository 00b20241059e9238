package store

import (
	"database/sql"
	"time"
)

// IngestRun is one provider fetch job, kept for auditing and /health.
type IngestRun struct {
	ID            int64          `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    sql.NullTime   `json:"-"`
	Source        string         `json:"source"`   // "open-meteo", "nws", "usno"
	Endpoint      string         `json:"endpoint"` // "forecast", "history/backfill", ...
	LocationKey   sql.NullString `json:"-"`
	RecordsStored sql.NullInt64  `json:"-"`
	Success       bool           `json:"success"`
	ErrorMessage  sql.NullString `json:"-"`
}

// Fail marks the run failed with err.
func (r *IngestRun) Fail(err error) {
	if r == nil || err == nil {
		return
	}
	r.Success = false
	r.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
}

// Succeed marks the run successful with n stored records.
func (r *IngestRun) Succeed(n int) {
	if r == nil {
		return
	}
	r.Success = true
	r.RecordsStored = sql.NullInt64{Int64: int64(n), Valid: true}
}

func (s *Store) StartIngestRun(source, endpoint, locationKey string) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt: s.now().UTC(),
		Source:    source,
		Endpoint:  endpoint,
	}
	if locationKey != "" {
		run.LocationKey = sql.NullString{String: locationKey, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (started_at, source, endpoint, location_key, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.Endpoint, run.LocationKey)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: s.now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE ingest_runs SET
			finished_at = ?,
			records_stored = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsStored, run.Success, run.ErrorMessage, run.ID)
	return err
}

// IngestError is the public view of a failed run.
type IngestError struct {
	StartedAt   time.Time `json:"started_at"`
	Source      string    `json:"source"`
	Endpoint    string    `json:"endpoint"`
	LocationKey string    `json:"location_key,omitempty"`
	Message     string    `json:"message"`
}

// GetRecentIngestErrors returns the most recent failed runs, newest first.
func (s *Store) GetRecentIngestErrors(limit int) ([]IngestError, error) {
	rows, err := s.db.Query(`
		SELECT started_at, source, endpoint, location_key, error_message
		FROM ingest_runs
		WHERE success = FALSE AND finished_at IS NOT NULL
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []IngestError{}
	for rows.Next() {
		var e IngestError
		var key, msg sql.NullString
		if err := rows.Scan(&e.StartedAt, &e.Source, &e.Endpoint, &key, &msg); err != nil {
			return nil, err
		}
		e.LocationKey = key.String
		e.Message = msg.String
		results = append(results, e)
	}
	return results, rows.Err()
}

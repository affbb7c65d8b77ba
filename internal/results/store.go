// Package results persists ranking sessions and their per-attempt outcomes
// in SQLite, so rejected-and-retried trials leave an inspectable trail.
package results

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS ranking_sessions (
	session_id       TEXT PRIMARY KEY,
	option_count     INTEGER NOT NULL,
	flash_count      INTEGER NOT NULL,
	outcome          TEXT NOT NULL DEFAULT 'active',
	attempts         INTEGER NOT NULL DEFAULT 0,
	best_option_id   INTEGER,
	best_confidence  REAL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ranking_attempts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	attempt_num   INTEGER NOT NULL,
	accepted      INTEGER NOT NULL DEFAULT 0,
	separation    REAL NOT NULL,
	sample_count  INTEGER NOT NULL,
	option_ids    TEXT NOT NULL,
	confidences   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES ranking_sessions(session_id)
);

CREATE INDEX IF NOT EXISTS idx_ranking_attempts_session
ON ranking_attempts(session_id, attempt_num);
`

// #endregion

// #region records

// SessionOutcome is the terminal disposition of a ranking session.
type SessionOutcome string

const (
	OutcomeActive     SessionOutcome = "active"
	OutcomeAccepted   SessionOutcome = "accepted"
	OutcomeAborted    SessionOutcome = "aborted"
	OutcomeNoConverge SessionOutcome = "no_convergence"
)

// SessionRecord is one ranking request's row.
type SessionRecord struct {
	SessionID      string
	OptionCount    int
	FlashCount     int
	Outcome        SessionOutcome
	Attempts       int
	BestOptionID   int
	BestConfidence float64
	CreatedAt      time.Time
}

// AttemptRecord is one scoring pass within a session.
type AttemptRecord struct {
	SessionID   string
	AttemptNum  int
	Accepted    bool
	Separation  float64
	SampleCount int
	OptionIDs   []int
	Confidences []float64
	CreatedAt   time.Time
}

// #endregion

// #region store-struct

// Store manages ranking history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion

// #region create-session

// CreateSession inserts an active session row and returns its id.
func (s *Store) CreateSession(optionCount, flashCount int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO ranking_sessions (session_id, option_count, flash_count, outcome, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, optionCount, flashCount, string(OutcomeActive), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// #endregion

// #region record-attempt

// RecordAttempt persists a single scoring pass.
func (s *Store) RecordAttempt(rec AttemptRecord) error {
	ids, err := json.Marshal(rec.OptionIDs)
	if err != nil {
		return fmt.Errorf("marshal option ids: %w", err)
	}
	confs, err := json.Marshal(rec.Confidences)
	if err != nil {
		return fmt.Errorf("marshal confidences: %w", err)
	}
	accepted := 0
	if rec.Accepted {
		accepted = 1
	}
	sep := rec.Separation
	if math.IsInf(sep, 1) {
		sep = math.MaxFloat64
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO ranking_attempts
		(session_id, attempt_num, accepted, separation, sample_count, option_ids, confidences, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.AttemptNum, accepted, sep, rec.SampleCount,
		string(ids), string(confs), createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// #endregion

// #region finish-session

// FinishSession records a session's terminal outcome. bestOptionID and
// bestConfidence only carry meaning for OutcomeAccepted.
func (s *Store) FinishSession(sessionID string, outcome SessionOutcome, attempts, bestOptionID int, bestConfidence float64) error {
	_, err := s.db.Exec(`
		UPDATE ranking_sessions
		SET outcome = ?, attempts = ?, best_option_id = ?, best_confidence = ?
		WHERE session_id = ?`,
		string(outcome), attempts, bestOptionID, bestConfidence, sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// #endregion

// #region queries

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, option_count, flash_count, outcome, attempts,
		       COALESCE(best_option_id, 0), COALESCE(best_confidence, 0), created_at
		FROM ranking_sessions
		ORDER BY created_at DESC, session_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var recs []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var outcome, createdAt string
		if err := rows.Scan(&rec.SessionID, &rec.OptionCount, &rec.FlashCount, &outcome,
			&rec.Attempts, &rec.BestOptionID, &rec.BestConfidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Outcome = SessionOutcome(outcome)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SessionAttempts returns a session's scoring passes in attempt order.
func (s *Store) SessionAttempts(sessionID string) ([]AttemptRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, attempt_num, accepted, separation, sample_count,
		       option_ids, confidences, created_at
		FROM ranking_attempts
		WHERE session_id = ?
		ORDER BY attempt_num`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var recs []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		var accepted int
		var ids, confs, createdAt string
		if err := rows.Scan(&rec.SessionID, &rec.AttemptNum, &accepted, &rec.Separation,
			&rec.SampleCount, &ids, &confs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Accepted = accepted == 1
		if err := json.Unmarshal([]byte(ids), &rec.OptionIDs); err != nil {
			return nil, fmt.Errorf("unmarshal option ids: %w", err)
		}
		if err := json.Unmarshal([]byte(confs), &rec.Confidences); err != nil {
			return nil, fmt.Errorf("unmarshal confidences: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// #endregion

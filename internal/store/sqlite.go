// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    backend TEXT NOT NULL,
    model TEXT NOT NULL,
    mode TEXT NOT NULL,
    resume_text TEXT NOT NULL,
    job_description TEXT NOT NULL,
    plan_json TEXT NOT NULL,
    report_json TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
    session_id TEXT NOT NULL,
    question_id INTEGER NOT NULL,
    category TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    grade_json TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (session_id, question_id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS tips (
    session_id TEXT NOT NULL,
    question_id INTEGER NOT NULL,
    tip TEXT NOT NULL,
    PRIMARY KEY (session_id, question_id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Sessions
// ============================================================================

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *session.Session) error {
	planJSON, err := json.Marshal(sess.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	reportJSON, err := encodeReport(sess.Report)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, backend, model, mode, resume_text, job_description, plan_json, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			backend = excluded.backend,
			model = excluded.model,
			plan_json = excluded.plan_json,
			report_json = excluded.report_json
	`, sess.ID, string(sess.Backend), sess.Model, string(sess.Mode), sess.ResumeText, sess.JobDescription,
		string(planJSON), reportJSON, sess.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	for i, item := range sess.Answers {
		if err := upsertAnswer(ctx, tx, sess.ID, i, item); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	var (
		sess       session.Session
		backendID  string
		mode       string
		planJSON   string
		reportJSON sql.NullString
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, backend, model, mode, resume_text, job_description, plan_json, report_json, created_at
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &backendID, &sess.Model, &mode, &sess.ResumeText, &sess.JobDescription, &planJSON, &reportJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sess.Backend = backend.Identity(backendID)
	sess.Mode = session.Mode(mode)
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("session %s: created_at: %w", id, err)
	}
	if err := json.Unmarshal([]byte(planJSON), &sess.Plan); err != nil {
		return nil, fmt.Errorf("session %s: plan: %w", id, err)
	}
	if reportJSON.Valid {
		if err := json.Unmarshal([]byte(reportJSON.String), &sess.Report); err != nil {
			return nil, fmt.Errorf("session %s: report: %w", id, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, category, question, answer, grade_json
		FROM answers WHERE session_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.Answers = []coach.AnsweredQuestion{}
	for rows.Next() {
		var (
			item      coach.AnsweredQuestion
			gradeJSON string
		)
		if err := rows.Scan(&item.QuestionID, &item.Category, &item.Question, &item.Answer, &gradeJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(gradeJSON), &item.Grade); err != nil {
			return nil, fmt.Errorf("session %s: grade for question %d: %w", id, item.QuestionID, err)
		}
		sess.Answers = append(sess.Answers, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.backend, s.model, s.mode, s.plan_json, s.report_json IS NOT NULL, s.created_at,
			(SELECT COUNT(*) FROM answers a WHERE a.session_id = s.id)
		FROM sessions s
		ORDER BY s.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []SessionSummary{}
	for rows.Next() {
		var (
			sum       SessionSummary
			planJSON  string
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Backend, &sum.Model, &sum.Mode, &planJSON, &sum.HasReport, &createdAt, &sum.Answered); err != nil {
			return nil, err
		}
		var plan struct {
			TargetRole string `json:"target_role"`
		}
		if err := json.Unmarshal([]byte(planJSON), &plan); err == nil {
			sum.TargetRole = plan.TargetRole
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// Answers & reports
// ============================================================================

func (s *SQLiteStore) SaveAnswer(ctx context.Context, sessionID string, position int, item coach.AnsweredQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "UPDATE sessions SET report_json = NULL WHERE id = ?", sessionID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	if err := upsertAnswer(ctx, tx, sessionID, position, item); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertAnswer(ctx context.Context, tx *sql.Tx, sessionID string, position int, item coach.AnsweredQuestion) error {
	gradeJSON, err := json.Marshal(item.Grade)
	if err != nil {
		return fmt.Errorf("encode grade: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO answers (session_id, question_id, category, question, answer, grade_json, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, question_id) DO UPDATE SET
			answer = excluded.answer,
			grade_json = excluded.grade_json
	`, sessionID, item.QuestionID, item.Category, item.Question, item.Answer, string(gradeJSON), position)
	return err
}

func (s *SQLiteStore) SaveReport(ctx context.Context, sessionID string, report *coach.SessionReport) error {
	reportJSON, err := encodeReport(report)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, "UPDATE sessions SET report_json = ? WHERE id = ?", reportJSON, sessionID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeReport(report *coach.SessionReport) (sql.NullString, error) {
	if report == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode report: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// ============================================================================
// Tips
// ============================================================================

func (s *SQLiteStore) SaveTip(ctx context.Context, sessionID string, questionID int, tip string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tips (session_id, question_id, tip) VALUES (?, ?, ?)
		ON CONFLICT(session_id, question_id) DO UPDATE SET tip = excluded.tip
	`, sessionID, questionID, tip)
	return err
}

func (s *SQLiteStore) GetTip(ctx context.Context, sessionID string, questionID int) (string, error) {
	var tip string
	err := s.db.QueryRowContext(ctx, "SELECT tip FROM tips WHERE session_id = ? AND question_id = ?", sessionID, questionID).Scan(&tip)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tip, nil
}

package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/japaniel/clozer/pkg/vocab"
)

// Timestamps are stored as RFC 3339 text in UTC.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}, errors.Wrapf(vocab.ErrInvalidInput, "malformed timestamp %q", s.String)
	}
	return t, nil
}

const memoryColumns = `word_id, strength, last_reviewed_at, next_review_at, consecutive_correct, consecutive_errors`

func scanMemory(row interface{ Scan(...interface{}) error }) (vocab.MemoryState, error) {
	var st vocab.MemoryState
	var last, next sql.NullString
	if err := row.Scan(&st.WordID, &st.Strength, &last, &next, &st.ConsecutiveCorrect, &st.ConsecutiveErrors); err != nil {
		return vocab.MemoryState{}, err
	}
	var err error
	if st.LastReviewedAt, err = parseTime(last); err != nil {
		return vocab.MemoryState{}, err
	}
	if st.NextReviewAt, err = parseTime(next); err != nil {
		return vocab.MemoryState{}, err
	}
	return st, nil
}

func wordExists(ctx context.Context, db DBExecutor, wordID int64) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM words WHERE id = ?`, wordID).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.Wrapf(vocab.ErrInvalidInput, "word %d not found", wordID)
	}
	return errors.Wrapf(err, "check word %d", wordID)
}

// EnsureMemory returns the learner's record for a word, creating it at
// strength 0 and due at now on first encounter.
func EnsureMemory(ctx context.Context, db DBExecutor, learner vocab.Learner, wordID int64, now time.Time) (vocab.MemoryState, error) {
	if err := wordExists(ctx, db, wordID); err != nil {
		return vocab.MemoryState{}, err
	}
	st := vocab.NewMemoryState(wordID, now)
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO memory_states (learner_id, word_id, strength, next_review_at)
		VALUES (?, ?, ?, ?)`, learner.ID, wordID, st.Strength, formatTime(st.NextReviewAt))
	if err != nil {
		return vocab.MemoryState{}, errors.Wrapf(err, "create memory for word %d", wordID)
	}
	return GetMemory(ctx, db, learner, wordID)
}

// IntroduceWords creates records for up to n words of language the learner
// has never seen, in id order, and returns them.
func IntroduceWords(ctx context.Context, db DBExecutor, learner vocab.Learner, language string, n int, now time.Time) ([]vocab.MemoryState, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `SELECT w.id FROM words w
		WHERE (? = '' OR w.language = ?)
		  AND NOT EXISTS (SELECT 1 FROM memory_states m WHERE m.learner_id = ? AND m.word_id = w.id)
		ORDER BY w.id LIMIT ?`, language, language, learner.ID, n)
	if err != nil {
		return nil, errors.Wrap(err, "find unseen words")
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan unseen word")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate unseen words")
	}
	rows.Close()

	out := make([]vocab.MemoryState, 0, len(ids))
	for _, id := range ids {
		st, err := EnsureMemory(ctx, db, learner, id, now)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// GetMemory loads the learner's record for a word. A missing record is
// vocab.ErrInvalidInput.
func GetMemory(ctx context.Context, db DBExecutor, learner vocab.Learner, wordID int64) (vocab.MemoryState, error) {
	st, err := scanMemory(db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memory_states WHERE learner_id = ? AND word_id = ?`, learner.ID, wordID))
	if err == sql.ErrNoRows {
		return vocab.MemoryState{}, errors.Wrapf(vocab.ErrInvalidInput, "no memory for word %d", wordID)
	}
	if err != nil {
		return vocab.MemoryState{}, errors.Wrapf(err, "get memory for word %d", wordID)
	}
	return st, nil
}

// PutMemory overwrites an existing record. It never creates one.
func PutMemory(ctx context.Context, db DBExecutor, learner vocab.Learner, st vocab.MemoryState) error {
	if st.Strength < vocab.MinStrength || st.Strength > vocab.MaxStrength {
		return errors.Wrapf(vocab.ErrInvalidInput, "word %d strength %d out of range", st.WordID, st.Strength)
	}
	if st.NextReviewAt.Before(st.LastReviewedAt) {
		return errors.Wrapf(vocab.ErrInvalidInput, "word %d next review precedes last review", st.WordID)
	}
	res, err := db.ExecContext(ctx, `UPDATE memory_states SET
			strength = ?, last_reviewed_at = ?, next_review_at = ?,
			consecutive_correct = ?, consecutive_errors = ?
		WHERE learner_id = ? AND word_id = ?`,
		st.Strength, formatTime(st.LastReviewedAt), formatTime(st.NextReviewAt),
		st.ConsecutiveCorrect, st.ConsecutiveErrors, learner.ID, st.WordID)
	if err != nil {
		return errors.Wrapf(err, "put memory for word %d", st.WordID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(vocab.ErrInvalidInput, "no memory for word %d", st.WordID)
	}
	return nil
}

// ListMemory returns all of a learner's records ordered by word id.
func ListMemory(ctx context.Context, db DBExecutor, learner vocab.Learner) ([]vocab.MemoryState, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memory_states WHERE learner_id = ? ORDER BY word_id`, learner.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list memory")
	}
	defer rows.Close()
	var out []vocab.MemoryState
	for rows.Next() {
		st, err := scanMemory(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan memory")
		}
		out = append(out, st)
	}
	return out, errors.Wrap(rows.Err(), "iterate memory")
}

// InsertAttempt appends an attempt to a session's log.
func InsertAttempt(ctx context.Context, db DBExecutor, learner vocab.Learner, sessionID string, a vocab.Attempt) (int64, error) {
	outcome, err := a.Outcome.MarshalText()
	if err != nil {
		return 0, err
	}
	kind, err := a.ErrorKind.MarshalText()
	if err != nil {
		return 0, err
	}
	if a.At.IsZero() {
		return 0, errors.Wrapf(vocab.ErrInvalidInput, "attempt for word %d has no time", a.WordID)
	}
	res, err := db.ExecContext(ctx, `INSERT INTO attempts
		(session_id, learner_id, word_id, sentence_id, answer, outcome, error_kind, answered_at, latency_ms, strength_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, learner.ID, a.WordID, nullableInt64(a.SentenceID), a.Answer, string(outcome), string(kind),
		formatTime(a.At), a.Latency.Milliseconds(), a.StrengthAfter)
	if err != nil {
		return 0, errors.Wrapf(err, "insert attempt for word %d", a.WordID)
	}
	return res.LastInsertId()
}

// ListAttempts returns a session's attempts in answer order.
func ListAttempts(ctx context.Context, db DBExecutor, sessionID string) ([]vocab.Attempt, error) {
	rows, err := db.QueryContext(ctx, `SELECT a.word_id, w.word, IFNULL(a.sentence_id, 0), a.answer, a.outcome, a.error_kind,
			a.answered_at, a.latency_ms, a.strength_after
		FROM attempts a JOIN words w ON w.id = a.word_id
		WHERE a.session_id = ? ORDER BY a.id`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts")
	}
	defer rows.Close()
	var out []vocab.Attempt
	for rows.Next() {
		var a vocab.Attempt
		var outcome, kind string
		var at sql.NullString
		var latencyMS int64
		if err := rows.Scan(&a.WordID, &a.Word, &a.SentenceID, &a.Answer, &outcome, &kind, &at, &latencyMS, &a.StrengthAfter); err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		if err := a.Outcome.UnmarshalText([]byte(outcome)); err != nil {
			return nil, err
		}
		if err := a.ErrorKind.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		if a.At, err = parseTime(at); err != nil {
			return nil, err
		}
		a.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "iterate attempts")
}

// SaveSummary stores a session's JSON summary, replacing an earlier one.
func SaveSummary(ctx context.Context, db DBExecutor, rec SessionRecord) error {
	if rec.SessionID == "" {
		return errors.Wrap(vocab.ErrInvalidInput, "session id must be non-empty")
	}
	_, err := db.ExecContext(ctx, `INSERT INTO session_summaries (session_id, learner_id, started_at, ended_at, summary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET ended_at = excluded.ended_at, summary = excluded.summary`,
		rec.SessionID, rec.LearnerID, formatTime(rec.StartedAt), formatTime(rec.EndedAt), string(rec.Summary))
	return errors.Wrapf(err, "save summary %s", rec.SessionID)
}

// GetSummary loads a stored session summary. An unknown session is
// vocab.ErrInvalidInput.
func GetSummary(ctx context.Context, db DBExecutor, sessionID string) (SessionRecord, error) {
	rec := SessionRecord{SessionID: sessionID}
	var started, ended sql.NullString
	var summary string
	err := db.QueryRowContext(ctx, `SELECT learner_id, started_at, ended_at, summary FROM session_summaries WHERE session_id = ?`,
		sessionID).Scan(&rec.LearnerID, &started, &ended, &summary)
	if err == sql.ErrNoRows {
		return SessionRecord{}, errors.Wrapf(vocab.ErrInvalidInput, "session %s not found", sessionID)
	}
	if err != nil {
		return SessionRecord{}, errors.Wrapf(err, "get summary %s", sessionID)
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return SessionRecord{}, err
	}
	if rec.EndedAt, err = parseTime(ended); err != nil {
		return SessionRecord{}, err
	}
	rec.Summary = []byte(summary)
	return rec, nil
}

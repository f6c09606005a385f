package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/japaniel/clozer/pkg/session"
	"github.com/japaniel/clozer/pkg/vocab"
)

// Store binds the package functions to one database. It satisfies the
// memory, word and sentence interfaces the practice engine depends on.
type Store struct {
	DB *sql.DB
	// Language restricts IntroduceWords; empty means any.
	Language string
}

// NewStore wraps an open, migrated database.
func NewStore(conn *sql.DB, language string) *Store {
	return &Store{DB: conn, Language: language}
}

func (s *Store) GetMemory(ctx context.Context, learner vocab.Learner, wordID int64) (vocab.MemoryState, error) {
	return GetMemory(ctx, s.DB, learner, wordID)
}

func (s *Store) PutMemory(ctx context.Context, learner vocab.Learner, st vocab.MemoryState) error {
	return PutMemory(ctx, s.DB, learner, st)
}

func (s *Store) ListMemory(ctx context.Context, learner vocab.Learner) ([]vocab.MemoryState, error) {
	return ListMemory(ctx, s.DB, learner)
}

func (s *Store) GetWord(ctx context.Context, id int64) (vocab.Word, error) {
	return GetWord(ctx, s.DB, id)
}

func (s *Store) IntroduceWords(ctx context.Context, learner vocab.Learner, n int, now time.Time) ([]vocab.MemoryState, error) {
	var out []vocab.MemoryState
	err := WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		out, err = IntroduceWords(ctx, tx, learner, s.Language, n, now)
		return err
	})
	return out, err
}

// RecordAnswer writes the word's new memory record and the attempt that
// produced it in one transaction.
func (s *Store) RecordAnswer(ctx context.Context, learner vocab.Learner, sessionID string, st vocab.MemoryState, a vocab.Attempt) error {
	return WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := PutMemory(ctx, tx, learner, st); err != nil {
			return err
		}
		_, err := InsertAttempt(ctx, tx, learner, sessionID, a)
		return err
	})
}

// SaveSummary encodes sum as JSON and stores it under sessionID.
func (s *Store) SaveSummary(ctx context.Context, learner vocab.Learner, sessionID string, started, ended time.Time, sum session.Summary) error {
	raw, err := json.Marshal(sum)
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}
	return SaveSummary(ctx, s.DB, SessionRecord{
		SessionID: sessionID,
		LearnerID: learner.ID,
		StartedAt: started,
		EndedAt:   ended,
		Summary:   raw,
	})
}

// Summary loads and decodes a stored session summary.
func (s *Store) Summary(ctx context.Context, sessionID string) (session.Summary, error) {
	rec, err := GetSummary(ctx, s.DB, sessionID)
	if err != nil {
		return session.Summary{}, err
	}
	var sum session.Summary
	if err := json.Unmarshal(rec.Summary, &sum); err != nil {
		return session.Summary{}, errors.Wrapf(err, "decode summary %s", sessionID)
	}
	return sum, nil
}

// Sentence returns the word's least-shown stored sentence, or
// vocab.ErrNoSentence.
func (s *Store) Sentence(ctx context.Context, w vocab.Word, _ vocab.Level) (vocab.Sentence, error) {
	sent, ok, err := NextClozeSentence(ctx, s.DB, w.ID)
	if err != nil {
		return vocab.Sentence{}, err
	}
	if !ok {
		return vocab.Sentence{}, vocab.ErrNoSentence
	}
	return sent, nil
}

// SaveSentence stores a sentence produced elsewhere, e.g. by a generator.
func (s *Store) SaveSentence(ctx context.Context, sent vocab.Sentence) (vocab.Sentence, error) {
	id, err := AddClozeSentence(ctx, s.DB, sent, 0)
	if err != nil {
		return vocab.Sentence{}, err
	}
	sent.ID = id
	return sent, nil
}

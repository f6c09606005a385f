// Package practice runs review sessions: it picks the next due word, asks a
// provider for a sentence, judges the answer, updates the word's memory
// record and keeps the session log that ends in a summary.
package practice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/classify"
	"github.com/japaniel/clozer/pkg/session"
	"github.com/japaniel/clozer/pkg/srs"
	"github.com/japaniel/clozer/pkg/vocab"
)

var (
	// ErrNothingDue means no word is due and no new word may be introduced.
	ErrNothingDue = errors.New("clozer: nothing due")
	// ErrSessionEnded is returned by calls on a session after End.
	ErrSessionEnded = errors.New("clozer: session ended")
)

// Store is the persistence the engine needs. *db.Store implements it.
type Store interface {
	srs.MemoryStore
	ListMemory(ctx context.Context, learner vocab.Learner) ([]vocab.MemoryState, error)
	GetWord(ctx context.Context, id int64) (vocab.Word, error)
	IntroduceWords(ctx context.Context, learner vocab.Learner, n int, now time.Time) ([]vocab.MemoryState, error)
	// RecordAnswer writes a memory record and its attempt atomically.
	RecordAnswer(ctx context.Context, learner vocab.Learner, sessionID string, st vocab.MemoryState, a vocab.Attempt) error
	SaveSummary(ctx context.Context, learner vocab.Learner, sessionID string, started, ended time.Time, sum session.Summary) error
}

// DrillThreshold is the run of consecutive errors on a verb that flags it
// for a conjugation drill.
const DrillThreshold = 2

// Engine holds the collaborators shared by every session of one learner.
type Engine struct {
	Learner    vocab.Learner
	Store      Store
	Classifier *classify.Classifier
	Updater    *srs.Updater
	Provider   SentenceProvider
	Logger     *zap.Logger
	// Now is the clock. nil means time.Now.
	Now func() time.Time
	// NewWords is how many unseen words a session may introduce once
	// nothing is due.
	NewWords int
}

// NewEngine wires an engine. A nil classifier means classify.New with
// defaults; a nil logger means no logging.
func NewEngine(learner vocab.Learner, store Store, sched *srs.Scheduler, cls *classify.Classifier, provider SentenceProvider, logger *zap.Logger) *Engine {
	if cls == nil {
		cls = classify.New(classify.Config{}, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Learner:    learner,
		Store:      store,
		Classifier: cls,
		Updater:    &srs.Updater{Scheduler: sched, Store: store},
		Provider:   provider,
		Logger:     logger,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Start opens a session.
func (e *Engine) Start(ctx context.Context) (*Session, error) {
	if e.Store == nil || e.Updater == nil || e.Provider == nil {
		return nil, errors.New("practice: engine is missing a store, updater or provider")
	}
	s := &Session{
		ID:      uuid.NewString(),
		Started: e.now(),
		engine:  e,
		pending: make(map[int]bool),
		skipped: make(map[int64]bool),
		correct: make(map[int64]bool),
		logger:  e.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session", s.ID))
	s.logger.Info("session started", zap.Int64("learner", e.Learner.ID))
	return s, ctx.Err()
}

// Due returns the learner's due records in review order.
func (e *Engine) Due(ctx context.Context) ([]vocab.MemoryState, error) {
	states, err := e.Store.ListMemory(ctx, e.Learner)
	if err != nil {
		return nil, err
	}
	q := srs.NewDueQueue(states, e.now())
	out := make([]vocab.MemoryState, 0, q.Len())
	for {
		st, ok := q.Pop()
		if !ok {
			return out, nil
		}
		out = append(out, st)
	}
}

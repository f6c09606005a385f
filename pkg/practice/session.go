package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/classify"
	"github.com/japaniel/clozer/pkg/session"
	"github.com/japaniel/clozer/pkg/srs"
	"github.com/japaniel/clozer/pkg/vocab"
)

// Turn is one prompt shown to the learner.
type Turn struct {
	Seq      int
	Word     vocab.Word
	Sentence vocab.Sentence
	State    vocab.MemoryState
	ShownAt  time.Time
}

// Feedback is the engine's answer to a submission.
type Feedback struct {
	Judgement classify.Judgement
	// Expected is the form that was blanked out.
	Expected string
	State    vocab.MemoryState
	// Drill is set when a verb keeps failing and has not been answered
	// correctly this session.
	Drill bool
}

// Session is one practice run. Its methods are safe for concurrent use and
// run one at a time.
type Session struct {
	ID      string
	Started time.Time

	engine *Engine
	logger *zap.Logger
	log    session.Log

	mu         sync.Mutex
	seq        int
	pending    map[int]bool
	skipped    map[int64]bool
	correct    map[int64]bool
	introduced int
	ended      bool
}

// Next returns the most overdue word that has a sentence. Words without a
// sentence are skipped for the rest of the session. Once nothing is due the
// session introduces up to Engine.NewWords unseen words, then returns
// ErrNothingDue.
func (s *Session) Next(ctx context.Context) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return Turn{}, ErrSessionEnded
	}
	e := s.engine

	for {
		if err := ctx.Err(); err != nil {
			return Turn{}, err
		}
		now := e.now()
		states, err := e.Store.ListMemory(ctx, e.Learner)
		if err != nil {
			return Turn{}, err
		}
		var candidates []vocab.MemoryState
		for _, st := range states {
			if !s.skipped[st.WordID] {
				candidates = append(candidates, st)
			}
		}

		q := srs.NewDueQueue(candidates, now)
		for {
			st, ok := q.Pop()
			if !ok {
				break
			}
			turn, ok, err := s.prepare(ctx, st, now)
			if err != nil {
				return Turn{}, err
			}
			if ok {
				return turn, nil
			}
		}

		if s.introduced >= e.NewWords {
			return Turn{}, ErrNothingDue
		}
		fresh, err := e.Store.IntroduceWords(ctx, e.Learner, e.NewWords-s.introduced, now)
		if err != nil {
			return Turn{}, err
		}
		if len(fresh) == 0 {
			return Turn{}, ErrNothingDue
		}
		s.introduced += len(fresh)
		s.logger.Info("introduced new words", zap.Int("count", len(fresh)))
	}
}

// prepare fetches the word and a sentence for st. ok is false when the
// word has no sentence.
func (s *Session) prepare(ctx context.Context, st vocab.MemoryState, now time.Time) (Turn, bool, error) {
	e := s.engine
	w, err := e.Store.GetWord(ctx, st.WordID)
	if err != nil {
		return Turn{}, false, err
	}
	sent, err := e.Provider.Sentence(ctx, w, w.Level)
	if errors.Is(err, vocab.ErrNoSentence) {
		s.skipped[w.ID] = true
		s.logger.Debug("no sentence, skipping word", zap.Int64("word", w.ID), zap.String("text", w.Text))
		return Turn{}, false, nil
	}
	if err != nil {
		return Turn{}, false, err
	}
	if sent.WordID == 0 {
		sent.WordID = w.ID
	}
	s.seq++
	s.pending[s.seq] = true
	return Turn{Seq: s.seq, Word: w, Sentence: sent, State: st, ShownAt: now}, true, nil
}

// target narrows the word to the blanked form: another form of the same
// lemma is a conjugation error in this sentence, not a correct answer.
func target(t Turn) vocab.Word {
	w := t.Word
	if t.Sentence.Answer != "" {
		w.Text = t.Sentence.Answer
		w.Forms = []string{t.Sentence.Answer}
	}
	return w
}

// Submit judges answer for turn, updates the word's memory record and logs
// the attempt. A latency of zero means unknown. Each turn takes one answer.
func (s *Session) Submit(ctx context.Context, turn Turn, answer string, latency time.Duration) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return Feedback{}, ErrSessionEnded
	}
	if !s.pending[turn.Seq] {
		return Feedback{}, fmt.Errorf("%w: turn %d is not awaiting an answer", vocab.ErrInvalidInput, turn.Seq)
	}
	e := s.engine

	judgement, err := e.Classifier.Classify(target(turn), answer)
	if err != nil {
		return Feedback{}, err
	}
	now := e.now()
	attempt := vocab.Attempt{
		WordID:     turn.Word.ID,
		Word:       turn.Word.Text,
		SentenceID: turn.Sentence.ID,
		Answer:     answer,
		Outcome:    judgement.Outcome,
		ErrorKind:  judgement.ErrorKind,
		At:         now,
		Latency:    latency,
	}
	if err := s.log.Check(attempt); err != nil {
		return Feedback{}, err
	}
	// The memory record and the attempt are stored together, so a failed
	// write leaves both untouched and the turn open for another answer.
	state, err := e.Updater.UpdateFunc(ctx, e.Learner, turn.Word.ID, judgement.Outcome, now,
		func(ctx context.Context, learner vocab.Learner, next vocab.MemoryState) error {
			attempt.StrengthAfter = next.Strength
			return e.Store.RecordAnswer(ctx, learner, s.ID, next, attempt)
		})
	if err != nil {
		return Feedback{}, err
	}
	delete(s.pending, turn.Seq)
	if err := s.log.Append(attempt); err != nil {
		return Feedback{}, err
	}
	if judgement.Outcome == vocab.Correct {
		s.correct[turn.Word.ID] = true
	}

	fb := Feedback{
		Judgement: judgement,
		Expected:  turn.Sentence.Answer,
		State:     state,
		Drill: turn.Word.POS == vocab.POSVerb &&
			state.ConsecutiveErrors >= DrillThreshold &&
			!s.correct[turn.Word.ID],
	}
	if fb.Expected == "" {
		fb.Expected = turn.Word.Text
	}
	s.logger.Debug("answer judged",
		zap.Int64("word", turn.Word.ID),
		zap.Stringer("outcome", judgement.Outcome),
		zap.Stringer("error_kind", judgement.ErrorKind),
		zap.Int("strength", state.Strength),
		zap.Bool("drill", fb.Drill))
	return fb, nil
}

// Attempts returns the attempts logged so far.
func (s *Session) Attempts() []vocab.Attempt { return s.log.Attempts() }

// End closes the session, persists its summary and returns it.
func (s *Session) End(ctx context.Context) (session.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return session.Summary{}, ErrSessionEnded
	}
	e := s.engine
	sum := s.log.Summarize()
	if err := e.Store.SaveSummary(ctx, e.Learner, s.ID, s.Started, e.now(), sum); err != nil {
		return session.Summary{}, err
	}
	s.ended = true
	s.logger.Info("session ended",
		zap.Int("attempts", sum.Stats.Total),
		zap.Int("correct", sum.Stats.Correct),
		zap.Stringer("headline", sum.Headline.Kind))
	return sum, nil
}

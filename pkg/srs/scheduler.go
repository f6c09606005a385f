// Package srs implements the strength-based review scheduler: a small state
// machine over strength 0..5, an interval table, due-word selection and the
// locked read-modify-write of memory records.
package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/japaniel/clozer/pkg/vocab"
)

// ErrInvalidConfig is returned by NewScheduler for a config that breaks the
// scheduling invariants.
var ErrInvalidConfig = errors.New("srs: invalid config")

// DefaultIntervals is the wait after a correct answer, indexed by the new
// strength: minutes, hours, then days, then weeks.
var DefaultIntervals = [vocab.MaxStrength + 1]time.Duration{
	10 * time.Minute,
	6 * time.Hour,
	24 * time.Hour,
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
	21 * 24 * time.Hour,
}

const (
	// DefaultImmediate is the requeue delay after any wrong answer.
	DefaultImmediate = 10 * time.Minute
	DefaultPromotion = 1
	DefaultPenalty   = 2
)

// Config configures a Scheduler. Zero values produce defaults.
type Config struct {
	Intervals [vocab.MaxStrength + 1]time.Duration // zero -> DefaultIntervals
	Immediate time.Duration                        // zero -> DefaultImmediate
	Promotion int                                  // zero -> 1
	Penalty   int                                  // zero -> 2; must exceed Promotion
}

// Scheduler applies answer outcomes to memory records. It is immutable and
// safe for concurrent use.
type Scheduler struct {
	intervals [vocab.MaxStrength + 1]time.Duration
	immediate time.Duration
	promotion int
	penalty   int
}

// NewScheduler validates cfg and fills defaults. Intervals must be positive
// and non-decreasing, and the penalty must be harsher than the promotion.
func NewScheduler(cfg Config) (*Scheduler, error) {
	intervals := cfg.Intervals
	if intervals == [vocab.MaxStrength + 1]time.Duration{} {
		intervals = DefaultIntervals
	}
	for s, d := range intervals {
		if d <= 0 {
			return nil, fmt.Errorf("%w: interval for strength %d must be positive, got %v", ErrInvalidConfig, s, d)
		}
		if s > 0 && d < intervals[s-1] {
			return nil, fmt.Errorf("%w: interval for strength %d (%v) is shorter than for %d (%v)", ErrInvalidConfig, s, d, s-1, intervals[s-1])
		}
	}

	immediate := cfg.Immediate
	if immediate == 0 {
		immediate = DefaultImmediate
	}
	if immediate < 0 {
		return nil, fmt.Errorf("%w: immediate interval %v must be positive", ErrInvalidConfig, immediate)
	}

	promotion := cfg.Promotion
	if promotion == 0 {
		promotion = DefaultPromotion
	}
	penalty := cfg.Penalty
	if penalty == 0 {
		penalty = DefaultPenalty
	}
	if promotion < 0 || penalty <= promotion {
		return nil, fmt.Errorf("%w: penalty %d must exceed promotion %d", ErrInvalidConfig, penalty, promotion)
	}

	return &Scheduler{
		intervals: intervals,
		immediate: immediate,
		promotion: promotion,
		penalty:   penalty,
	}, nil
}

// Interval returns the wait after a correct answer that left the word at
// strength. Out-of-range strengths are clamped.
func (s *Scheduler) Interval(strength int) time.Duration {
	return s.intervals[clamp(strength)]
}

// Immediate returns the requeue delay used after a wrong answer.
func (s *Scheduler) Immediate() time.Duration { return s.immediate }

// Apply returns the state after answering with outcome at now. The input is
// not modified. It fails only for a caller contract violation.
func (s *Scheduler) Apply(state vocab.MemoryState, outcome vocab.Outcome, now time.Time) (vocab.MemoryState, error) {
	if err := validate(state, outcome, now); err != nil {
		return state, err
	}

	next := state
	switch outcome {
	case vocab.Correct:
		next.Strength = clamp(state.Strength + s.promotion)
		next.ConsecutiveCorrect++
		next.ConsecutiveErrors = 0
		next.NextReviewAt = now.Add(s.intervals[next.Strength])
	case vocab.Incorrect:
		next.Strength = clamp(state.Strength - s.penalty)
		next.ConsecutiveErrors++
		next.ConsecutiveCorrect = 0
		next.NextReviewAt = now.Add(s.immediate)
	}
	next.LastReviewedAt = now
	return next, nil
}

func validate(state vocab.MemoryState, outcome vocab.Outcome, now time.Time) error {
	switch {
	case !outcome.IsValid():
		return fmt.Errorf("%w: outcome %v", vocab.ErrInvalidInput, outcome)
	case state.Strength < vocab.MinStrength || state.Strength > vocab.MaxStrength:
		return fmt.Errorf("%w: word %d strength %d out of range", vocab.ErrInvalidInput, state.WordID, state.Strength)
	case now.IsZero():
		return fmt.Errorf("%w: zero review time for word %d", vocab.ErrInvalidInput, state.WordID)
	case now.Before(state.LastReviewedAt):
		return fmt.Errorf("%w: review time %v precedes last review %v for word %d",
			vocab.ErrInvalidInput, now, state.LastReviewedAt, state.WordID)
	}
	return nil
}

func clamp(strength int) int {
	if strength < vocab.MinStrength {
		return vocab.MinStrength
	}
	if strength > vocab.MaxStrength {
		return vocab.MaxStrength
	}
	return strength
}

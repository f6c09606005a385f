package session

import (
	"fmt"
	"sync"

	"github.com/japaniel/clozer/pkg/vocab"
)

// Log is the append-only attempt sequence of one session. It is safe for
// concurrent use; attempts keep the order in which they were appended.
type Log struct {
	mu       sync.Mutex
	attempts []vocab.Attempt
}

// Append records a. Attempts must carry a valid outcome and must not go
// back in time.
func (l *Log) Append(a vocab.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(a); err != nil {
		return err
	}
	l.attempts = append(l.attempts, a)
	return nil
}

// Check reports the error Append would return for a, without appending.
func (l *Log) Check(a vocab.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(a)
}

func (l *Log) check(a vocab.Attempt) error {
	if !a.Outcome.IsValid() {
		return fmt.Errorf("%w: attempt for word %d has outcome %v", vocab.ErrInvalidInput, a.WordID, a.Outcome)
	}
	if a.Outcome == vocab.Correct && a.ErrorKind != vocab.ErrorNone {
		return fmt.Errorf("%w: correct attempt for word %d carries error kind %v", vocab.ErrInvalidInput, a.WordID, a.ErrorKind)
	}
	if n := len(l.attempts); n > 0 && a.At.Before(l.attempts[n-1].At) {
		return fmt.Errorf("%w: attempt at %v precedes previous attempt at %v", vocab.ErrInvalidInput, a.At, l.attempts[n-1].At)
	}
	return nil
}

// Attempts returns a copy of the log.
func (l *Log) Attempts() []vocab.Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]vocab.Attempt, len(l.attempts))
	copy(out, l.attempts)
	return out
}

// Len returns the number of attempts.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Summarize summarizes the attempts logged so far.
func (l *Log) Summarize() Summary { return Summarize(l.Attempts()) }

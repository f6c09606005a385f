package srs

import (
	"context"
	"sync"
	"time"

	"github.com/japaniel/clozer/pkg/vocab"
)

// MemoryStore reads and writes memory records. Get must report a missing
// record as vocab.ErrInvalidInput rather than inventing one.
type MemoryStore interface {
	GetMemory(ctx context.Context, learner vocab.Learner, wordID int64) (vocab.MemoryState, error)
	PutMemory(ctx context.Context, learner vocab.Learner, state vocab.MemoryState) error
}

// WordLocks serializes read-modify-write cycles per (learner, word), so two
// submissions for the same word cannot interleave.
type WordLocks struct {
	mu    sync.Mutex
	locks map[lockKey]*wordLock
}

type lockKey struct {
	learner int64
	word    int64
}

type wordLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the word is free and returns the release function.
func (l *WordLocks) Lock(learner vocab.Learner, wordID int64) (unlock func()) {
	key := lockKey{learner: learner.ID, word: wordID}

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[lockKey]*wordLock)
	}
	wl, ok := l.locks[key]
	if !ok {
		wl = &wordLock{}
		l.locks[key] = wl
	}
	wl.refs++
	l.mu.Unlock()

	wl.mu.Lock()
	return func() {
		wl.mu.Unlock()
		l.mu.Lock()
		wl.refs--
		if wl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Updater applies outcomes to stored memory records under a per-word lock.
type Updater struct {
	Scheduler *Scheduler
	Store     MemoryStore
	locks     WordLocks
}

// Update loads the word's record, applies outcome at now and writes the
// result back, holding the word's lock for the whole cycle.
func (u *Updater) Update(ctx context.Context, learner vocab.Learner, wordID int64, outcome vocab.Outcome, now time.Time) (vocab.MemoryState, error) {
	return u.UpdateFunc(ctx, learner, wordID, outcome, now, u.Store.PutMemory)
}

// PutFunc writes a new memory record, possibly together with other rows.
type PutFunc func(ctx context.Context, learner vocab.Learner, state vocab.MemoryState) error

// UpdateFunc is Update with the write done by put instead of Store.PutMemory.
// put runs under the word's lock; when it fails the update is discarded.
func (u *Updater) UpdateFunc(ctx context.Context, learner vocab.Learner, wordID int64, outcome vocab.Outcome, now time.Time, put PutFunc) (vocab.MemoryState, error) {
	unlock := u.locks.Lock(learner, wordID)
	defer unlock()

	state, err := u.Store.GetMemory(ctx, learner, wordID)
	if err != nil {
		return vocab.MemoryState{}, err
	}
	next, err := u.Scheduler.Apply(state, outcome, now)
	if err != nil {
		return vocab.MemoryState{}, err
	}
	if err := put(ctx, learner, next); err != nil {
		return vocab.MemoryState{}, err
	}
	return next, nil
}

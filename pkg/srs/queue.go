package srs

import (
	"container/heap"
	"time"

	"github.com/japaniel/clozer/pkg/vocab"
)

// DueQueue is a min-priority queue of due memory records ordered by
// NextReviewAt, then lowest strength, then lowest word ID.
type DueQueue struct {
	h dueHeap
}

// NewDueQueue keeps the states that are due at now.
func NewDueQueue(states []vocab.MemoryState, now time.Time) *DueQueue {
	q := &DueQueue{}
	for _, st := range states {
		if st.Due(now) {
			q.h = append(q.h, st)
		}
	}
	heap.Init(&q.h)
	return q
}

// Len returns the number of due records left.
func (q *DueQueue) Len() int { return q.h.Len() }

// Pop removes and returns the most overdue record. ok is false when nothing
// is due.
func (q *DueQueue) Pop() (vocab.MemoryState, bool) {
	if q.h.Len() == 0 {
		return vocab.MemoryState{}, false
	}
	return heap.Pop(&q.h).(vocab.MemoryState), true
}

// Peek returns the most overdue record without removing it.
func (q *DueQueue) Peek() (vocab.MemoryState, bool) {
	if q.h.Len() == 0 {
		return vocab.MemoryState{}, false
	}
	return q.h[0], true
}

// NextDue picks the word to review at now. ok is false when nothing is due;
// the caller decides whether to widen the window or introduce a new word.
func NextDue(states []vocab.MemoryState, now time.Time) (wordID int64, ok bool) {
	st, ok := NewDueQueue(states, now).Pop()
	if !ok {
		return 0, false
	}
	return st.WordID, true
}

type dueHeap []vocab.MemoryState

func (h dueHeap) Len() int { return len(h) }

func (h dueHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.NextReviewAt.Equal(b.NextReviewAt) {
		return a.NextReviewAt.Before(b.NextReviewAt)
	}
	if a.Strength != b.Strength {
		return a.Strength < b.Strength
	}
	return a.WordID < b.WordID
}

func (h dueHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *dueHeap) Push(x any) { *h = append(*h, x.(vocab.MemoryState)) }

func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

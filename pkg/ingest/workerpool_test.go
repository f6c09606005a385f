package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/japaniel/clozer/pkg/vocab"
)

func TestWorkerPoolCutsSentences(t *testing.T) {
	index := NewWordIndex([]vocab.Word{{ID: 1, Text: "テスト", Lemma: "テスト"}})
	sentences := testSentences(50)

	p := NewWorkerPool(4, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	results := make(chan processedSentence, len(sentences))
	for i, s := range sentences {
		idx, sent := i, s
		err := p.Submit(func(ctx context.Context) error {
			results <- cutClozes(idx, sent, index, DefaultMaxSentenceRunes)
			return nil
		})
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}
	p.Close()
	close(results)

	seen := make(map[int]bool)
	for res := range results {
		if len(res.Clozes) != 1 {
			t.Errorf("sentence %d: expected 1 cloze, got %d", res.Index, len(res.Clozes))
		}
		seen[res.Index] = true
	}
	if len(seen) != len(sentences) {
		t.Fatalf("expected %d distinct results, got %d", len(sentences), len(seen))
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	p := NewWorkerPool(1, 2)
	p.Start(context.Background())
	p.Close()
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed from Submit, got %v", err)
	}
	if err := p.SubmitCtx(context.Background(), func(ctx context.Context) error { return nil }); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed from SubmitCtx, got %v", err)
	}
	// A second Close is a no-op.
	p.Close()
}

// fillQueue submits to a pool without workers until its queue is full.
func fillQueue(t *testing.T, p *WorkerPool, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("setup submit failed: %v", err)
		}
	}
}

func TestWorkerPoolSubmitCtxGivesUpOnFullQueue(t *testing.T) {
	p := NewWorkerPool(1, 1)
	defer p.Close()
	fillQueue(t, p, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.SubmitCtx(ctx, func(ctx context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		t.Fatalf("SubmitCtx returned %v before the queue had room", err)
	case <-time.After(20 * time.Millisecond):
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SubmitCtx stayed blocked after cancellation")
	}
}

func TestWorkerPoolCloseReleasesBlockedSubmit(t *testing.T) {
	p := NewWorkerPool(1, 1)
	fillQueue(t, p, 1)

	done := make(chan error, 1)
	go func() {
		done <- p.Submit(func(ctx context.Context) error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)

	p.Close()
	select {
	case err := <-done:
		if err != ErrPoolClosed {
			t.Fatalf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit stayed blocked after Close")
	}
}

func TestWorkerPoolConcurrentSubmitAndClose(t *testing.T) {
	p := NewWorkerPool(2, 2)
	p.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				err := p.Submit(func(ctx context.Context) error { return nil })
				if err == ErrPoolClosed {
					return
				}
				if err != nil {
					t.Errorf("unexpected submit error: %v", err)
					return
				}
			}
		}()
	}
	p.Close()
	wg.Wait()
}

func TestWorkerPoolStopsOnContextCancel(t *testing.T) {
	p := NewWorkerPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Close blocked after context cancellation")
	}
}

// Compile-time check that the pool satisfies what Ingest depends on.
var _ WorkerPoolInterface = (*WorkerPool)(nil)

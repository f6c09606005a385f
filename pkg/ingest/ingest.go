// Package ingest cuts cloze sentences out of analyzed text for the words a
// learner studies and stores them, checkpointing per source so an
// interrupted import resumes where it stopped.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/corpus"
	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/vocab"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// DefaultMaxSentenceRunes drops sentences too long to read as a prompt.
const DefaultMaxSentenceRunes = 160

// Ingester turns tokenized sentences into stored cloze sentences.
type Ingester struct {
	DB *sql.DB
	// Index holds the known words. Ingest loads it from DB for Language when nil.
	Index    *WordIndex
	Language string

	BatchSize int
	// MaxSentenceRunes skips longer sentences. Zero means DefaultMaxSentenceRunes.
	MaxSentenceRunes int
	Logger           *zap.Logger
	// OnProgress is called periodically with the number of processed sentences and total sentences.
	OnProgress func(current, total int)

	// Concurrency settings
	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester for words of language.
func NewIngester(conn *sql.DB, language string, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		DB:        conn,
		Language:  language,
		BatchSize: 50,
		Logger:    logger,
		Workers:   4,
	}
}

// processedSentence holds the result of processing a sentence before DB ingestion
type processedSentence struct {
	Index  int
	Clozes []vocab.Sentence
	Error  error
}

// Ingest processes sentences and saves cloze sentences for every known word
// they contain. It resumes after the last sentence checkpointed for
// sourceID and returns the number of cloze sentences written.
func (ig *Ingester) Ingest(ctx context.Context, sourceID int64, sentences []corpus.Sentence) (int, error) {
	logger := ig.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int64("source", sourceID))

	lastProcessed, err := db.GetSourceProgress(ctx, ig.DB, sourceID)
	if err != nil {
		return 0, err
	}
	if lastProcessed >= 0 {
		logger.Info("resuming ingest", zap.Int("from", lastProcessed+1))
	}

	totalSentences := len(sentences)
	startIdx := lastProcessed + 1
	if startIdx >= totalSentences {
		return 0, nil
	}

	index := ig.Index
	if index == nil {
		words, err := db.ListWords(ctx, ig.DB, ig.Language)
		if err != nil {
			return 0, err
		}
		index = NewWordIndex(words)
	}
	if index.Len() == 0 {
		logger.Warn("no known words, nothing to cut", zap.String("language", ig.Language))
	}

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := ig.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	resultCh := make(chan processedSentence, workers*2)
	closedResultCh := false
	doneCh := make(chan error, 1)

	// pending counts clozes inserted by the batch in flight; they only join
	// written once that batch commits.
	var written, pending int64

	bw := NewBatchWriter(ig.DB, batchSize, 100*time.Millisecond)
	bw.Logger = logger
	bw.OnBatch = func(_ int, err error) {
		n := atomic.SwapInt64(&pending, 0)
		if err == nil {
			atomic.AddInt64(&written, n)
		}
	}
	var batchErr error
	var batchErrMu sync.Mutex
	bw.OnError = func(e error) {
		batchErrMu.Lock()
		if batchErr == nil {
			batchErr = e
		}
		batchErrMu.Unlock()
	}

	// Registered before cancel so cancel runs first and releases blocked workers.
	defer func() {
		wp.Close()
		if !closedResultCh {
			close(resultCh)
		}
		_ = bw.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	// commit hands one finished sentence to the batch writer. Each sentence
	// commits its clozes together with its checkpoint.
	commit := func(item processedSentence) error {
		return bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			for _, c := range item.Clozes {
				if _, err := db.AddClozeSentence(ctx, tx, c, sourceID); err != nil {
					return fmt.Errorf("sentence %d: %w", item.Index, err)
				}
				atomic.AddInt64(&pending, 1)
			}
			return db.UpdateSourceProgress(ctx, tx, sourceID, item.Index)
		})
	}

	go func() {
		defer close(doneCh)
		buffer := make(map[int]processedSentence)
		nextIdx := startIdx

		// drain commits contiguous finished sentences in index order.
		drain := func() error {
			for {
				item, ok := buffer[nextIdx]
				if !ok {
					return nil
				}
				delete(buffer, nextIdx)
				if err := commit(item); err != nil {
					return err
				}
				if ig.OnProgress != nil && (nextIdx+1)%batchSize == 0 {
					ig.OnProgress(nextIdx+1, totalSentences)
				}
				nextIdx++
			}
		}

		for {
			select {
			case <-ctx.Done():
				doneCh <- ctx.Err()
				return
			case res, ok := <-resultCh:
				if !ok {
					if err := drain(); err != nil {
						cancel()
						doneCh <- err
						return
					}
					if ig.OnProgress != nil {
						ig.OnProgress(totalSentences, totalSentences)
					}
					doneCh <- nil
					return
				}
				if res.Error != nil {
					cancel()
					doneCh <- res.Error
					return
				}
				buffer[res.Index] = res
				if err := drain(); err != nil {
					cancel()
					doneCh <- err
					return
				}
			}
		}
	}()

	maxRunes := ig.MaxSentenceRunes
	if maxRunes <= 0 {
		maxRunes = DefaultMaxSentenceRunes
	}

Loop:
	for i := startIdx; i < totalSentences; i++ {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		idx := i
		sent := sentences[i]

		job := func(ctx context.Context) error {
			res := cutClozes(idx, sent, index, maxRunes)
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}

		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err == ctx.Err() || err == ErrPoolClosed {
				break Loop
			}
			return 0, err
		}
	}

	// No worker can send after Close returns.
	wp.Close()
	close(resultCh)
	closedResultCh = true

	consumerErr := <-doneCh

	if err := bw.Close(); err != nil && consumerErr == nil {
		consumerErr = err
	}

	batchErrMu.Lock()
	if batchErr != nil && consumerErr == nil {
		consumerErr = batchErr
	}
	batchErrMu.Unlock()

	n := int(atomic.LoadInt64(&written))
	if consumerErr == nil {
		logger.Info("ingest finished",
			zap.Int("sentences", totalSentences-startIdx),
			zap.Int("clozes", n),
			zap.Int64("batches", bw.Batches()),
			zap.Int64("writes", bw.Committed()))
	}
	return n, consumerErr
}

// cutClozes blanks every token of a sentence that stands for a known word.
// A word gets at most one cloze per sentence.
func cutClozes(index int, sentence corpus.Sentence, words *WordIndex, maxRunes int) processedSentence {
	res := processedSentence{Index: index}
	if utf8.RuneCountInString(sentence.Text) > maxRunes {
		return res
	}
	used := make(map[int64]bool)
	for i, t := range sentence.Tokens {
		for _, id := range words.Match(t) {
			if used[id] {
				continue
			}
			used[id] = true
			res.Clozes = append(res.Clozes, vocab.Sentence{
				WordID:  id,
				Text:    sentence.Text,
				Blanked: sentence.Blank(i),
				Answer:  t.Surface,
				Source:  db.OriginCorpus,
			})
		}
	}
	return res
}

package generate

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/japaniel/clozer/pkg/vocab"
)

// SentenceSaver persists generated sentences so they join the stored pool.
type SentenceSaver interface {
	SaveSentence(ctx context.Context, s vocab.Sentence) (vocab.Sentence, error)
}

// Provider serves sentences from a Generator, storing every kept candidate
// and returning the first. Failures surface as vocab.ErrNoSentence so a
// practice session moves on to the next word. Concurrent calls for the same
// word share one request.
type Provider struct {
	Generator *Generator
	Store     SentenceSaver
	// N is how many sentences to ask for per call. Zero means 5.
	N      int
	Logger *zap.Logger

	inflight singleflight.Group
}

// Sentence generates, stores and returns a sentence for w.
func (p *Provider) Sentence(ctx context.Context, w vocab.Word, level vocab.Level) (vocab.Sentence, error) {
	if level == "" {
		level = w.Level
	}
	key := strconv.FormatInt(w.ID, 10) + "/" + string(level)
	v, err, _ := p.inflight.Do(key, func() (interface{}, error) {
		return p.generate(ctx, w, level)
	})
	if err != nil {
		return vocab.Sentence{}, err
	}
	return v.(vocab.Sentence), nil
}

func (p *Provider) generate(ctx context.Context, w vocab.Word, level vocab.Level) (vocab.Sentence, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sentences, err := p.Generator.Candidates(ctx, w, level, p.N)
	if err != nil {
		if ctx.Err() != nil {
			return vocab.Sentence{}, ctx.Err()
		}
		logger.Warn("sentence generation failed", zap.Int64("word", w.ID), zap.Error(err))
		return vocab.Sentence{}, fmt.Errorf("%w: %v", vocab.ErrNoSentence, err)
	}
	if len(sentences) == 0 {
		return vocab.Sentence{}, vocab.ErrNoSentence
	}

	var first vocab.Sentence
	for i, s := range sentences {
		saved, err := p.Store.SaveSentence(ctx, s)
		if err != nil {
			return vocab.Sentence{}, err
		}
		if i == 0 {
			first = saved
		}
	}
	logger.Info("stored generated sentences", zap.Int64("word", w.ID), zap.Int("count", len(sentences)))
	return first, nil
}

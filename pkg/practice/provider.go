package practice

import (
	"context"
	"errors"

	"github.com/japaniel/clozer/pkg/vocab"
)

// SentenceProvider supplies a blanked sentence for a word. It returns
// vocab.ErrNoSentence when it has nothing, and the session then moves on to
// the next due word.
type SentenceProvider interface {
	Sentence(ctx context.Context, w vocab.Word, level vocab.Level) (vocab.Sentence, error)
}

// Providers tries each provider in order until one has a sentence.
type Providers []SentenceProvider

// Sentence implements SentenceProvider.
func (ps Providers) Sentence(ctx context.Context, w vocab.Word, level vocab.Level) (vocab.Sentence, error) {
	for _, p := range ps {
		if p == nil {
			continue
		}
		s, err := p.Sentence(ctx, w, level)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, vocab.ErrNoSentence) {
			return vocab.Sentence{}, err
		}
	}
	return vocab.Sentence{}, vocab.ErrNoSentence
}

// Package dictionary moves lexicon data between lexicon files, the word
// store and the in-memory lemma.Lexicon used for answer checking.
package dictionary

import (
	"context"

	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

// EntryWord converts a lexicon entry to the word row that represents it.
// The lemma is the word's canonical text.
func EntryWord(e lemma.Entry) vocab.Word {
	return vocab.Word{
		Text:     e.Lemma,
		Lemma:    e.Lemma,
		Language: e.Language,
		POS:      e.POS,
		Level:    e.Level,
		Forms:    e.Forms,
	}
}

// FromStore rebuilds a lexicon from the stored words of a language (all
// languages when empty), including spelling variants.
func FromStore(ctx context.Context, conn db.DBExecutor, language string) (*lemma.Lexicon, error) {
	words, err := db.ListWords(ctx, conn, language)
	if err != nil {
		return nil, err
	}
	lx := lemma.NewLexicon(nil)
	for _, w := range words {
		variants, err := db.Variants(ctx, conn, w.ID)
		if err != nil {
			return nil, err
		}
		lemmaText := w.Lemma
		if lemmaText == "" {
			lemmaText = w.Text
		}
		e, ok := lx.Entry(lemmaText)
		if !ok {
			e = lemma.Entry{Lemma: lemmaText, Language: w.Language, POS: w.POS, Level: w.Level}
		}
		e.Forms = append(e.Forms, w.Forms...)
		if len(variants) > 0 && e.Variants == nil {
			e.Variants = make(map[string]string, len(variants))
		}
		for v, c := range variants {
			e.Variants[v] = c
		}
		lx.Add(e)
	}
	return lx, nil
}

package dictionary

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

// Importer writes lexicon entries to the word store and fills in missing
// metadata for words that arrived without it (e.g. from article import).
type Importer struct {
	conn   *sql.DB
	lex    *lemma.Lexicon
	logger *zap.Logger
}

// NewImporter creates an importer over the given lexicon. A nil logger
// means no logging.
func NewImporter(conn *sql.DB, lex *lemma.Lexicon, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{conn: conn, lex: lex, logger: logger}
}

// Import upserts every lexicon entry as a word with its forms and variants,
// in one transaction. It returns the number of entries written.
func (im *Importer) Import(ctx context.Context) (int, error) {
	entries := im.lex.Entries()
	err := db.WithTx(ctx, im.conn, func(tx *sql.Tx) error {
		for _, e := range entries {
			id, err := db.CreateOrGetWord(ctx, tx, EntryWord(e))
			if err != nil {
				return err
			}
			for variant, canonical := range e.Variants {
				if err := db.AddVariant(ctx, tx, id, variant, canonical); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	im.logger.Info("lexicon imported", zap.Int("entries", len(entries)))
	return len(entries), nil
}

// ProcessUpdates finds lexicon entries for stored words that lack a part of
// speech and copies POS, level and forms onto them.
func (im *Importer) ProcessUpdates(ctx context.Context) (int, error) {
	words, err := db.ListWords(ctx, im.conn, "")
	if err != nil {
		return 0, err
	}

	updatedCount := 0
	for _, w := range words {
		if w.POS != "" {
			continue
		}
		e, ok := im.Lookup(w)
		if !ok {
			continue
		}
		w.POS = e.POS
		w.Level = e.Level
		w.Forms = append(w.Forms, e.Forms...)
		if _, err := db.CreateOrGetWord(ctx, im.conn, w); err != nil {
			im.logger.Warn("failed to update word", zap.Int64("word_id", w.ID), zap.Error(err))
			continue
		}
		updatedCount++
	}
	return updatedCount, nil
}

// Lookup finds the entry for a word: first by its lemma, then by any lemma
// its text belongs to.
func (im *Importer) Lookup(w vocab.Word) (lemma.Entry, bool) {
	if w.Lemma != "" {
		if e, ok := im.lex.Entry(w.Lemma); ok {
			return e, true
		}
	}
	for _, l := range im.lex.Lemmas(w.Text) {
		if e, ok := im.lex.Entry(l); ok {
			return e, true
		}
	}
	return lemma.Entry{}, false
}

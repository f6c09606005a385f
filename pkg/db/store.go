package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/japaniel/clozer/pkg/vocab"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetWord returns the existing word id or inserts a new word and
// returns its id. POS and level fill in blanks on an existing row; forms are
// added, never removed.
func CreateOrGetWord(ctx context.Context, db DBExecutor, w vocab.Word) (int64, error) {
	trimmedWord := strings.TrimSpace(w.Text)
	if trimmedWord == "" {
		return 0, errors.Wrap(vocab.ErrInvalidInput, "word must be non-empty")
	}

	var id int64
	query := `INSERT INTO words (word, lemma, language, pos, level)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(word, lemma, language)
			  DO UPDATE SET
			    pos = COALESCE(NULLIF(excluded.pos, ''), words.pos),
				level = COALESCE(NULLIF(excluded.level, ''), words.level)
			  RETURNING id`

	err := db.QueryRowContext(ctx, query, trimmedWord, strings.TrimSpace(w.Lemma), w.Language, string(w.POS), string(w.Level)).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "upsert word %q", trimmedWord)
	}
	forms := append([]string{trimmedWord}, w.Forms...)
	if err := AddForms(ctx, db, id, forms...); err != nil {
		return 0, err
	}
	return id, nil
}

// AddForms records accepted surface forms for a word.
func AddForms(ctx context.Context, db DBExecutor, wordID int64, forms ...string) error {
	for _, f := range forms {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO word_forms (word_id, form) VALUES (?, ?)`, wordID, f); err != nil {
			return errors.Wrapf(err, "add form %q to word %d", f, wordID)
		}
	}
	return nil
}

// AddVariant records an alternative spelling of canonical for a word. A
// variant is matched as its canonical form but never shown as an answer.
func AddVariant(ctx context.Context, db DBExecutor, wordID int64, variant, canonical string) error {
	variant, canonical = strings.TrimSpace(variant), strings.TrimSpace(canonical)
	if variant == "" || canonical == "" {
		return errors.Wrap(vocab.ErrInvalidInput, "variant and canonical must be non-empty")
	}
	_, err := db.ExecContext(ctx, `INSERT INTO word_forms (word_id, form, canonical) VALUES (?, ?, ?)
		ON CONFLICT(word_id, form) DO UPDATE SET canonical = excluded.canonical`, wordID, variant, canonical)
	return errors.Wrapf(err, "add variant %q to word %d", variant, wordID)
}

// Variants returns the variant -> canonical spellings recorded for a word.
func Variants(ctx context.Context, db DBExecutor, wordID int64) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT form, canonical FROM word_forms WHERE word_id = ? AND canonical != '' ORDER BY form`, wordID)
	if err != nil {
		return nil, errors.Wrap(err, "query variants")
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var v, c string
		if err := rows.Scan(&v, &c); err != nil {
			return nil, errors.Wrap(err, "scan variant")
		}
		out[v] = c
	}
	return out, errors.Wrap(rows.Err(), "iterate variants")
}

const wordColumns = `w.id, w.word, w.lemma, w.language, w.pos, w.level`

func scanWord(row interface{ Scan(...interface{}) error }) (vocab.Word, error) {
	var w vocab.Word
	var pos, level string
	if err := row.Scan(&w.ID, &w.Text, &w.Lemma, &w.Language, &pos, &level); err != nil {
		return vocab.Word{}, err
	}
	w.POS = vocab.POS(pos)
	w.Level = vocab.Level(level)
	return w, nil
}

// GetWord loads a word and its accepted forms. An unknown id is
// vocab.ErrInvalidInput.
func GetWord(ctx context.Context, db DBExecutor, id int64) (vocab.Word, error) {
	w, err := scanWord(db.QueryRowContext(ctx, `SELECT `+wordColumns+` FROM words w WHERE w.id = ?`, id))
	if err == sql.ErrNoRows {
		return vocab.Word{}, errors.Wrapf(vocab.ErrInvalidInput, "word %d not found", id)
	}
	if err != nil {
		return vocab.Word{}, errors.Wrapf(err, "get word %d", id)
	}
	forms, err := wordForms(ctx, db, []int64{id})
	if err != nil {
		return vocab.Word{}, err
	}
	w.Forms = forms[id]
	return w, nil
}

// ListWords returns all words of a language with their forms, ordered by id.
// An empty language lists every word.
func ListWords(ctx context.Context, db DBExecutor, language string) ([]vocab.Word, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+wordColumns+` FROM words w WHERE ? = '' OR w.language = ? ORDER BY w.id`, language, language)
	if err != nil {
		return nil, errors.Wrap(err, "list words")
	}
	defer rows.Close()
	var out []vocab.Word
	var ids []int64
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan word")
		}
		out = append(out, w)
		ids = append(ids, w.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate words")
	}
	rows.Close()

	forms, err := wordForms(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Forms = forms[out[i].ID]
	}
	return out, nil
}

// wordForms loads the accepted forms of the given words. Variants are
// excluded.
func wordForms(ctx context.Context, db DBExecutor, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	query := `SELECT word_id, form FROM word_forms WHERE canonical = '' ORDER BY word_id, rowid`
	var args []interface{}
	if len(ids) == 1 {
		query = `SELECT word_id, form FROM word_forms WHERE canonical = '' AND word_id = ? ORDER BY rowid`
		args = append(args, ids[0])
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query forms")
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var f string
		if err := rows.Scan(&id, &f); err != nil {
			return nil, errors.Wrap(err, "scan form")
		}
		if want[id] {
			out[id] = append(out[id], f)
		}
	}
	return out, errors.Wrap(rows.Err(), "iterate forms")
}

// CreateOrGetSource returns existing source id or inserts a new source and returns its id.
func CreateOrGetSource(ctx context.Context, db DBExecutor, sourceType, title, author, website, url, meta string) (int64, error) {
	trimmedSourceType := strings.TrimSpace(sourceType)
	if trimmedSourceType == "" {
		return 0, errors.Wrap(vocab.ErrInvalidInput, "sourceType must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		// First, try to find an existing source.
		err := db.QueryRowContext(ctx,
			`SELECT id FROM sources WHERE IFNULL(url, '') = ? AND IFNULL(title, '') = ? AND IFNULL(author, '') = ?`,
			url, title, author,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, errors.Wrap(err, "find source")
		}

		// No existing row; try to insert one.
		res, err := db.ExecContext(ctx,
			`INSERT INTO sources (source_type, title, author, website, url, meta) VALUES (?, ?, ?, ?, ?, ?)`,
			trimmedSourceType, title, author, website, url, meta,
		)
		if err != nil {
			// If another concurrent transaction inserted the same source, retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, errors.Wrap(err, "insert source")
		}
		return res.LastInsertId()
	}

	return 0, errors.Errorf("could not create or get source after %d retries", maxRetries)
}

func getOrCreateSentence(ctx context.Context, db DBExecutor, text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, errors.Wrap(vocab.ErrInvalidInput, "sentence must be non-empty")
	}
	var id int64
	// Try to find existing sentence first
	if err := db.QueryRowContext(ctx, `SELECT id FROM sentences WHERE text = ?`, trimmed).Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return 0, errors.Wrap(err, "find sentence")
	}
	// Insert if missing (concurrent-safe via UNIQUE constraint)
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO sentences (text) VALUES (?)`, trimmed); err != nil {
		return 0, errors.Wrap(err, "insert sentence")
	}
	if err := db.QueryRowContext(ctx, `SELECT id FROM sentences WHERE text = ?`, trimmed).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "reselect sentence")
	}
	return id, nil
}

// AddClozeSentence stores a blanked sentence for a word. The same sentence
// is stored once per word; the existing id is returned for a duplicate.
// sourceID may be zero.
func AddClozeSentence(ctx context.Context, db DBExecutor, s vocab.Sentence, sourceID int64) (int64, error) {
	if s.WordID <= 0 {
		return 0, errors.Wrap(vocab.ErrInvalidInput, "wordID must be positive")
	}
	if !strings.Contains(s.Blanked, vocab.Blank) || strings.TrimSpace(s.Answer) == "" {
		return 0, errors.Wrapf(vocab.ErrInvalidInput, "sentence %q has no blank or answer", s.Text)
	}
	sentenceID, err := getOrCreateSentence(ctx, db, s.Text)
	if err != nil {
		return 0, err
	}
	origin := s.Source
	if origin == "" {
		origin = OriginCorpus
	}
	_, err = db.ExecContext(ctx, `INSERT INTO cloze_sentences (word_id, sentence_id, source_id, blanked, answer, origin)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(word_id, sentence_id) DO NOTHING`,
		s.WordID, sentenceID, nullableInt64(sourceID), s.Blanked, s.Answer, origin)
	if err != nil {
		return 0, errors.Wrapf(err, "insert cloze sentence for word %d", s.WordID)
	}
	var id int64
	err = db.QueryRowContext(ctx, `SELECT id FROM cloze_sentences WHERE word_id = ? AND sentence_id = ?`, s.WordID, sentenceID).Scan(&id)
	return id, errors.Wrap(err, "reselect cloze sentence")
}

// NextClozeSentence picks the least-shown sentence for a word and bumps its
// shown count. ok is false when the word has no sentence.
func NextClozeSentence(ctx context.Context, db DBExecutor, wordID int64) (s vocab.Sentence, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT c.id, c.word_id, s.text, c.blanked, c.answer, c.origin
		FROM cloze_sentences c JOIN sentences s ON s.id = c.sentence_id
		WHERE c.word_id = ?
		ORDER BY c.shown_count, c.id
		LIMIT 1`, wordID).Scan(&s.ID, &s.WordID, &s.Text, &s.Blanked, &s.Answer, &s.Source)
	if err == sql.ErrNoRows {
		return vocab.Sentence{}, false, nil
	}
	if err != nil {
		return vocab.Sentence{}, false, errors.Wrapf(err, "next sentence for word %d", wordID)
	}
	if _, err := db.ExecContext(ctx, `UPDATE cloze_sentences SET shown_count = shown_count + 1 WHERE id = ?`, s.ID); err != nil {
		return vocab.Sentence{}, false, errors.Wrapf(err, "bump sentence %d", s.ID)
	}
	return s, true, nil
}

// CountClozeSentences returns how many sentences a word has.
func CountClozeSentences(ctx context.Context, db DBExecutor, wordID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cloze_sentences WHERE word_id = ?`, wordID).Scan(&n)
	return n, errors.Wrap(err, "count sentences")
}

// nullableInt64 returns nil for 0 (meaning no row) else the value.
func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// GetSourceProgress returns the last processed sentence index for a source.
func GetSourceProgress(ctx context.Context, db DBExecutor, sourceID int64) (int, error) {
	var index int
	err := db.QueryRowContext(ctx, "SELECT last_processed_sentence FROM sources WHERE id = ?", sourceID).Scan(&index)
	if err == sql.ErrNoRows {
		return 0, errors.Wrapf(vocab.ErrInvalidInput, "source %d not found", sourceID)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "source %d progress", sourceID)
	}
	return index, nil
}

// UpdateSourceProgress updates the last processed sentence index.
func UpdateSourceProgress(ctx context.Context, db DBExecutor, sourceID int64, index int) error {
	_, err := db.ExecContext(ctx, "UPDATE sources SET last_processed_sentence = ? WHERE id = ?", index, sourceID)
	return errors.Wrapf(err, "update source %d progress", sourceID)
}

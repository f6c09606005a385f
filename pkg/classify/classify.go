// Package classify judges a learner's answer against the expected word and,
// for wrong answers, decides what kind of mistake it was.
package classify

import (
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

// DefaultMaxEdits caps the spelling tolerance for long words.
const DefaultMaxEdits = 2

// Judgement is the result of classifying one answer.
type Judgement struct {
	Outcome   vocab.Outcome
	ErrorKind vocab.ErrorKind
	// Nearest is the accepted form closest to the answer and Distance its
	// edit distance. For a correct answer Nearest is the matched form.
	Nearest  string
	Distance int
}

// Config tunes a Classifier. Zero values produce defaults.
type Config struct {
	MaxEdits int // zero -> DefaultMaxEdits
}

// Classifier applies the decision policy: match, then same lemma
// (conjugation), then edit distance (spelling), else substitution.
type Classifier struct {
	forms       lemma.LemmaSource
	matcher     lemma.Matcher
	lemmatizers []lemma.Lemmatizer
	maxEdits    int
}

// New creates a Classifier. A nil source means lemma.WordForms. The
// lemmatizers decide whether a wrong answer shares the expected lemma; if
// one of them also implements lemma.Canonicalizer it backs spelling-variant
// matching.
func New(cfg Config, forms lemma.LemmaSource, lemmatizers ...lemma.Lemmatizer) *Classifier {
	if forms == nil {
		forms = lemma.WordForms{}
	}
	maxEdits := cfg.MaxEdits
	if maxEdits <= 0 {
		maxEdits = DefaultMaxEdits
	}
	c := &Classifier{forms: forms, lemmatizers: lemmatizers, maxEdits: maxEdits}
	for _, l := range lemmatizers {
		if canon, ok := l.(lemma.Canonicalizer); ok {
			c.matcher.Canon = canon
			break
		}
	}
	return c
}

// Classify judges answer against w. It fails only when w carries nothing to
// compare against.
func (c *Classifier) Classify(w vocab.Word, answer string) (Judgement, error) {
	accepted := c.forms.AcceptedForms(w)
	if len(accepted) == 0 {
		return Judgement{}, fmt.Errorf("%w: word %d has no accepted forms", vocab.ErrInvalidInput, w.ID)
	}

	norm := lemma.Normalize(answer)
	nearest, dist := c.nearest(norm, accepted)

	switch {
	case norm == "":
		return Judgement{Outcome: vocab.Incorrect, ErrorKind: vocab.Substitution, Nearest: nearest, Distance: dist}, nil
	case c.matcher.Matches(norm, accepted):
		return Judgement{Outcome: vocab.Correct, ErrorKind: vocab.ErrorNone, Nearest: nearest, Distance: dist}, nil
	case c.sameLemma(string(norm), w):
		return Judgement{Outcome: vocab.Incorrect, ErrorKind: vocab.Conjugation, Nearest: nearest, Distance: dist}, nil
	case dist >= 0 && dist <= tolerance(norm, nearest, c.maxEdits):
		return Judgement{Outcome: vocab.Incorrect, ErrorKind: vocab.Spelling, Nearest: nearest, Distance: dist}, nil
	default:
		return Judgement{Outcome: vocab.Incorrect, ErrorKind: vocab.Substitution, Nearest: nearest, Distance: dist}, nil
	}
}

// sameLemma checks the answer against the word's lemma. An answer equal to
// the bare lemma (an infinitive where a conjugated form was due) counts too.
// Stems are consulted last: only for verbs, only when no exact lemmatizer
// already knows the answer, and only for answers that read as inflections.
func (c *Classifier) sameLemma(answer string, w vocab.Word) bool {
	target := w.Lemma
	if target == "" {
		target = w.Text
	}
	normTarget := lemma.Normalize(target)
	if normTarget == "" {
		return false
	}
	if lemma.NormalForm(answer) == normTarget {
		return true
	}

	var guessers []lemma.VerbGuesser
	known := false
	for _, l := range c.lemmatizers {
		if l == nil {
			continue
		}
		if g, ok := l.(lemma.VerbGuesser); ok {
			guessers = append(guessers, g)
			continue
		}
		if lemma.SameLemma(answer, target, l) {
			return true
		}
		if _, ok := l.Lemma(answer); ok {
			known = true
		}
	}
	if known || w.POS != vocab.POSVerb {
		return false
	}
	for _, g := range guessers {
		if g.VerbForm(answer) && lemma.SameLemma(answer, target, g) {
			return true
		}
	}
	return false
}

// nearest returns the accepted form with the smallest edit distance to
// answer. Ties keep the earlier form.
func (c *Classifier) nearest(answer lemma.NormalForm, accepted []string) (string, int) {
	best, bestDist := "", -1
	for _, f := range accepted {
		nf := lemma.Normalize(f)
		if nf == "" {
			continue
		}
		d := levenshtein.ComputeDistance(string(answer), string(nf))
		if bestDist < 0 || d < bestDist {
			best, bestDist = f, d
		}
	}
	return best, bestDist
}

// tolerance scales the allowed edits with word length: one edit per three
// characters of the longer string, at least one, at most maxEdits.
func tolerance(answer lemma.NormalForm, nearest string, maxEdits int) int {
	n := utf8.RuneCountInString(string(answer))
	if m := utf8.RuneCountInString(string(lemma.Normalize(nearest))); m > n {
		n = m
	}
	t := n / 3
	if t < 1 {
		t = 1
	}
	if t > maxEdits {
		t = maxEdits
	}
	return t
}

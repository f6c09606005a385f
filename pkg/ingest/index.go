package ingest

import (
	"github.com/japaniel/clozer/pkg/corpus"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

// WordIndex finds the known words a token can stand for. Surface forms win
// over lemmas: "fait" matches the word whose forms list it before any word
// that merely shares its lemma.
type WordIndex struct {
	forms  map[lemma.NormalForm][]int64
	lemmas map[lemma.NormalForm][]int64
	size   int
}

// NewWordIndex indexes words by their normalized forms and lemmas.
func NewWordIndex(words []vocab.Word) *WordIndex {
	ix := &WordIndex{
		forms:  make(map[lemma.NormalForm][]int64),
		lemmas: make(map[lemma.NormalForm][]int64),
	}
	for _, w := range words {
		if w.ID <= 0 {
			continue
		}
		ix.size++
		seen := make(map[lemma.NormalForm]bool)
		for _, f := range append([]string{w.Text}, w.Forms...) {
			nf := lemma.Normalize(f)
			if nf == "" || seen[nf] {
				continue
			}
			seen[nf] = true
			ix.forms[nf] = append(ix.forms[nf], w.ID)
		}
		if l := lemma.Normalize(w.Lemma); l != "" {
			ix.lemmas[l] = append(ix.lemmas[l], w.ID)
		}
	}
	return ix
}

// Len returns the number of indexed words.
func (ix *WordIndex) Len() int { return ix.size }

// Match returns the ids of the words the token can be blanked for.
func (ix *WordIndex) Match(t corpus.Token) []int64 {
	if ids := ix.forms[lemma.Normalize(t.Surface)]; len(ids) > 0 {
		return ids
	}
	if t.BaseForm == "" {
		return nil
	}
	return ix.lemmas[lemma.Normalize(t.BaseForm)]
}

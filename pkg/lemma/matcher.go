package lemma

import (
	"github.com/japaniel/clozer/pkg/vocab"
)

// LemmaSource supplies the surface forms accepted as a correct answer for a
// word.
type LemmaSource interface {
	AcceptedForms(w vocab.Word) []string
}

// Lemmatizer resolves a surface form to its lemma. ok is false when the form
// is unknown to the lemmatizer.
type Lemmatizer interface {
	Lemma(form string) (lemma string, ok bool)
}

// VerbGuesser is a Lemmatizer whose lemmas are heuristic, such as stems.
// Callers should trust it only for verbs, and only when VerbForm holds.
type VerbGuesser interface {
	Lemmatizer
	VerbForm(form string) bool
}

// Canonicalizer maps spelling variants of a form onto one canonical spelling.
type Canonicalizer interface {
	Canonical(form NormalForm) NormalForm
}

// WordForms is the LemmaSource that trusts the word itself: its text plus
// its declared forms.
type WordForms struct{}

// AcceptedForms returns w.Text followed by w.Forms, without duplicates.
func (WordForms) AcceptedForms(w vocab.Word) []string {
	seen := make(map[string]bool, len(w.Forms)+1)
	var out []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(w.Text)
	for _, f := range w.Forms {
		add(f)
	}
	return out
}

// Matcher compares normalized answers with accepted forms.
// A nil Canon compares normal forms only.
type Matcher struct {
	Canon Canonicalizer
}

// Matches reports whether answer equals any accepted form after
// normalization, or shares a canonical spelling with one.
func (m Matcher) Matches(answer NormalForm, accepted []string) bool {
	if answer == "" {
		return false
	}
	canonAnswer := m.canonical(answer)
	for _, f := range accepted {
		nf := Normalize(f)
		if nf == "" {
			continue
		}
		if nf == answer || m.canonical(nf) == canonAnswer {
			return true
		}
	}
	return false
}

func (m Matcher) canonical(f NormalForm) NormalForm {
	if m.Canon == nil {
		return f
	}
	return m.Canon.Canonical(f)
}

// Matches is Matcher{}.Matches.
func Matches(answer NormalForm, accepted []string) bool {
	return Matcher{}.Matches(answer, accepted)
}

// multiLemmatizer is implemented by lemmatizers that know every lemma an
// ambiguous form may belong to.
type multiLemmatizer interface {
	Lemmas(form string) []string
}

// SameLemma reports whether one of the lemmatizers resolves a and b to the
// same lemma. Lemmatizers are consulted independently; a stem from one is
// never compared with a dictionary lemma from another.
func SameLemma(a, b string, ls ...Lemmatizer) bool {
	if Normalize(a) == "" || Normalize(b) == "" {
		return false
	}
	for _, l := range ls {
		if l == nil {
			continue
		}
		if ml, ok := l.(multiLemmatizer); ok {
			if intersects(ml.Lemmas(a), ml.Lemmas(b)) {
				return true
			}
			continue
		}
		la, okA := l.Lemma(a)
		lb, okB := l.Lemma(b)
		if okA && okB && la == lb {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

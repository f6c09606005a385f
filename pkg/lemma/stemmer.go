package lemma

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
)

var snowballLanguages = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"hu": "hungarian",
	"no": "norwegian",
	"ru": "russian",
	"sv": "swedish",
}

// verbEndings holds, per Snowball language, the accent-free endings a verb
// stem can take. A language without a table never reports a verb form.
var verbEndings = map[string]map[string]bool{
	"french": endingSet(
		[]string{"", "e", "es", "ent", "ons", "ez", "er", "ir", "re", "oir"},
		[]string{"ais", "ait", "ions", "iez", "aient", "ant"},
		[]string{"ai", "as", "a", "ames", "ates", "erent", "irent", "i", "is", "it", "imes", "ites"},
		[]string{"ee", "ees", "ie", "ies", "u", "ue", "us", "ues"},
		cross([]string{"er", "ir", "r"}, []string{"ai", "as", "a", "ons", "ez", "ont", "ais", "ait", "ions", "iez", "aient"}),
		cross([]string{"iss"}, []string{"e", "es", "ent", "ons", "ez", "ais", "ait", "ions", "iez", "aient", "ant"}),
	),
	"spanish": endingSet(
		[]string{"", "ar", "er", "ir", "o", "as", "a", "amos", "ais", "an", "es", "e", "emos", "eis", "en", "imos", "is"},
		[]string{"aba", "abas", "abamos", "abais", "aban", "ia", "ias", "iamos", "iais", "ian"},
		[]string{"aste", "asteis", "aron", "i", "iste", "io", "isteis", "ieron"},
		[]string{"ado", "ada", "ados", "adas", "ido", "ida", "idos", "idas", "ando", "iendo"},
		cross([]string{"ar", "er", "ir"}, []string{"e", "as", "a", "emos", "eis", "an", "ia", "ias", "iamos", "iais", "ian"}),
		cross([]string{"ar", "ier"}, []string{"a", "as", "amos", "ais", "an"}),
	),
	"english": endingSet([]string{"", "s", "es", "ed", "d", "ing"}),
}

func cross(heads, tails []string) []string {
	out := make([]string, 0, len(heads)*len(tails))
	for _, h := range heads {
		for _, t := range tails {
			out = append(out, h+t)
		}
	}
	return out
}

func endingSet(groups ...[]string) map[string]bool {
	m := make(map[string]bool)
	for _, g := range groups {
		for _, s := range g {
			m[s] = true
		}
	}
	return m
}

// Stemmer is a Snowball-backed Lemmatizer. The "lemma" it returns is a stem,
// so it is only ever compared with other stems from the same Stemmer.
type Stemmer struct {
	language string
}

var _ VerbGuesser = Stemmer{}

// NewStemmer returns a Stemmer for an ISO 639-1 language code.
func NewStemmer(lang string) (Stemmer, error) {
	name, ok := snowballLanguages[strings.ToLower(lang)]
	if !ok {
		return Stemmer{}, fmt.Errorf("lemma: no stemmer for language %q", lang)
	}
	return Stemmer{language: name}, nil
}

// Lemma stems a single word. Phrases and empty input are unknown.
func (s Stemmer) Lemma(form string) (string, bool) {
	n := string(Normalize(form))
	if n == "" || strings.ContainsRune(n, ' ') || s.language == "" {
		return "", false
	}
	stem, err := snowball.Stem(n, s.language, true)
	if err != nil || stem == "" {
		return "", false
	}
	return stem, true
}

// VerbForm reports whether form is its stem followed by a verb ending.
// "parlait" is; "parlement" shares the stem of "parler" but is not.
func (s Stemmer) VerbForm(form string) bool {
	endings, ok := verbEndings[s.language]
	if !ok {
		return false
	}
	stem, ok := s.Lemma(form)
	if !ok {
		return false
	}
	n := string(Normalize(form))
	if !strings.HasPrefix(n, stem) {
		return false
	}
	return endings[n[len(stem):]]
}

package lemma

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/japaniel/clozer/pkg/vocab"
)

// Entry is one lemma and its paradigm as stored in a lexicon file.
type Entry struct {
	Lemma    string      `json:"lemma" yaml:"lemma"`
	Language string      `json:"language" yaml:"language"`
	POS      vocab.POS   `json:"pos" yaml:"pos"`
	Level    vocab.Level `json:"level" yaml:"level"`
	// Forms lists every inflected surface form of the lemma.
	Forms []string `json:"forms" yaml:"forms"`
	// Variants maps alternate spellings to the form they stand for,
	// e.g. "clef" -> "clé".
	Variants map[string]string `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// LoadLexicon reads a lexicon file. JSON is the default; .yaml and .yml
// files are read as YAML. Both {"entries": [...]} and a bare list are
// accepted.
func LoadLexicon(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeLexicon(data, yaml.Unmarshal)
	default:
		return decodeLexicon(data, json.Unmarshal)
	}
}

func decodeLexicon(data []byte, unmarshal func([]byte, interface{}) error) ([]Entry, error) {
	var wrapped struct {
		Entries []Entry `json:"entries" yaml:"entries"`
	}
	if err := unmarshal(data, &wrapped); err == nil && len(wrapped.Entries) > 0 {
		return wrapped.Entries, nil
	}
	var entries []Entry
	if err := unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon as object or list: %w", err)
	}
	return entries, nil
}

// Lexicon is an in-memory paradigm table. It is a Lemmatizer (form to
// lemmas), a Canonicalizer (spelling variants) and a LemmaSource.
// It is safe for concurrent use.
type Lexicon struct {
	mu      sync.RWMutex
	lemmas  map[NormalForm][]string // form -> lemmas, in registration order
	canon   map[NormalForm]NormalForm
	entries map[NormalForm]Entry // keyed by normalized lemma
}

// NewLexicon builds a lexicon from the given entries.
func NewLexicon(entries []Entry) *Lexicon {
	lx := &Lexicon{
		lemmas:  make(map[NormalForm][]string),
		canon:   make(map[NormalForm]NormalForm),
		entries: make(map[NormalForm]Entry),
	}
	for _, e := range entries {
		lx.Add(e)
	}
	return lx
}

// Add registers an entry. The lemma itself always resolves to itself.
func (lx *Lexicon) Add(e Entry) {
	key := Normalize(e.Lemma)
	if key == "" {
		return
	}
	lx.mu.Lock()
	defer lx.mu.Unlock()

	lx.entries[key] = e
	lx.indexLocked(key, string(key))
	for _, f := range e.Forms {
		lx.indexLocked(Normalize(f), string(key))
	}
	for variant, target := range e.Variants {
		v, t := Normalize(variant), Normalize(target)
		if v == "" || t == "" {
			continue
		}
		lx.canon[v] = t
		lx.indexLocked(v, string(key))
	}
}

func (lx *Lexicon) indexLocked(form NormalForm, lemma string) {
	if form == "" {
		return
	}
	for _, l := range lx.lemmas[form] {
		if l == lemma {
			return
		}
	}
	lx.lemmas[form] = append(lx.lemmas[form], lemma)
}

// Lemma returns the first lemma registered for form.
func (lx *Lexicon) Lemma(form string) (string, bool) {
	ls := lx.Lemmas(form)
	if len(ls) == 0 {
		return "", false
	}
	return ls[0], true
}

// Lemmas returns every lemma form may belong to ("fait" is both a form of
// faire and a noun).
func (lx *Lexicon) Lemmas(form string) []string {
	n := Normalize(form)
	lx.mu.RLock()
	defer lx.mu.RUnlock()
	ls := lx.lemmas[n]
	if len(ls) == 0 {
		return nil
	}
	return append([]string(nil), ls...)
}

// Canonical returns the spelling a variant stands for, or form itself.
func (lx *Lexicon) Canonical(form NormalForm) NormalForm {
	lx.mu.RLock()
	defer lx.mu.RUnlock()
	if c, ok := lx.canon[form]; ok {
		return c
	}
	return form
}

// AcceptedForms returns the word's own forms. A word that declares no forms
// falls back to the full paradigm of its lemma.
func (lx *Lexicon) AcceptedForms(w vocab.Word) []string {
	forms := WordForms{}.AcceptedForms(w)
	if len(w.Forms) > 0 {
		return forms
	}
	e, ok := lx.Entry(w.Lemma)
	if !ok {
		return forms
	}
	return WordForms{}.AcceptedForms(vocab.Word{Text: w.Text, Forms: e.Forms})
}

// Entry looks up the entry for a lemma.
func (lx *Lexicon) Entry(lemma string) (Entry, bool) {
	lx.mu.RLock()
	defer lx.mu.RUnlock()
	e, ok := lx.entries[Normalize(lemma)]
	return e, ok
}

// Entries returns all entries sorted by lemma.
func (lx *Lexicon) Entries() []Entry {
	lx.mu.RLock()
	out := make([]Entry, 0, len(lx.entries))
	for _, e := range lx.entries {
		out = append(out, e)
	}
	lx.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Lemma < out[j].Lemma
	})
	return out
}

// Len returns the number of lemmas.
func (lx *Lexicon) Len() int {
	lx.mu.RLock()
	defer lx.mu.RUnlock()
	return len(lx.entries)
}

// Package lemma turns raw answers and target words into comparable forms and
// resolves surface forms to lemmas through injected lookup tables and
// stemmers. Nothing in this package fails: unknown input simply does not match.
package lemma

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalForm is text after Normalize. Two answers compare equal when their
// normal forms are equal.
type NormalForm string

// Kana voicing marks decompose to combining marks under NFD and must survive
// diacritic stripping, otherwise が would fold into か.
const (
	kanaVoiced     = '\u3099'
	kanaSemiVoiced = '\u309A'
)

var ligatures = strings.NewReplacer("œ", "oe", "æ", "ae", "ß", "ss")

func isStrippedMark(r rune) bool {
	return unicode.Is(unicode.Mn, r) && r != kanaVoiced && r != kanaSemiVoiced
}

// Normalize lowercases text, strips Latin diacritics, folds ligatures and
// katakana, drops punctuation and symbols, and collapses whitespace.
func Normalize(text string) NormalForm {
	lower := strings.ToLower(text)
	// Chains carry buffers, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isStrippedMark)), norm.NFC)
	folded, _, err := transform.String(t, lower)
	if err != nil {
		folded = lower
	}
	folded = ToHiragana(ligatures.Replace(folded))

	var b strings.Builder
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return NormalForm(b.String())
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

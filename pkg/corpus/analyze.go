// Package corpus fetches readable text and splits it into tokenized
// sentences that cloze exercises can be cut from.
package corpus

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

// Token represents a single analyzed unit of text.
type Token struct {
	Surface  string // the text as it appears (e.g. "行っ", "faisait")
	BaseForm string // the dictionary form (e.g. "行く", "faire")
	Reading  string // katakana reading, Japanese only
	POS      vocab.POS
	// Start and End are byte offsets of Surface in the sentence text.
	Start, End int
}

// Sentence represents a sentence containing tokens.
type Sentence struct {
	Text   string
	Tokens []Token
}

// Blank returns the sentence text with token i replaced by vocab.Blank.
func (s Sentence) Blank(i int) string {
	t := s.Tokens[i]
	return s.Text[:t.Start] + vocab.Blank + s.Text[t.End:]
}

// Analyzer breaks one sentence into content tokens.
type Analyzer interface {
	Analyze(text string) ([]Token, error)
}

// AnalyzeDocument splits the text into sentences and tokenizes each sentence.
func AnalyzeDocument(a Analyzer, text string) ([]Sentence, error) {
	var result []Sentence
	for _, s := range splitSentences(text) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		tokens, err := a.Analyze(s)
		if err != nil {
			return nil, err
		}
		result = append(result, Sentence{Text: s, Tokens: tokens})
	}
	return result, nil
}

func isTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// splitSentences cuts after Japanese full stops and newlines, and after
// Latin terminal punctuation that is followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		switch {
		case r == '\n', r == '。', r == '！', r == '？':
		case isTerminal(r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])):
		default:
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// locate finds surface in text at or after from and returns its byte span.
func locate(text, surface string, from int) (int, int, bool) {
	i := strings.Index(text[from:], surface)
	if i < 0 {
		return 0, 0, false
	}
	start := from + i
	return start, start + len(surface), true
}

// JapaneseAnalyzer tokenizes Japanese with kagome and the IPA dictionary.
type JapaneseAnalyzer struct {
	t *tokenizer.Tokenizer
}

// NewJapaneseAnalyzer creates a new tokenizer instance.
func NewJapaneseAnalyzer() (*JapaneseAnalyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &JapaneseAnalyzer{t: t}, nil
}

// Analyze breaks text into tokens with readings and base forms.
func (a *JapaneseAnalyzer) Analyze(text string) ([]Token, error) {
	var result []Token
	cursor := 0
	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}
		start, end, ok := locate(text, token.Surface, cursor)
		if !ok {
			continue
		}
		cursor = end

		// IPA features: 0 POS, 1-3 sub-POS, 4 conjugation type,
		// 5 conjugation form, 6 base form, 7 reading, 8 pronunciation.
		features := token.Features()
		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}
		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}

		result = append(result, Token{
			Surface:  token.Surface,
			BaseForm: base,
			Reading:  reading,
			POS:      JapanesePOS(primaryPOS),
			Start:    start,
			End:      end,
		})
	}
	return result, nil
}

// JapanesePOS maps an IPA primary part of speech to a coarse tag.
func JapanesePOS(primary string) vocab.POS {
	switch primary {
	case "動詞":
		return vocab.POSVerb
	case "名詞":
		return vocab.POSNoun
	case "形容詞", "形容動詞":
		return vocab.POSAdjective
	case "副詞":
		return vocab.POSAdverb
	default:
		return vocab.POSOther
	}
}

// LatinAnalyzer splits alphabetic text into words. Elided articles and
// pronouns ("l'", "qu'") become their own tokens. The base form comes from
// the first lemmatizer that knows the word, else the lowercased surface.
type LatinAnalyzer struct {
	Lemmatizers []lemma.Lemmatizer
}

// Analyze breaks text into word tokens.
func (a LatinAnalyzer) Analyze(text string) ([]Token, error) {
	var result []Token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		surface := text[start:end]
		result = append(result, Token{
			Surface:  surface,
			BaseForm: a.baseForm(surface),
			POS:      vocab.POSOther,
			Start:    start,
			End:      end,
		})
		start = -1
	}
	for i, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsMark(r) || (r == '-' && start >= 0):
			if start < 0 {
				start = i
			}
		case r == '\'' || r == '’':
			// Keep the apostrophe with the elided word before it.
			if start >= 0 {
				flush(i + len(string(r)))
			}
		default:
			flush(i)
		}
	}
	flush(len(text))
	return result, nil
}

func (a LatinAnalyzer) baseForm(surface string) string {
	for _, l := range a.Lemmatizers {
		if base, ok := l.Lemma(surface); ok {
			return base
		}
	}
	return strings.ToLower(surface)
}

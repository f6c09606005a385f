package lemma

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Japanese resolves Japanese surface forms to their dictionary form using
// the kagome IPA tokenizer.
type Japanese struct {
	t *tokenizer.Tokenizer
}

// NewJapanese loads the IPA dictionary. This takes a moment; build one
// Japanese per process.
func NewJapanese() (*Japanese, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Japanese{t: t}, nil
}

// functionPOS are IPA primary parts of speech that never carry the lemma.
var functionPOS = map[string]bool{
	"記号":   true,
	"補助記号": true,
	"助詞":   true,
	"助動詞":  true,
}

// Lemma returns the base form of the first content token in form.
// IPA features: 0 POS, 6 base form.
func (j *Japanese) Lemma(form string) (string, bool) {
	if j == nil || strings.TrimSpace(form) == "" {
		return "", false
	}
	for _, tok := range j.t.Tokenize(form) {
		if tok.Class == tokenizer.DUMMY || strings.TrimSpace(tok.Surface) == "" {
			continue
		}
		features := tok.Features()
		if len(features) > 0 && functionPOS[features[0]] {
			continue
		}
		base := tok.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		n := Normalize(base)
		if n == "" {
			return "", false
		}
		return string(n), true
	}
	return "", false
}

// Package session turns the ordered attempts of one practice session into a
// bounded, prioritized summary and renders it as a short report.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/japaniel/clozer/pkg/vocab"
)

// Report limits.
const (
	MaxStrengths  = 3
	MaxWeaknesses = 2
)

// HeadlineKind selects the headline template.
type HeadlineKind int

const (
	HeadlineNoData HeadlineKind = iota
	HeadlineImproved
	HeadlineStruggling
	HeadlineSteady
)

var headlineNames = [...]string{
	HeadlineNoData:     "no_data",
	HeadlineImproved:   "improved",
	HeadlineStruggling: "struggling",
	HeadlineSteady:     "steady",
}

func (k HeadlineKind) String() string {
	if k >= 0 && int(k) < len(headlineNames) {
		return headlineNames[k]
	}
	return fmt.Sprintf("HeadlineKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k HeadlineKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *HeadlineKind) UnmarshalText(text []byte) error {
	for i, n := range headlineNames {
		if n == string(text) {
			*k = HeadlineKind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: headline %q", vocab.ErrInvalidInput, text)
}

// NudgeKind selects the forward-looking recommendation template.
type NudgeKind int

const (
	NudgeNewVocabulary NudgeKind = iota
	NudgeReview
	NudgeReinforce
)

var nudgeNames = [...]string{
	NudgeNewVocabulary: "new_vocabulary",
	NudgeReview:        "review",
	NudgeReinforce:     "reinforce",
}

func (k NudgeKind) String() string {
	if k >= 0 && int(k) < len(nudgeNames) {
		return nudgeNames[k]
	}
	return fmt.Sprintf("NudgeKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k NudgeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NudgeKind) UnmarshalText(text []byte) error {
	for i, n := range nudgeNames {
		if n == string(text) {
			*k = NudgeKind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: nudge %q", vocab.ErrInvalidInput, text)
}

// Finding is one word reported as a strength or a weakness.
type Finding struct {
	WordID   int64  `json:"word_id"`
	Word     string `json:"word"`
	Attempts int    `json:"attempts"`
	Errors   int    `json:"errors"`
	// Streak is the number of trailing correct answers.
	Streak int `json:"streak"`
	// Kind is the word's most frequent error kind, ErrorNone without errors.
	Kind vocab.ErrorKind `json:"kind"`
}

// Headline is the one-line session verdict.
type Headline struct {
	Kind   HeadlineKind `json:"kind"`
	WordID int64        `json:"word_id,omitempty"`
	Word   string       `json:"word,omitempty"`
}

// Insight names the dominant error pattern. Kind is ErrorNone when there
// was nothing to explain.
type Insight struct {
	Kind  vocab.ErrorKind `json:"kind"`
	Count int             `json:"count"`
}

// Nudge is the recommendation for the next session.
type Nudge struct {
	Kind   NudgeKind `json:"kind"`
	WordID int64     `json:"word_id,omitempty"`
	Word   string    `json:"word,omitempty"`
}

// ErrorCounts tallies wrong answers by kind.
type ErrorCounts struct {
	Substitution int `json:"substitution"`
	Conjugation  int `json:"conjugation"`
	Spelling     int `json:"spelling"`
}

func (c *ErrorCounts) add(k vocab.ErrorKind) {
	switch k {
	case vocab.Substitution:
		c.Substitution++
	case vocab.Conjugation:
		c.Conjugation++
	case vocab.Spelling:
		c.Spelling++
	}
}

// Confusion is a wrong word the learner gave in place of the expected one.
type Confusion struct {
	Word   string `json:"word"`
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

// Stats are the raw session numbers behind the findings.
type Stats struct {
	Total      int           `json:"total"`
	Correct    int           `json:"correct"`
	Words      int           `json:"words"`
	Errors     ErrorCounts   `json:"errors"`
	AvgLatency time.Duration `json:"avg_latency"`
	Confusions []Confusion   `json:"confusions,omitempty"`
}

// Summary is the structured session report.
type Summary struct {
	Headline   Headline  `json:"headline"`
	Strengths  []Finding `json:"strengths"`
	Weaknesses []Finding `json:"weaknesses"`
	Insight    Insight   `json:"insight"`
	Nudge      Nudge     `json:"nudge"`
	Stats      Stats     `json:"stats"`
}

type wordRecord struct {
	id       int64
	word     string
	first    int
	attempts []vocab.Attempt
}

func (r *wordRecord) errorKinds() ErrorCounts {
	var c ErrorCounts
	for _, a := range r.attempts {
		if a.Outcome == vocab.Incorrect {
			c.add(a.ErrorKind)
		}
	}
	return c
}

func (r *wordRecord) errors() int {
	n := 0
	for _, a := range r.attempts {
		if a.Outcome == vocab.Incorrect {
			n++
		}
	}
	return n
}

func (r *wordRecord) streak() int {
	n := 0
	for i := len(r.attempts) - 1; i >= 0 && r.attempts[i].Outcome == vocab.Correct; i-- {
		n++
	}
	return n
}

func (r *wordRecord) last() vocab.Attempt { return r.attempts[len(r.attempts)-1] }

func (r *wordRecord) finding() Finding {
	return Finding{
		WordID:   r.id,
		Word:     r.word,
		Attempts: len(r.attempts),
		Errors:   r.errors(),
		Streak:   r.streak(),
		Kind:     dominant(r.errorKinds()),
	}
}

// recovered: answered correctly last, after getting it wrong earlier.
func (r *wordRecord) recovered() bool {
	if r.last().Outcome != vocab.Correct {
		return false
	}
	return r.errors() > 0
}

func (r *wordRecord) weak() bool {
	errs := r.errors()
	if errs >= 2 {
		return true
	}
	if errs == 1 {
		k := dominant(r.errorKinds())
		return k == vocab.Conjugation || k == vocab.Substitution
	}
	return false
}

// dominant returns the most frequent kind; ties go to the higher signal.
func dominant(c ErrorCounts) vocab.ErrorKind {
	best, bestN := vocab.ErrorNone, 0
	for _, k := range []vocab.ErrorKind{vocab.Conjugation, vocab.Substitution, vocab.Spelling} {
		var n int
		switch k {
		case vocab.Conjugation:
			n = c.Conjugation
		case vocab.Substitution:
			n = c.Substitution
		case vocab.Spelling:
			n = c.Spelling
		}
		if n > bestN {
			best, bestN = k, n
		}
	}
	return best
}

// Summarize builds the summary of one session's attempts, given in answer
// order. It never fails; an empty session yields the NoData summary.
func Summarize(attempts []vocab.Attempt) Summary {
	s := Summary{
		Strengths:  []Finding{},
		Weaknesses: []Finding{},
	}
	if len(attempts) == 0 {
		return s
	}

	records := group(attempts)
	s.Stats = stats(attempts, records)

	// A word that recovered after repeated misses is both.
	var strong, weak []*wordRecord
	for _, r := range records {
		if r.recovered() {
			strong = append(strong, r)
		}
		if r.weak() {
			weak = append(weak, r)
		}
	}

	sort.SliceStable(strong, func(i, j int) bool {
		a, b := strong[i].streak(), strong[j].streak()
		if a != b {
			return a > b
		}
		return strong[i].first < strong[j].first
	})
	sort.SliceStable(weak, func(i, j int) bool {
		a, b := weak[i].errors(), weak[j].errors()
		if a != b {
			return a > b
		}
		sa, sb := dominant(weak[i].errorKinds()).Signal(), dominant(weak[j].errorKinds()).Signal()
		if sa != sb {
			return sa > sb
		}
		return weak[i].first < weak[j].first
	})
	if len(strong) > MaxStrengths {
		strong = strong[:MaxStrengths]
	}
	if len(weak) > MaxWeaknesses {
		weak = weak[:MaxWeaknesses]
	}
	for _, r := range strong {
		s.Strengths = append(s.Strengths, r.finding())
	}
	for _, r := range weak {
		s.Weaknesses = append(s.Weaknesses, r.finding())
	}

	s.Insight = insight(weak)
	s.Headline = headline(s.Strengths, s.Weaknesses)
	s.Nudge = nudge(s.Weaknesses, records)
	return s
}

func group(attempts []vocab.Attempt) []*wordRecord {
	byID := make(map[int64]*wordRecord)
	var order []*wordRecord
	for i, a := range attempts {
		r, ok := byID[a.WordID]
		if !ok {
			r = &wordRecord{id: a.WordID, word: a.Word, first: i}
			byID[a.WordID] = r
			order = append(order, r)
		}
		r.attempts = append(r.attempts, a)
	}
	return order
}

func stats(attempts []vocab.Attempt, records []*wordRecord) Stats {
	st := Stats{Total: len(attempts), Words: len(records)}

	var latency time.Duration
	var timed int
	confusions := make(map[[2]string]int)
	var confusionOrder [][2]string
	for _, a := range attempts {
		if a.Latency > 0 {
			latency += a.Latency
			timed++
		}
		if a.Outcome == vocab.Correct {
			st.Correct++
			continue
		}
		st.Errors.add(a.ErrorKind)
		if a.ErrorKind == vocab.Substitution && a.Answer != "" {
			key := [2]string{a.Word, a.Answer}
			if confusions[key] == 0 {
				confusionOrder = append(confusionOrder, key)
			}
			confusions[key]++
		}
	}
	if timed > 0 {
		st.AvgLatency = latency / time.Duration(timed)
	}
	for _, key := range confusionOrder {
		st.Confusions = append(st.Confusions, Confusion{Word: key[0], Answer: key[1], Count: confusions[key]})
	}
	return st
}

func insight(weak []*wordRecord) Insight {
	var total ErrorCounts
	for _, r := range weak {
		c := r.errorKinds()
		total.Substitution += c.Substitution
		total.Conjugation += c.Conjugation
		total.Spelling += c.Spelling
	}
	k := dominant(total)
	var n int
	switch k {
	case vocab.Conjugation:
		n = total.Conjugation
	case vocab.Substitution:
		n = total.Substitution
	case vocab.Spelling:
		n = total.Spelling
	}
	return Insight{Kind: k, Count: n}
}

func headline(strengths, weaknesses []Finding) Headline {
	switch {
	case len(strengths) > 0:
		return Headline{Kind: HeadlineImproved, WordID: strengths[0].WordID, Word: strengths[0].Word}
	case len(weaknesses) > 0:
		return Headline{Kind: HeadlineStruggling, WordID: weaknesses[0].WordID, Word: weaknesses[0].Word}
	default:
		return Headline{Kind: HeadlineSteady}
	}
}

func nudge(weaknesses []Finding, records []*wordRecord) Nudge {
	if len(weaknesses) > 0 {
		return Nudge{Kind: NudgeReview, WordID: weaknesses[0].WordID, Word: weaknesses[0].Word}
	}
	var lowest *wordRecord
	for _, r := range records {
		if lowest == nil || r.last().StrengthAfter < lowest.last().StrengthAfter {
			lowest = r
		}
	}
	return Nudge{Kind: NudgeReinforce, WordID: lowest.id, Word: lowest.word}
}

// Package vocab holds the data types shared by the review engine: words,
// memory records, attempts and the learner context.
package vocab

import "time"

// MinStrength and MaxStrength bound MemoryState.Strength.
const (
	MinStrength = 0
	MaxStrength = 5
)

// Learner identifies whose memory records a call reads or writes.
// There is one learner in practice, but it is always passed explicitly.
type Learner struct {
	ID int64
}

// DefaultLearner is the single local learner.
var DefaultLearner = Learner{ID: 1}

// POS is a coarse part-of-speech tag.
type POS string

const (
	POSVerb      POS = "verb"
	POSNoun      POS = "noun"
	POSAdjective POS = "adjective"
	POSAdverb    POS = "adverb"
	POSOther     POS = "other"
)

// Level is a CEFR difficulty level. It doubles as the difficulty requested
// from sentence providers.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Word is a vocabulary unit. It is reference data owned by the store.
type Word struct {
	ID       int64
	Text     string // canonical text, e.g. "fait"
	Lemma    string // base form, e.g. "faire"
	Language string // ISO 639-1 code
	POS      POS
	Level    Level
	// Forms are the surface forms accepted as correct answers.
	Forms []string
}

// MemoryState is the per-(learner, word) review record.
type MemoryState struct {
	WordID             int64
	Strength           int
	LastReviewedAt     time.Time // zero until the first review
	NextReviewAt       time.Time
	ConsecutiveCorrect int
	ConsecutiveErrors  int
}

// NewMemoryState returns the record for a word seen for the first time:
// strength 0 and due immediately.
func NewMemoryState(wordID int64, now time.Time) MemoryState {
	return MemoryState{WordID: wordID, NextReviewAt: now}
}

// Due reports whether the word should be reviewed at now.
func (m MemoryState) Due(now time.Time) bool {
	return !m.NextReviewAt.After(now)
}

// Attempt is one answer event. Attempts are never mutated after creation.
type Attempt struct {
	WordID     int64
	Word       string
	SentenceID int64
	Answer     string
	Outcome    Outcome
	ErrorKind  ErrorKind
	At         time.Time
	Latency    time.Duration // zero when unknown
	// StrengthAfter is the word's strength once this attempt was applied.
	StrengthAfter int
}

// Sentence is a practice sentence with a blank for one word.
type Sentence struct {
	ID      int64
	WordID  int64
	Text    string // full sentence
	Blanked string // sentence with the target replaced by Blank
	Answer  string // the surface form that was blanked out
	Source  string // "corpus", "generated", "manual"
}

// Blank is the placeholder written into blanked sentences.
const Blank = "____"

package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/clozer/pkg/vocab"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// builder hands out attempts one second apart.
type builder struct {
	n   int
	out []vocab.Attempt
}

func (b *builder) ok(id int64, word string, strength int) *builder {
	return b.add(vocab.Attempt{WordID: id, Word: word, Answer: word, Outcome: vocab.Correct, StrengthAfter: strength})
}

func (b *builder) miss(id int64, word, answer string, kind vocab.ErrorKind) *builder {
	return b.add(vocab.Attempt{WordID: id, Word: word, Answer: answer, Outcome: vocab.Incorrect, ErrorKind: kind})
}

func (b *builder) add(a vocab.Attempt) *builder {
	a.At = t0.Add(time.Duration(b.n) * time.Second)
	a.Latency = 2 * time.Second
	b.n++
	b.out = append(b.out, a)
	return b
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, HeadlineNoData, s.Headline.Kind)
	assert.Equal(t, NudgeNewVocabulary, s.Nudge.Kind)
	assert.Equal(t, vocab.ErrorNone, s.Insight.Kind)
	assert.Empty(t, s.Strengths)
	assert.Empty(t, s.Weaknesses)
	assert.Zero(t, s.Stats.Total)

	r := Render(s)
	assert.Equal(t, "No answers this session.", r.Headline)
	assert.Equal(t, "Next session: new vocabulary awaits.", r.Nudge)
}

func TestSummarizeRecoveredAndMissedWord(t *testing.T) {
	b := &builder{}
	b.miss(1, "faire", "fesait", vocab.Spelling).
		miss(1, "faire", "faisait", vocab.Conjugation).
		ok(1, "faire", 1).
		ok(1, "faire", 2).
		ok(1, "faire", 3).
		miss(2, "maison", "chat", vocab.Substitution)

	s := Summarize(b.out)

	require.Len(t, s.Strengths, 1)
	assert.Equal(t, int64(1), s.Strengths[0].WordID)
	assert.Equal(t, 3, s.Strengths[0].Streak)
	assert.Equal(t, 2, s.Strengths[0].Errors)

	// Two misses make faire a weakness too, ranked above the single miss.
	assert.Equal(t, []int64{1, 2}, ids(s.Weaknesses))
	assert.Equal(t, vocab.Substitution, s.Weaknesses[1].Kind)

	assert.Equal(t, Headline{Kind: HeadlineImproved, WordID: 1, Word: "faire"}, s.Headline)
	assert.Equal(t, Nudge{Kind: NudgeReview, WordID: 1, Word: "faire"}, s.Nudge)
	assert.Equal(t, Insight{Kind: vocab.Conjugation, Count: 1}, s.Insight)

	assert.Equal(t, 6, s.Stats.Total)
	assert.Equal(t, 3, s.Stats.Correct)
	assert.Equal(t, 2, s.Stats.Words)
	assert.Equal(t, ErrorCounts{Substitution: 1, Conjugation: 1, Spelling: 1}, s.Stats.Errors)
	assert.Equal(t, 2*time.Second, s.Stats.AvgLatency)
	assert.Equal(t, []Confusion{{Word: "maison", Answer: "chat", Count: 1}}, s.Stats.Confusions)
}

func TestSummarizeCapsFindings(t *testing.T) {
	b := &builder{}
	for id := int64(1); id <= 5; id++ {
		b.miss(id, "w", "x", vocab.Spelling).ok(id, "w", 1)
	}
	for id := int64(10); id <= 14; id++ {
		b.miss(id, "v", "x", vocab.Substitution).miss(id, "v", "y", vocab.Substitution)
	}
	s := Summarize(b.out)
	assert.Len(t, s.Strengths, MaxStrengths)
	assert.Len(t, s.Weaknesses, MaxWeaknesses)

	// Equal streaks and error counts fall back to first appearance.
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Strengths))
	assert.Equal(t, []int64{10, 11}, ids(s.Weaknesses))
}

func TestSummarizeRecoveredWordsStillCountAsWeak(t *testing.T) {
	b := &builder{}
	for id := int64(1); id <= 4; id++ {
		b.miss(id, "w", "x", vocab.Substitution).miss(id, "w", "y", vocab.Substitution).ok(id, "w", 1)
	}
	s := Summarize(b.out)
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Strengths))
	assert.Equal(t, []int64{1, 2}, ids(s.Weaknesses))
	assert.Equal(t, Insight{Kind: vocab.Substitution, Count: 4}, s.Insight)
	assert.Equal(t, Nudge{Kind: NudgeReview, WordID: 1, Word: "w"}, s.Nudge)
}

func TestSummarizeStrengthRanking(t *testing.T) {
	b := &builder{}
	b.miss(1, "a", "x", vocab.Spelling).ok(1, "a", 1)
	b.miss(2, "b", "x", vocab.Spelling).ok(2, "b", 1).ok(2, "b", 2).ok(2, "b", 3)
	b.miss(3, "c", "x", vocab.Spelling).ok(3, "c", 1).ok(3, "c", 2)
	s := Summarize(b.out)
	assert.Equal(t, []int64{2, 3, 1}, ids(s.Strengths))
}

func TestSummarizeWeaknessRanking(t *testing.T) {
	b := &builder{}
	b.miss(1, "a", "x", vocab.Spelling).miss(1, "a", "y", vocab.Spelling)
	b.miss(2, "b", "x", vocab.Conjugation).miss(2, "b", "y", vocab.Conjugation)
	b.miss(3, "c", "x", vocab.Substitution).miss(3, "c", "y", vocab.Substitution).miss(3, "c", "z", vocab.Spelling)
	s := Summarize(b.out)
	// Most errors first, then conjugation outranks spelling.
	assert.Equal(t, []int64{3, 2}, ids(s.Weaknesses))
	// Two substitutions and two conjugations: conjugation wins the tie.
	assert.Equal(t, Insight{Kind: vocab.Conjugation, Count: 2}, s.Insight)
	assert.Equal(t, HeadlineStruggling, s.Headline.Kind)
}

func TestSummarizeSingleSpellingSlipIsNotAWeakness(t *testing.T) {
	b := &builder{}
	b.ok(1, "a", 2).miss(2, "b", "bb", vocab.Spelling).ok(3, "c", 4)
	s := Summarize(b.out)
	assert.Empty(t, s.Weaknesses)
	assert.Empty(t, s.Strengths)
	assert.Equal(t, HeadlineSteady, s.Headline.Kind)
	assert.Equal(t, vocab.ErrorNone, s.Insight.Kind)
	// Weakest word touched, by strength after its last attempt.
	assert.Equal(t, Nudge{Kind: NudgeReinforce, WordID: 2, Word: "b"}, s.Nudge)
}

func TestSummarizeInsightTieBreak(t *testing.T) {
	b := &builder{}
	b.miss(1, "a", "x", vocab.Spelling).miss(1, "a", "y", vocab.Conjugation)
	s := Summarize(b.out)
	assert.Equal(t, vocab.Conjugation, s.Insight.Kind)
}

func TestSummaryJSON(t *testing.T) {
	b := &builder{}
	b.miss(1, "a", "x", vocab.Conjugation).ok(1, "a", 1)
	raw, err := json.Marshal(Summarize(b.out))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"improved"`)

	var back Summary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, HeadlineImproved, back.Headline.Kind)
	assert.Equal(t, vocab.Conjugation, back.Strengths[0].Kind)
}

func TestRender(t *testing.T) {
	b := &builder{}
	b.miss(1, "faire", "fesait", vocab.Spelling).ok(1, "faire", 1).miss(2, "maison", "chat", vocab.Substitution)
	r := Render(Summarize(b.out))
	assert.Equal(t, `You stopped hesitating on "faire". It is becoming automatic.`, r.Headline)
	assert.Equal(t, []string{"faire: 1 in a row after 1 miss(es)"}, r.Strengths)
	assert.Equal(t, []string{"maison: 1 miss(es), mostly substitution"}, r.Weaknesses)
	assert.Equal(t, `Next session will bring back "maison" in different contexts.`, r.Nudge)
	assert.Contains(t, r.String(), "1/3 correct across 2 word(s), 2.0s per answer")
}

func TestLogAppend(t *testing.T) {
	var l Log
	require.NoError(t, l.Append(vocab.Attempt{WordID: 1, Outcome: vocab.Correct, At: t0}))
	require.NoError(t, l.Append(vocab.Attempt{WordID: 1, Outcome: vocab.Incorrect, ErrorKind: vocab.Spelling, At: t0}))

	err := l.Append(vocab.Attempt{WordID: 1, Outcome: vocab.Correct, At: t0.Add(-time.Second)})
	assert.True(t, errors.Is(err, vocab.ErrInvalidInput))
	err = l.Append(vocab.Attempt{WordID: 1, At: t0})
	assert.True(t, errors.Is(err, vocab.ErrInvalidInput))
	err = l.Append(vocab.Attempt{WordID: 1, Outcome: vocab.Correct, ErrorKind: vocab.Spelling, At: t0})
	assert.True(t, errors.Is(err, vocab.ErrInvalidInput))

	assert.Equal(t, 2, l.Len())
	got := l.Attempts()
	got[0].WordID = 99
	assert.Equal(t, int64(1), l.Attempts()[0].WordID, "copy")
}

func TestLogConcurrentAppend(t *testing.T) {
	var l Log
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, l.Append(vocab.Attempt{WordID: id, Outcome: vocab.Correct, At: t0}))
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
	assert.Equal(t, 50, l.Summarize().Stats.Words)
}

func ids(fs []Finding) []int64 {
	out := make([]int64, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.WordID)
	}
	return out
}

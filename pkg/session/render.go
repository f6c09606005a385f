package session

import (
	"fmt"
	"strings"

	"github.com/japaniel/clozer/pkg/vocab"
)

// Report is the prose form of a Summary.
type Report struct {
	Headline   string
	Strengths  []string
	Weaknesses []string
	Insight    string
	Nudge      string
	Stats      string
}

var headlineTemplates = map[HeadlineKind]string{
	HeadlineNoData:     "No answers this session.",
	HeadlineImproved:   "You stopped hesitating on %q. It is becoming automatic.",
	HeadlineStruggling: "You are still working through %q. That is the hard part.",
	HeadlineSteady:     "You are building consistency across your vocabulary.",
}

var insightTemplates = map[vocab.ErrorKind]string{
	vocab.ErrorNone:    "No recurring error pattern this time.",
	vocab.Conjugation:  "Most misses were the right verb in the wrong form. Watch the tense and the subject.",
	vocab.Substitution: "Most misses used a different word altogether. Read the whole sentence before answering.",
	vocab.Spelling:     "Most misses were close spellings. Accents are forgiven, letters are not.",
}

var nudgeTemplates = map[NudgeKind]string{
	NudgeNewVocabulary: "Next session: new vocabulary awaits.",
	NudgeReview:        "Next session will bring back %q in different contexts.",
	NudgeReinforce:     "Next session will reinforce %q before it fades.",
}

// Render turns s into short sentences. It adds no information of its own.
func Render(s Summary) Report {
	r := Report{
		Headline: fill(headlineTemplates[s.Headline.Kind], s.Headline.Word),
		Insight:  insightTemplates[s.Insight.Kind],
		Nudge:    fill(nudgeTemplates[s.Nudge.Kind], s.Nudge.Word),
	}
	for _, f := range s.Strengths {
		r.Strengths = append(r.Strengths, fmt.Sprintf("%s: %d in a row after %d miss(es)", f.Word, f.Streak, f.Errors))
	}
	for _, f := range s.Weaknesses {
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("%s: %d miss(es), mostly %s", f.Word, f.Errors, f.Kind))
	}
	if s.Stats.Total > 0 {
		r.Stats = fmt.Sprintf("%d/%d correct across %d word(s)", s.Stats.Correct, s.Stats.Total, s.Stats.Words)
		if s.Stats.AvgLatency > 0 {
			r.Stats += fmt.Sprintf(", %.1fs per answer", s.Stats.AvgLatency.Seconds())
		}
	}
	return r
}

func fill(tmpl, word string) string {
	if strings.Contains(tmpl, "%q") {
		return fmt.Sprintf(tmpl, word)
	}
	return tmpl
}

// String lays the report out as plain text.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString(r.Headline)
	b.WriteByte('\n')
	if r.Stats != "" {
		b.WriteString(r.Stats)
		b.WriteByte('\n')
	}
	for _, s := range r.Strengths {
		b.WriteString("  + ")
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for _, w := range r.Weaknesses {
		b.WriteString("  - ")
		b.WriteString(w)
		b.WriteByte('\n')
	}
	b.WriteString(r.Insight)
	b.WriteByte('\n')
	b.WriteString(r.Nudge)
	b.WriteByte('\n')
	return b.String()
}

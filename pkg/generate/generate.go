// Package generate asks a chat model for practice sentences when the corpus
// has none for a word. It is optional: the practice engine never depends on
// it directly.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/japaniel/clozer/pkg/corpus"
	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4.1-mini"

// Config holds the chat endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string // empty means the OpenAI default
	Model   string
	Timeout time.Duration // zero means 30s
	// RequestsPerMinute caps calls to the endpoint. Zero means no cap.
	RequestsPerMinute int
}

// Generator produces blanked sentences for a word.
type Generator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter // nil when unlimited
	// Analyzer tokenizes generated sentences to find the word. nil means
	// corpus.LatinAnalyzer.
	Analyzer corpus.Analyzer
	forms    lemma.LemmaSource
	logger   *zap.Logger
}

// New creates a Generator. A nil forms source means lemma.WordForms.
func New(cfg Config, forms lemma.LemmaSource, logger *zap.Logger) *Generator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if forms == nil {
		forms = lemma.WordForms{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		forms:   forms,
		logger:  logger,
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g
}

// candidate is one item of the model's JSON answer.
type candidate struct {
	Sentence string `json:"sentence"`
	Tense    string `json:"tense,omitempty"`
}

var languageNames = map[string]string{
	"fr": "French",
	"ja": "Japanese",
	"es": "Spanish",
	"de": "German",
	"it": "Italian",
	"en": "English",
}

const promptTemplate = `You are a %[1]s language teacher.

Generate %[2]d %[1]s sentences at %[3]s level using the word "%[4]s".

Requirements:
- Natural, everyday %[1]s
- Vary sentence structure
- If verb, use different tenses
- One sentence per item
- No explanations
- Return ONLY valid JSON (no markdown)

Format:
[
  {"sentence": "...", "tense": "..."}
]`

func buildPrompt(w vocab.Word, level vocab.Level, n int) string {
	name, ok := languageNames[w.Language]
	if !ok {
		name = w.Language
	}
	if level == "" {
		level = vocab.LevelA2
	}
	target := w.Lemma
	if target == "" {
		target = w.Text
	}
	return fmt.Sprintf(promptTemplate, name, n, level, target)
}

// Candidates asks for n sentences and returns those that contain one of the
// word's forms, blanked. Sentences that miss the word are dropped.
func (g *Generator) Candidates(ctx context.Context, w vocab.Word, level vocab.Level, n int) ([]vocab.Sentence, error) {
	if n <= 0 {
		n = 5
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit for %q: %w", w.Text, err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(w, level, n)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion for %q: %w", w.Text, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response for %q", w.Text)
	}

	items, err := parseCandidates(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse response for %q: %w", w.Text, err)
	}

	var out []vocab.Sentence
	for _, item := range items {
		s, ok, err := g.blank(w, item.Sentence)
		if err != nil {
			return nil, err
		}
		if !ok {
			g.logger.Debug("generated sentence misses word", zap.String("word", w.Text), zap.String("sentence", item.Sentence))
			continue
		}
		out = append(out, s)
	}
	g.logger.Debug("generated sentences",
		zap.String("word", w.Text),
		zap.Int("asked", n),
		zap.Int("kept", len(out)),
		zap.Duration("latency", time.Since(start)),
		zap.Int("tokens", resp.Usage.TotalTokens))
	return out, nil
}

var (
	fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	arrayRe = regexp.MustCompile(`(?s)\[.*\]`)
)

// parseCandidates reads a JSON array, tolerating code fences and prose
// around it.
func parseCandidates(content string) ([]candidate, error) {
	content = strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}
	var items []candidate
	err := json.Unmarshal([]byte(content), &items)
	if err == nil {
		return items, nil
	}
	block := arrayRe.FindString(content)
	if block == "" {
		return nil, err
	}
	if err := json.Unmarshal([]byte(block), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// blank finds the word in text and replaces it with vocab.Blank. Accepted
// surface forms win over lemma matches.
func (g *Generator) blank(w vocab.Word, text string) (vocab.Sentence, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return vocab.Sentence{}, false, nil
	}
	analyzer := g.Analyzer
	if analyzer == nil {
		analyzer = corpus.LatinAnalyzer{}
	}
	tokens, err := analyzer.Analyze(text)
	if err != nil {
		return vocab.Sentence{}, false, err
	}
	sentence := corpus.Sentence{Text: text, Tokens: tokens}

	accepted := make(map[lemma.NormalForm]bool)
	for _, f := range g.forms.AcceptedForms(w) {
		accepted[lemma.Normalize(f)] = true
	}
	target := lemma.Normalize(w.Lemma)

	pick := -1
	for i, t := range tokens {
		if accepted[lemma.Normalize(t.Surface)] {
			pick = i
			break
		}
		if pick < 0 && target != "" && lemma.Normalize(t.BaseForm) == target {
			pick = i
		}
	}
	if pick < 0 {
		return vocab.Sentence{}, false, nil
	}
	return vocab.Sentence{
		WordID:  w.ID,
		Text:    text,
		Blanked: sentence.Blank(pick),
		Answer:  tokens[pick].Surface,
		Source:  db.OriginGenerated,
	}, true, nil
}

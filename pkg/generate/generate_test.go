package generate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/clozer/pkg/corpus"
	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

var faire = vocab.Word{ID: 7, Text: "fait", Lemma: "faire", Language: "fr", POS: vocab.POSVerb, Forms: []string{"fais", "faisait"}}

// chatServer answers every chat completion with content and records the
// last prompt it saw.
func chatServer(t *testing.T, content string, status int) (*httptest.Server, *string) {
	t.Helper()
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		if len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &prompt
}

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", `[{"sentence":"Il fait beau."}]`, 1, false},
		{"fenced", "```json\n[{\"sentence\":\"a\"},{\"sentence\":\"b\"}]\n```", 2, false},
		{"prose", "Voici les phrases :\n[{\"sentence\":\"a\",\"tense\":\"présent\"}]\nBonne chance !", 1, false},
		{"garbage", "no json here", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCandidates(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestCandidates(t *testing.T) {
	content := "```json\n" + `[
		{"sentence": "Il fait beau aujourd'hui.", "tense": "présent"},
		{"sentence": "Elle faisait ses devoirs.", "tense": "imparfait"},
		{"sentence": "Nous avons mangé.", "tense": "passé composé"}
	]` + "\n```"
	srv, prompt := chatServer(t, content, http.StatusOK)

	g := New(Config{APIKey: "test", BaseURL: srv.URL + "/v1"}, nil, nil)
	got, err := g.Candidates(context.Background(), faire, vocab.LevelB1, 3)
	require.NoError(t, err)

	assert.Contains(t, *prompt, `Generate 3 French sentences at B1 level using the word "faire"`)
	require.Len(t, got, 2, "the sentence without the word is dropped")
	assert.Equal(t, "Il ____ beau aujourd'hui.", got[0].Blanked)
	assert.Equal(t, "fait", got[0].Answer)
	assert.Equal(t, int64(7), got[0].WordID)
	assert.Equal(t, db.OriginGenerated, got[0].Source)
	assert.Equal(t, "Elle ____ ses devoirs.", got[1].Blanked)
	assert.Equal(t, "faisait", got[1].Answer)
}

func TestCandidatesUsesLemmatizedTokens(t *testing.T) {
	srv, _ := chatServer(t, `[{"sentence": "Ils font la fête."}]`, http.StatusOK)
	g := New(Config{BaseURL: srv.URL + "/v1"}, nil, nil)
	g.Analyzer = latinWith(lemma.NewLexicon([]lemma.Entry{{Lemma: "faire", Forms: []string{"font"}}}))

	got, err := g.Candidates(context.Background(), faire, "", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ils ____ la fête.", got[0].Blanked)
	assert.Equal(t, "font", got[0].Answer)
}

func TestCandidatesServerError(t *testing.T) {
	srv, _ := chatServer(t, "", http.StatusInternalServerError)
	g := New(Config{BaseURL: srv.URL + "/v1"}, nil, nil)
	_, err := g.Candidates(context.Background(), faire, vocab.LevelA2, 2)
	assert.Error(t, err)
}

type memSaver struct {
	saved []vocab.Sentence
}

func (m *memSaver) SaveSentence(ctx context.Context, s vocab.Sentence) (vocab.Sentence, error) {
	s.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, s)
	return s, nil
}

func TestProvider(t *testing.T) {
	srv, _ := chatServer(t, `[{"sentence":"Tu fais quoi ?"},{"sentence":"Il fait froid."}]`, http.StatusOK)
	saver := &memSaver{}
	p := &Provider{Generator: New(Config{BaseURL: srv.URL + "/v1"}, nil, nil), Store: saver}

	got, err := p.Sentence(context.Background(), faire, vocab.LevelA1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Tu ____ quoi ?", got.Blanked)
	assert.Len(t, saver.saved, 2)
}

func TestProviderFailureIsNoSentence(t *testing.T) {
	srv, _ := chatServer(t, "", http.StatusInternalServerError)
	p := &Provider{Generator: New(Config{BaseURL: srv.URL + "/v1"}, nil, nil), Store: &memSaver{}}
	_, err := p.Sentence(context.Background(), faire, vocab.LevelA1)
	assert.True(t, errors.Is(err, vocab.ErrNoSentence), "got %v", err)

	empty, _ := chatServer(t, `[{"sentence":"Rien à voir."}]`, http.StatusOK)
	p.Generator = New(Config{BaseURL: empty.URL + "/v1"}, nil, nil)
	_, err = p.Sentence(context.Background(), faire, vocab.LevelA1)
	assert.True(t, errors.Is(err, vocab.ErrNoSentence), "got %v", err)
}

// counting wraps a server's handler and counts the requests it sees.
func counting(t *testing.T, inner *httptest.Server) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCandidatesRateLimited(t *testing.T) {
	inner, _ := chatServer(t, `[{"sentence":"Il fait beau."}]`, http.StatusOK)
	srv, hits := counting(t, inner)
	g := New(Config{BaseURL: srv.URL + "/v1", RequestsPerMinute: 1}, nil, nil)

	_, err := g.Candidates(context.Background(), faire, vocab.LevelA1, 1)
	require.NoError(t, err)

	// The next token is a minute away; a short deadline gives up at once.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Candidates(ctx, faire, vocab.LevelA1, 1)
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProviderSharesInflightRequest(t *testing.T) {
	inner, _ := chatServer(t, `[{"sentence":"Tu fais quoi ?"},{"sentence":"Il fait froid."}]`, http.StatusOK)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(200 * time.Millisecond)
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	saver := &memSaver{}
	p := &Provider{Generator: New(Config{BaseURL: srv.URL + "/v1"}, nil, nil), Store: saver}

	var wg sync.WaitGroup
	results := make([]vocab.Sentence, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := p.Sentence(context.Background(), faire, vocab.LevelA1)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, saver.saved, 2)
	for _, s := range results {
		assert.Equal(t, "Tu ____ quoi ?", s.Blanked)
	}
}

func latinWith(lx *lemma.Lexicon) corpus.LatinAnalyzer {
	return corpus.LatinAnalyzer{Lemmatizers: []lemma.Lemmatizer{lx}}
}

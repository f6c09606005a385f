package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/clozer/pkg/vocab"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustWord(t *testing.T, db DBExecutor, w vocab.Word) int64 {
	t.Helper()
	id, err := CreateOrGetWord(context.Background(), db, w)
	if err != nil {
		t.Fatalf("create word %q: %v", w.Text, err)
	}
	return id
}

func TestCreateOrGetWord(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	w := vocab.Word{Text: "fait", Lemma: "faire", Language: "fr", Forms: []string{"fais", "fait"}}
	id1 := mustWord(t, db, w)
	w.POS = vocab.POSVerb
	w.Forms = []string{"faisons"}
	id2 := mustWord(t, db, w)
	if id1 != id2 {
		t.Fatalf("expected same id, got %d and %d", id1, id2)
	}

	got, err := GetWord(ctx, db, id1)
	if err != nil {
		t.Fatalf("get word: %v", err)
	}
	if got.POS != vocab.POSVerb || got.Lemma != "faire" || got.Language != "fr" {
		t.Fatalf("unexpected word %+v", got)
	}
	want := []string{"fait", "fais", "faisons"}
	if len(got.Forms) != len(want) {
		t.Fatalf("expected forms %v, got %v", want, got.Forms)
	}
	for i := range want {
		if got.Forms[i] != want[i] {
			t.Fatalf("expected forms %v, got %v", want, got.Forms)
		}
	}
}

func TestCreateOrGetWordRejectsEmpty(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	_, err := CreateOrGetWord(context.Background(), db, vocab.Word{Text: "  "})
	if !errors.Is(err, vocab.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetWordUnknown(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	_, err := GetWord(context.Background(), db, 42)
	if !errors.Is(err, vocab.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListWordsByLanguage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	mustWord(t, db, vocab.Word{Text: "chat", Lemma: "chat", Language: "fr"})
	mustWord(t, db, vocab.Word{Text: "猫", Lemma: "猫", Language: "ja"})
	mustWord(t, db, vocab.Word{Text: "chien", Lemma: "chien", Language: "fr", Forms: []string{"chiens"}})

	fr, err := ListWords(context.Background(), db, "fr")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(fr) != 2 || fr[0].Text != "chat" || fr[1].Text != "chien" {
		t.Fatalf("unexpected words %+v", fr)
	}
	if len(fr[1].Forms) != 2 {
		t.Fatalf("expected chien forms, got %v", fr[1].Forms)
	}
	all, err := ListWords(context.Background(), db, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 words, got %d", len(all))
	}
}

func TestVariantsAreNotForms(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	id := mustWord(t, db, vocab.Word{Text: "clé", Lemma: "clé", Language: "fr"})
	if err := AddVariant(ctx, db, id, "clef", "clé"); err != nil {
		t.Fatalf("add variant: %v", err)
	}
	w, err := GetWord(ctx, db, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(w.Forms) != 1 || w.Forms[0] != "clé" {
		t.Fatalf("variant leaked into forms: %v", w.Forms)
	}
	v, err := Variants(ctx, db, id)
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if v["clef"] != "clé" {
		t.Fatalf("expected clef variant, got %v", v)
	}
}

func TestCreateOrGetSource(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	id1, err := CreateOrGetSource(ctx, db, "website_article", "", "", "example.com", "https://example.com/a", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	id2, err := CreateOrGetSource(ctx, db, "website_article", "", "", "example.com", "https://example.com/a", "")
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same source id, got %d and %d", id1, id2)
	}

	if err := UpdateSourceProgress(ctx, db, id1, 7); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	idx, err := GetSourceProgress(ctx, db, id1)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if idx != 7 {
		t.Fatalf("expected progress 7, got %d", idx)
	}
	if _, err := GetSourceProgress(ctx, db, 999); !errors.Is(err, vocab.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown source, got %v", err)
	}
}

func TestClozeSentences(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	wID := mustWord(t, db, vocab.Word{Text: "猫", Lemma: "猫", Language: "ja"})
	sID, err := CreateOrGetSource(ctx, db, "website_article", "", "", "example.com", "https://example.com/b", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	first := vocab.Sentence{WordID: wID, Text: "この猫は可愛い。", Blanked: "この____は可愛い。", Answer: "猫"}
	c1, err := AddClozeSentence(ctx, db, first, sID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Adding the same sentence again returns the same row.
	c2, err := AddClozeSentence(ctx, db, first, sID)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected dedupe, got %d and %d", c1, c2)
	}
	second := vocab.Sentence{WordID: wID, Text: "猫が好き。", Blanked: "____が好き。", Answer: "猫", Source: OriginManual}
	if _, err := AddClozeSentence(ctx, db, second, 0); err != nil {
		t.Fatalf("add second: %v", err)
	}
	n, err := CountClozeSentences(ctx, db, wID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sentences, got %d", n)
	}

	// Least shown first, so the two sentences alternate.
	var seen []string
	for i := 0; i < 3; i++ {
		s, ok, err := NextClozeSentence(ctx, db, wID)
		if err != nil || !ok {
			t.Fatalf("next: ok=%v err=%v", ok, err)
		}
		seen = append(seen, s.Text)
	}
	if seen[0] != first.Text || seen[1] != second.Text || seen[2] != first.Text {
		t.Fatalf("unexpected rotation %v", seen)
	}

	if _, ok, err := NextClozeSentence(ctx, db, wID+1); err != nil || ok {
		t.Fatalf("expected no sentence, got ok=%v err=%v", ok, err)
	}
	if _, err := AddClozeSentence(ctx, db, vocab.Sentence{WordID: wID, Text: "no blank", Answer: "x"}, 0); !errors.Is(err, vocab.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing blank, got %v", err)
	}
}

func TestCreateOrGetWordConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	const n = 8
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := CreateOrGetWord(context.Background(), db, vocab.Word{Text: "犬", Lemma: "犬", Language: "ja"})
			if err != nil {
				t.Errorf("create or get word: %v", err)
				ids <- 0
				return
			}
			ids <- id
		}()
	}
	var first int64
	for i := 0; i < n; i++ {
		id := <-ids
		if id == 0 {
			t.Fatalf("error in goroutine")
		}
		if i == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected same id, got %d and %d", first, id)
		}
	}
	// ensure only one row exists
	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM words WHERE word = ? AND lemma = ?`, "犬", "犬").Scan(&cnt)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 word row, got %d", cnt)
	}
}

func TestCreateOrGetSourceConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	const n = 8
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := CreateOrGetSource(context.Background(), db, "website_article", "Title", "Author", "example.com", "https://example.com/c", "")
			if err != nil {
				t.Errorf("create or get source: %v", err)
				ids <- 0
				return
			}
			ids <- id
		}()
	}
	var first int64
	for i := 0; i < n; i++ {
		id := <-ids
		if id == 0 {
			t.Fatalf("error in goroutine")
		}
		if i == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected same id, got %d and %d", first, id)
		}
	}
	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM sources WHERE url = ?`, "https://example.com/c").Scan(&cnt)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 source row, got %d", cnt)
	}
}

package dictionary

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/vocab"
)

const frenchLexicon = `
{
  "entries": [
    {
      "lemma": "faire", "language": "fr", "pos": "verb", "level": "A1",
      "forms": ["fais", "fait", "faisons", "faites", "font", "faisait"]
    },
    {
      "lemma": "clé", "language": "fr", "pos": "noun", "level": "A2",
      "forms": ["clé", "clés"],
      "variants": {"clef": "clé"}
    },
    {
      "lemma": "maison", "language": "fr", "pos": "noun", "level": "A1",
      "forms": ["maison", "maisons"]
    }
  ]
}
`

func loadTestLexicon(t *testing.T) *lemma.Lexicon {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fr.json")
	if err := os.WriteFile(path, []byte(frenchLexicon), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := lemma.LoadLexicon(path)
	if err != nil {
		t.Fatalf("load lexicon: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	return lemma.NewLexicon(entries)
}

func TestImporter(t *testing.T) {
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	// A word that arrived from an article, without metadata.
	articleWord, err := db.CreateOrGetWord(ctx, conn, vocab.Word{Text: "maisons", Lemma: "maison", Language: "fr"})
	if err != nil {
		t.Fatalf("create word: %v", err)
	}
	unknown, err := db.CreateOrGetWord(ctx, conn, vocab.Word{Text: "ordinateur", Language: "fr"})
	if err != nil {
		t.Fatalf("create word: %v", err)
	}

	importer := NewImporter(conn, loadTestLexicon(t), nil)
	n, err := importer.Import(ctx)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 imported entries, got %d", n)
	}
	// Importing twice is idempotent.
	if _, err := importer.Import(ctx); err != nil {
		t.Fatalf("reimport: %v", err)
	}
	words, err := db.ListWords(ctx, conn, "fr")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}

	count, err := importer.ProcessUpdates(ctx)
	if err != nil {
		t.Fatalf("process updates: %v", err)
	}
	// Only maisons has a lexicon entry; ordinateur stays bare.
	if count != 1 {
		t.Errorf("expected 1 update, got %d", count)
	}
	w, err := db.GetWord(ctx, conn, articleWord)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.POS != vocab.POSNoun || w.Level != vocab.LevelA1 {
		t.Errorf("expected noun/A1, got %q/%q", w.POS, w.Level)
	}
	if len(w.Forms) != 2 {
		t.Errorf("expected maisons + maison forms, got %v", w.Forms)
	}
	bare, err := db.GetWord(ctx, conn, unknown)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bare.POS != "" {
		t.Errorf("expected no POS for unknown word, got %q", bare.POS)
	}
}

func TestFromStore(t *testing.T) {
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	if _, err := NewImporter(conn, loadTestLexicon(t), nil).Import(ctx); err != nil {
		t.Fatalf("import: %v", err)
	}
	lx, err := FromStore(ctx, conn, "fr")
	if err != nil {
		t.Fatalf("from store: %v", err)
	}
	if lx.Len() != 3 {
		t.Fatalf("expected 3 lemmas, got %d", lx.Len())
	}
	if l, ok := lx.Lemma("faisait"); !ok || l != "faire" {
		t.Errorf("expected faisait -> faire, got %q %v", l, ok)
	}
	if c := lx.Canonical(lemma.Normalize("clef")); c != lemma.Normalize("clé") {
		t.Errorf("expected clef variant to survive the round trip, got %q", c)
	}
	e, ok := lx.Entry("faire")
	if !ok || e.POS != vocab.POSVerb {
		t.Errorf("expected verb entry for faire, got %+v", e)
	}
}

package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema verifies a fresh database gets every table the
// review engine reads and writes.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	if err := InitDB(dbConn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	want := map[string][]string{
		"words":             {"word", "lemma", "language", "pos", "level"},
		"word_forms":        {"word_id", "form", "canonical"},
		"sources":           {"url", "last_processed_sentence"},
		"sentences":         {"text"},
		"cloze_sentences":   {"word_id", "sentence_id", "blanked", "answer", "origin", "shown_count"},
		"memory_states":     {"learner_id", "word_id", "strength", "last_reviewed_at", "next_review_at", "consecutive_correct", "consecutive_errors"},
		"attempts":          {"session_id", "outcome", "error_kind", "latency_ms", "strength_after"},
		"session_summaries": {"session_id", "summary"},
	}
	for table, cols := range want {
		got := tableColumns(t, dbConn, table)
		for _, c := range cols {
			if !got[c] {
				t.Fatalf("expected column %s.%s, got %v", table, c, got)
			}
		}
	}
}

func TestInitDBIsIdempotent(t *testing.T) {
	dbConn := setupTestDB(t)
	defer dbConn.Close()
	if err := InitDB(dbConn); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}
}

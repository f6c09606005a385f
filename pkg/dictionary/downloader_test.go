package dictionary

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const lexiconJSON = `{"entries": [{"lemma": "faire", "language": "fr", "pos": "verb", "level": "A1", "forms": ["fais", "fait"]}]}`

func TestEnsureLexicon_LocalCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.json")
	if err := os.WriteFile(path, []byte(lexiconJSON), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// An existing file must short-circuit before any request is made.
	if err := EnsureLexicon(context.Background(), nil, nil, path, "http://127.0.0.1:0/unreachable"); err != nil {
		t.Fatalf("EnsureLexicon failed with local file: %v", err)
	}
}

func TestEnsureLexicon_MissingWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.json")
	if err := EnsureLexicon(context.Background(), nil, nil, path, ""); err == nil {
		t.Fatalf("expected error for missing lexicon without url")
	}
}

func TestEnsureLexicon_Download(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(lexiconJSON))
	zw.Close()

	var tgz bytes.Buffer
	tzw := gzip.NewWriter(&tgz)
	tw := tar.NewWriter(tzw)
	tw.WriteHeader(&tar.Header{Name: "README", Mode: 0o644, Size: 2, Typeflag: tar.TypeReg})
	tw.Write([]byte("hi"))
	tw.WriteHeader(&tar.Header{Name: "fr/lexicon.json", Mode: 0o644, Size: int64(len(lexiconJSON)), Typeflag: tar.TypeReg})
	tw.Write([]byte(lexiconJSON))
	tw.Close()
	tzw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lexicon.json":
			w.Write([]byte(lexiconJSON))
		case "/lexicon.json.gz":
			w.Write(gz.Bytes())
		case "/lexicon.tgz":
			w.Write(tgz.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, name := range []string{"/lexicon.json", "/lexicon.json.gz", "/lexicon.tgz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lexicon.json")
			if err := EnsureLexicon(context.Background(), srv.Client(), nil, path, srv.URL+name); err != nil {
				t.Fatalf("download: %v", err)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != lexiconJSON {
				t.Fatalf("unexpected content %q", got)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "lexicon.json")
	if err := EnsureLexicon(context.Background(), srv.Client(), nil, path, srv.URL+"/missing.json"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("failed download left a file behind")
	}
}

package dictionary

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// maxLexiconSize caps a downloaded lexicon.
const maxLexiconSize = 200 << 20

// EnsureLexicon checks if the lexicon exists at path. If not, it downloads
// it from url. Plain JSON, gzipped JSON (.gz) and tarballs holding a JSON
// file (.tgz, .tar.gz) are accepted.
func EnsureLexicon(ctx context.Context, client *http.Client, logger *zap.Logger, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return fmt.Errorf("lexicon not found at %s and no download url given", path)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("lexicon not found, downloading", zap.String("path", path), zap.String("url", url))
	return download(ctx, client, url, path)
}

func download(ctx context.Context, client *http.Client, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "clozer-cli")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	body := io.Reader(io.LimitReader(resp.Body, maxLexiconSize))
	name := strings.ToLower(url)
	switch {
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".tar.gz"):
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		return extractJSON(tar.NewReader(gz), destPath)
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		return writeFile(destPath, gz)
	default:
		return writeFile(destPath, body)
	}
}

func extractJSON(tr *tar.Reader, destPath string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("no json file found in downloaded archive")
		}
		if err != nil {
			return fmt.Errorf("error reading tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".json") {
			return writeFile(destPath, tr)
		}
	}
}

// writeFile writes through a temp file so a failed download leaves no
// partial lexicon behind.
func writeFile(destPath string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".lexicon-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

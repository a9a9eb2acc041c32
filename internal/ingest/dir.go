package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DirSource reads guideline documents from a local directory. Plain-text
// formats are read as-is; PDFs go through text extraction. Unsupported
// extensions are ignored.
type DirSource struct {
	dir string
}

// NewDirSource creates a source for the given directory.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingest: %s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// Documents reads every supported file in the directory, sorted by name for
// deterministic builds. A file whose text cannot be extracted is returned
// with empty text so the build can record it as invalid and continue.
func (s *DirSource) Documents(ctx context.Context) ([]Document, error) {
	names, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, name)
		text, err := extractText(path)
		if err != nil {
			log.Printf("ingest: failed to extract %s: %v", name, err)
			text = ""
		}
		docs = append(docs, Document{ID: name, Text: text})
	}
	return docs, nil
}

// Fingerprint hashes file names, sizes, and modification times.
func (s *DirSource) Fingerprint(ctx context.Context) (string, error) {
	names, err := s.listFiles()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			return "", fmt.Errorf("ingest: stat %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s|%d|%d\n", name, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *DirSource) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read document directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if supportedExtension(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func supportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return documentText(filepath.Base(path), data)
}

// documentText converts raw document bytes to plain text based on the file
// extension. Both the directory and S3 sources feed through here so PDFs
// get the same extraction regardless of where they live.
func documentText(name string, data []byte) (string, error) {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return pdfText(data)
	}
	return string(data), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

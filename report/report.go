// Package report writes the per-run ActionReport artifacts: a key/value
// header followed by freeform sections, rendered as plain text to a
// timestamped path. Reports are immutable once written; a run never
// overwrites another run's report.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Field is one header key/value pair. Order is preserved.
type Field struct {
	Key   string
	Value string
}

// Section is one titled freeform block.
type Section struct {
	Title string
	Body  string
}

// Report is a renderable action report.
type Report struct {
	Title    string
	Fields   []Field
	Sections []Section
}

// AddField appends a header field.
func (r *Report) AddField(key, value string) {
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
}

// AddSection appends a titled section.
func (r *Report) AddSection(title, body string) {
	r.Sections = append(r.Sections, Section{Title: title, Body: body})
}

// Render produces the plain-text form.
func (r *Report) Render() string {
	var b strings.Builder
	bar := strings.Repeat("=", 60)

	b.WriteString(bar + "\n")
	b.WriteString(r.Title + "\n")
	b.WriteString(bar + "\n")
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
	}
	for _, s := range r.Sections {
		b.WriteString("\n=== " + s.Title + " ===\n")
		body := strings.TrimRight(s.Body, "\n")
		if body == "" {
			body = "(empty)"
		}
		b.WriteString(body + "\n")
	}
	return b.String()
}

// Writer persists reports under a base directory.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write renders the report to a fresh timestamped file and returns its
// path. O_EXCL enforces immutability: an existing file at the same path is
// an error, never overwritten.
func (w *Writer) Write(prefix string, r *Report) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.txt", prefix, time.Now().Format("20060102-150405.000000000")))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640) // #nosec G304 -- path built from config
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(r.Render()); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync report: %w", err)
	}
	return path, nil
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MarkdownArchiver exports a session as one markdown file per artifact
// under <root>/<instrument>/<session>/.
type MarkdownArchiver struct {
	root string
}

func NewMarkdownArchiver(root string) *MarkdownArchiver {
	return &MarkdownArchiver{root: root}
}

// Dir is where the session is exported.
func (m *MarkdownArchiver) Dir(instrument, session string) string {
	return filepath.Join(m.root, safeName(instrument, "unknown"), safeName(session, "session"))
}

// Archive writes into a temporary directory and renames it into place, so
// a reader never sees a partial export.
func (m *MarkdownArchiver) Archive(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final := m.Dir(rec.Summary.Instrument, rec.Summary.Session)
	parent := filepath.Dir(final)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	for key, body := range rec.Artifacts {
		name := safeName(key, "artifact") + ".md"
		if err := os.WriteFile(filepath.Join(tmp, name), []byte(body), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	summary, err := json.MarshalIndent(rec.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "summary.json"), summary, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish export: %w", err)
	}
	return nil
}

func safeName(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/pomo/internal/logging"
	"github.com/fakeyudi/pomo/internal/session"
)

// Parser reads an export document back.
type Parser interface {
	Parse(data []byte) (*Export, error)
}

// ParserFor picks a parser from the file extension, falling back to the
// content for unknown extensions.
func ParserFor(path string, data []byte) (Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return &JSONParser{}, nil
	case ".yaml", ".yml":
		return &YAMLParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte(markdownSentinel)):
		return &MarkdownParser{}, nil
	case bytes.HasPrefix(trimmed, []byte("{")):
		return &JSONParser{}, nil
	case bytes.HasPrefix(trimmed, []byte("version:")), bytes.HasPrefix(trimmed, []byte("---")):
		return &YAMLParser{}, nil
	}
	return nil, fmt.Errorf("cannot tell the format of %s; use a .json, .yaml or .md export", path)
}

// JSONParser parses a JSON export.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Export, error) {
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse JSON export: %w", err)
	}
	return checkVersion(&e)
}

// YAMLParser parses a YAML export.
type YAMLParser struct{}

func (p *YAMLParser) Parse(data []byte) (*Export, error) {
	var e Export
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse YAML export: %w", err)
	}
	return checkVersion(&e)
}

// MarkdownParser extracts the embedded payload of a Markdown export.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*Export, error) {
	content := string(data)
	if !strings.Contains(content, markdownSentinel) {
		return nil, fmt.Errorf("not a valid pomo export: missing version sentinel")
	}

	start := strings.Index(content, markdownDataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid pomo export: missing data payload")
	}
	start += len(markdownDataPrefix)
	end := strings.Index(content[start:], markdownDataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid pomo export: malformed data payload")
	}

	jsonBytes, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a valid pomo export: corrupted base64 payload: %w", err)
	}
	var e Export
	if err := json.Unmarshal(jsonBytes, &e); err != nil {
		return nil, fmt.Errorf("not a valid pomo export: failed to parse embedded JSON: %w", err)
	}
	return checkVersion(&e)
}

func checkVersion(e *Export) (*Export, error) {
	if e.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version %d", e.Version)
	}
	return e, nil
}

// Merge returns the sessions of incoming that are valid and not yet in
// existing, in incoming order. Sessions match by ID or by start time; no two
// sessions can share a start time.
func Merge(existing, incoming []session.Session) []session.Session {
	ids := make(map[string]bool, len(existing))
	starts := make(map[int64]bool, len(existing))
	seen := func(s session.Session) bool {
		return (s.ID != "" && ids[s.ID]) || starts[s.StartTime.UnixNano()]
	}
	mark := func(s session.Session) {
		if s.ID != "" {
			ids[s.ID] = true
		}
		starts[s.StartTime.UnixNano()] = true
	}
	for _, s := range existing {
		mark(s)
	}

	out := []session.Session{}
	for _, s := range incoming {
		if err := s.Validate(); err != nil {
			logging.Warn("skipping invalid imported session", "err", err)
			continue
		}
		if seen(s) {
			continue
		}
		mark(s)
		out = append(out, s)
	}
	return out
}

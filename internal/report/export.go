package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/pomo/internal/session"
)

// ExportVersion is written into every export document.
const ExportVersion = 1

// Export formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Formats lists the accepted export formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatMarkdown}

// Export is the portable form of a session log.
type Export struct {
	Version    int               `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Sessions   []session.Session `json:"sessions" yaml:"sessions"`
}

// NewExport wraps log for export.
func NewExport(log []session.Session, now time.Time) *Export {
	if log == nil {
		log = []session.Session{}
	}
	return &Export{Version: ExportVersion, ExportedAt: now, Sessions: log}
}

// Renderer serializes an Export.
type Renderer interface {
	Render(e *Export) ([]byte, error)
}

// RendererFor returns the renderer for format.
func RendererFor(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return &TextRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatYAML, "yml":
		return &YAMLRenderer{}, nil
	case FormatMarkdown, "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// JSONRenderer renders an Export as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(e *Export) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// YAMLRenderer renders an Export as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(e *Export) ([]byte, error) {
	return yaml.Marshal(e)
}

// TextRenderer renders a plain listing for reading. It cannot be imported.
type TextRenderer struct{}

func (r *TextRenderer) Render(e *Export) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%d sessions", len(e.Sessions))) + "\n")
	var total int64
	for i, s := range e.Sessions {
		total += s.ElapsedSeconds
		fmt.Fprintf(&sb, "%4d. %s %s %s %s\n",
			i+1,
			timeStyle.Render(s.StartTime.Local().Format("2006-01-02 15:04")),
			minuteStyle.Render(fmt.Sprintf("%.1f min", Minutes(s.ElapsedSeconds))),
			labelStyle.Render(s.Label),
			dimStyle.Render(string(s.Reason())),
		)
	}
	fmt.Fprintf(&sb, "Total: %.1f min\n", Minutes(total))
	return []byte(sb.String()), nil
}

const (
	markdownSentinel   = "<!-- pomo-export-version: 1 -->"
	markdownDataPrefix = "<!-- pomo-data: "
	markdownDataSuffix = " -->"
)

// MarkdownRenderer renders a readable Markdown table with the JSON document
// embedded as base64 so the file can be imported again without loss.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(e *Export) ([]byte, error) {
	jsonBytes, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder
	sb.WriteString(markdownSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", markdownDataPrefix, encoded, markdownDataSuffix)
	fmt.Fprintf(&sb, "# Focus sessions — exported %s\n\n", e.ExportedAt.Format("2006-01-02 15:04 MST"))

	if len(e.Sessions) == 0 {
		sb.WriteString("_No sessions recorded._\n")
		return []byte(sb.String()), nil
	}

	sb.WriteString("| # | Date | Start | End | Minutes | Label | Reason |\n")
	sb.WriteString("|---|------|-------|-----|---------|-------|--------|\n")
	var total int64
	for i, s := range e.Sessions {
		total += s.ElapsedSeconds
		start := s.StartTime.Local()
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %.1f | %s | %s |\n",
			i+1,
			start.Format("2006-01-02"),
			start.Format("15:04"),
			s.EndTime.Local().Format("15:04"),
			Minutes(s.ElapsedSeconds),
			strings.ReplaceAll(s.Label, "|", `\|`),
			s.Reason(),
		)
	}
	fmt.Fprintf(&sb, "\n**Total:** %.1f min\n", Minutes(total))
	return []byte(sb.String()), nil
}

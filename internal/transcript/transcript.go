// Package transcript formats session transcripts for people: speaker display
// names and Markdown report export.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"agentdesk/internal/types"
)

var botPattern = regexp.MustCompile(`(?i)bot`)

// DisplayName turns a role such as "product_bot" into "Product Agent".
// The user's own messages are shown as "You". Every letter that starts a
// word is upper-cased; inner spacing and punctuation are kept.
func DisplayName(role string) string {
	if role == "user" {
		return "You"
	}
	name := strings.ReplaceAll(role, "_", " ")
	if loc := botPattern.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + "Agent" + name[loc[1]:]
	}
	name = strings.TrimSpace(name)

	var sb strings.Builder
	sb.Grow(len(name))
	prevWord := false
	for _, r := range name {
		if !prevWord {
			r = unicode.ToUpper(r)
		}
		prevWord = isWordRune(r)
		sb.WriteRune(r)
	}
	return sb.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Report is the content of an exported transcript.
type Report struct {
	Title       string
	GeneratedAt time.Time
	SubjectA    string
	SubjectB    string
	Messages    []types.Message
}

// Markdown renders r as a Markdown document with one section per message.
func (r Report) Markdown() string {
	title := r.Title
	if title == "" {
		title = "Pipeline Report"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated At:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	if r.SubjectA != "" || r.SubjectB != "" {
		fmt.Fprintf(&sb, "**Companies:** %s, %s\n\n", orDash(r.SubjectA), orDash(r.SubjectB))
	}
	for _, m := range r.Messages {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n---\n\n", DisplayName(m.Role), strings.TrimSpace(m.Content))
	}
	return sb.String()
}

// FileName returns the report file name for r.
func (r Report) FileName() string {
	return "pipeline_report_" + r.GeneratedAt.Format("20060102_150405") + ".md"
}

// Save writes r into dir and returns the file path.
func Save(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, r.FileName())
	if err := os.WriteFile(path, []byte(r.Markdown()), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"agentdesk/internal/transcript"
	"agentdesk/internal/types"
)

// rawOutput disables glamour rendering for piping into other tools.
var rawOutput bool

// printTranscript writes msgs to w, one section per speaker.
func printTranscript(w io.Writer, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", transcript.DisplayName(m.Role), strings.TrimSpace(m.Content))
	}
	md := sb.String()

	if rawOutput {
		_, err := io.WriteString(w, md)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	out, err := renderer.Render(md)
	if err != nil {
		out = md
	}
	_, err = io.WriteString(w, out)
	return err
}

package ui

import (
	"context"
	"errors"
	"os"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"agentdesk/internal/agentapi"
	"agentdesk/internal/agentapi/agenttest"
	"agentdesk/internal/session"
	"agentdesk/internal/types"
)

type harness struct {
	srv  *agenttest.Server
	orch *session.Orchestrator
	m    Model
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	srv := agenttest.New(t)
	client, err := agentapi.NewClient(srv.URL, agentapi.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	orch := session.New(client, session.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(orch.Close)

	opts.Plain = true
	if opts.Styles == nil {
		s := NewStyles(LightTheme())
		opts.Styles = &s
	}
	m := New(context.Background(), orch, opts)
	t.Cleanup(m.Close)
	return &harness{srv: srv, orch: orch, m: m}
}

func (h *harness) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.m.Update(msg)
	m, ok := next.(Model)
	require.True(t, ok)
	h.m = m
	return cmd
}

func (h *harness) typeText(t *testing.T, s string) {
	t.Helper()
	h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// runUntilOutcome executes cmd, descending into batches, and returns the
// dispatch outcome it produced.
func runUntilOutcome(t *testing.T, cmd tea.Cmd) (outcomeMsg, bool) {
	t.Helper()
	if cmd == nil {
		return outcomeMsg{}, false
	}
	switch msg := cmd().(type) {
	case outcomeMsg:
		return msg, true
	case tea.BatchMsg:
		for _, c := range msg {
			if out, ok := runUntilOutcome(t, c); ok {
				return out, true
			}
		}
	}
	return outcomeMsg{}, false
}

func TestTypingSyncsSession(t *testing.T) {
	h := newHarness(t, Options{})

	h.typeText(t, "Microsoft")
	h.send(t, tea.KeyMsg{Type: tea.KeyTab})
	h.typeText(t, "Samsung")
	h.send(t, tea.KeyMsg{Type: tea.KeyTab})
	h.typeText(t, "Compare pricing")

	snap := h.orch.Snapshot()
	assert.Equal(t, "Microsoft", snap.SubjectA)
	assert.Equal(t, "Samsung", snap.SubjectB)
	assert.Equal(t, "Compare pricing", snap.PendingInput)
}

func TestFocusCycles(t *testing.T) {
	h := newHarness(t, Options{})
	assert.Equal(t, fieldSubjectA, h.m.focus)

	h.send(t, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, fieldInstruction, h.m.focus)

	h.send(t, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, fieldSubjectA, h.m.focus)

	// Enter on a company field advances instead of sending.
	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, fieldSubjectB, h.m.focus)
	_, dispatched := runUntilOutcome(t, cmd)
	assert.False(t, dispatched)
}

func TestEnterIgnoresEmptyInstruction(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(t, tea.KeyMsg{Type: tea.KeyShiftTab})
	h.typeText(t, "   ")

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, h.srv.Calls())
}

func TestEnterSendsToPipeline(t *testing.T) {
	h := newHarness(t, Options{})
	h.srv.Respond(agentapi.TargetRunPipeline, agenttest.Reply{
		Body: agenttest.Messages(agentapi.WireMessage{Source: "product_bot", Content: "Idea A"}),
	})

	h.typeText(t, "Microsoft")
	h.send(t, tea.KeyMsg{Type: tea.KeyShiftTab})
	h.typeText(t, "Compare")

	out, ok := runUntilOutcome(t, h.send(t, tea.KeyMsg{Type: tea.KeyEnter}))
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Equal(t, agentapi.TargetRunPipeline, out.Target)

	h.send(t, out)
	assert.Empty(t, h.m.inputs[fieldInstruction].Value(), "instruction cleared after success")

	calls := h.srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/run-pipeline", calls[0].Path)
	assert.Equal(t, "Microsoft", calls[0].Request.CompanyName1)
	assert.Equal(t, "Compare", calls[0].Request.TextInstruction)

	h.send(t, snapshotMsg(h.orch.Snapshot()))
	assert.Contains(t, h.m.View(), "Product Agent")
	assert.Contains(t, h.m.View(), "Idea A")
}

func TestAgentKeysDispatch(t *testing.T) {
	tests := []struct {
		key  tea.KeyType
		path string
	}{
		{tea.KeyCtrlR, "/research-agent"},
		{tea.KeyCtrlP, "/product-agent"},
		{tea.KeyCtrlK, "/marketing-agent"},
		{tea.KeyCtrlG, "/run-pipeline"},
		{tea.KeyF2, "/product-agent"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h := newHarness(t, Options{})
			_, ok := runUntilOutcome(t, h.send(t, tea.KeyMsg{Type: tt.key}))
			require.True(t, ok)

			calls := h.srv.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.path, calls[0].Path)
		})
	}
}

func TestStatusLine(t *testing.T) {
	h := newHarness(t, Options{})

	h.send(t, snapshotMsg(session.Snapshot{Busy: true, InFlight: 2}))
	assert.Contains(t, h.m.View(), "Running... (2 agents)")

	h.send(t, snapshotMsg(session.Snapshot{LastError: session.ErrDispatchFailed}))
	assert.Contains(t, h.m.View(), "Error: failed to run agent")
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(t, tea.KeyMsg{Type: tea.KeyShiftTab})
	h.typeText(t, "Compare")
	h.send(t, snapshotMsg(session.Snapshot{Busy: true, PendingInput: "Compare"}))

	assert.Nil(t, h.send(t, tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Empty(t, h.srv.Calls())
}

func TestAgentKeyIgnoredWhileBusy(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(t, snapshotMsg(session.Snapshot{Busy: true}))

	for _, key := range []tea.KeyType{tea.KeyCtrlP, tea.KeyCtrlR, tea.KeyF4} {
		assert.Nil(t, h.send(t, tea.KeyMsg{Type: key}))
	}
	assert.Empty(t, h.srv.Calls())

	h.send(t, snapshotMsg(session.Snapshot{}))
	_, ok := runUntilOutcome(t, h.send(t, tea.KeyMsg{Type: tea.KeyCtrlP}))
	require.True(t, ok)
	assert.Len(t, h.srv.Calls(), 1)
}

func TestClearTranscript(t *testing.T) {
	h := newHarness(t, Options{})
	h.srv.Respond(agentapi.TargetProduct, agenttest.Reply{
		Body: agenttest.Messages(agentapi.WireMessage{Source: "product_bot", Content: "Idea A"}),
	})
	_, ok := runUntilOutcome(t, h.send(t, tea.KeyMsg{Type: tea.KeyCtrlP}))
	require.True(t, ok)
	require.Len(t, h.orch.Snapshot().Transcript, 1)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, h.orch.Snapshot().Transcript)
}

func TestExportTranscript(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, Options{ExportDir: dir})
	h.send(t, snapshotMsg(session.Snapshot{Transcript: []types.Message{{Role: "user", Content: "hi"}}}))

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	msg, ok := cmd().(exportedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)

	_, err := os.Stat(msg.path)
	require.NoError(t, err)

	h.send(t, msg)
	assert.Contains(t, h.m.View(), "Saved ")

	h.send(t, exportedMsg{err: errors.New("disk full")})
	assert.Contains(t, h.m.View(), "Export failed: disk full")
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		h := newHarness(t, Options{})
		cmd := h.send(t, tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, h.m.View())
	}
}

func TestSubscriptionFeedsUpdates(t *testing.T) {
	h := newHarness(t, Options{})
	h.orch.SetSubjectA("Microsoft")

	msg := waitForSnapshot(h.m.updates)()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, "Microsoft", snap.SubjectA)

	h.m.Close()
	_, closed := waitForSnapshot(h.m.updates)().(subscriptionClosedMsg)
	assert.True(t, closed)
}

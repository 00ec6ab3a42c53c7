package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"agentdesk/internal/agentapi"
	"agentdesk/internal/session"
	"agentdesk/internal/transcript"
	"agentdesk/internal/types"
)

// Session is the part of the orchestrator the view drives.
// *session.Orchestrator satisfies it.
type Session interface {
	SetSubjectA(v string)
	SetSubjectB(v string)
	SetPendingInput(v string)
	ClearTranscript()
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	SendMessage(ctx context.Context) session.Outcome
	RunAgent(ctx context.Context, target agentapi.Target) session.Outcome
}

// Options configures the view.
type Options struct {
	// ExportDir receives transcripts saved with ctrl+s.
	ExportDir string
	// Plain skips glamour rendering of the transcript.
	Plain  bool
	Styles *Styles
	Logger *zap.Logger
}

// Input fields, in focus order.
const (
	fieldSubjectA = iota
	fieldSubjectB
	fieldInstruction
	fieldCount
)

// agentKeys binds shortcut keys to dispatch targets.
var agentKeys = map[string]agentapi.Target{
	"ctrl+r": agentapi.TargetResearch,
	"f1":     agentapi.TargetResearch,
	"ctrl+p": agentapi.TargetProduct,
	"f2":     agentapi.TargetProduct,
	"ctrl+k": agentapi.TargetMarketing,
	"f3":     agentapi.TargetMarketing,
	"ctrl+g": agentapi.TargetRunPipeline,
	"f4":     agentapi.TargetRunPipeline,
}

type snapshotMsg session.Snapshot

type subscriptionClosedMsg struct{}

type outcomeMsg session.Outcome

type exportedMsg struct {
	path string
	err  error
}

// Model is the bubbletea model for the interactive session.
type Model struct {
	sess        Session
	ctx         context.Context
	updates     <-chan session.Snapshot
	unsubscribe func()

	inputs   [fieldCount]textinput.Model
	focus    int
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles
	logger   *zap.Logger

	exportDir string

	snap     session.Snapshot
	notice   string
	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates the view over sess and subscribes to its state.
func New(ctx context.Context, sess Session, opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	placeholders := [fieldCount]string{
		fieldSubjectA:    "First company",
		fieldSubjectB:    "Second company",
		fieldInstruction: "Instruction (Enter to send)",
	}
	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.Prompt = "│ "
		ti.CharLimit = 4096
		ti.Width = 40
		ti.PromptStyle = styles.Prompt
		ti.TextStyle = styles.UserInput
		inputs[i] = ti
	}
	inputs[fieldInstruction].Width = 76
	inputs[fieldSubjectA].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	var renderer *glamour.TermRenderer
	if !opts.Plain {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(76),
		)
	}

	updates, unsubscribe := sess.Subscribe()
	m := Model{
		sess:        sess,
		ctx:         ctx,
		updates:     updates,
		unsubscribe: unsubscribe,
		inputs:      inputs,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		renderer:    renderer,
		styles:      styles,
		logger:      logger,
		exportDir:   opts.ExportDir,
		snap:        sess.Snapshot(),
	}
	for i, v := range []string{m.snap.SubjectA, m.snap.SubjectB, m.snap.PendingInput} {
		m.inputs[i].SetValue(v)
	}
	m.refreshTranscript()
	return m
}

// Close releases the state subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForSnapshot(m.updates),
	)
}

// waitForSnapshot delivers the next published state.
func waitForSnapshot(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		inputHeight := 5
		footerHeight := 3
		vpHeight := msg.Height - headerHeight - inputHeight - footerHeight
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.inputs[fieldInstruction].Width = msg.Width - 6
		if m.renderer != nil && msg.Width > 10 {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-6),
			)
		}
		m.refreshTranscript()
		return m, nil

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		m.refreshTranscript()
		return m, waitForSnapshot(m.updates)

	case subscriptionClosedMsg:
		return m, nil

	case outcomeMsg:
		out := session.Outcome(msg)
		// A successful dispatch may have cleared the instruction.
		pending := m.sess.Snapshot().PendingInput
		if m.inputs[fieldInstruction].Value() != pending {
			m.inputs[fieldInstruction].SetValue(pending)
		}
		if out.Err == nil && out.Report != "" {
			m.notice = "Report ready: " + out.Report
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.notice = "Export failed: " + msg.err.Error()
		} else {
			m.notice = "Saved " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		step := 1
		if key == "shift+tab" {
			step = fieldCount - 1
		}
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + step) % fieldCount
		return m, m.inputs[m.focus].Focus()

	case "enter":
		if m.focus != fieldInstruction {
			m.inputs[m.focus].Blur()
			m.focus++
			return m, m.inputs[m.focus].Focus()
		}
		// Empty instructions are never sent.
		if strings.TrimSpace(m.inputs[fieldInstruction].Value()) == "" || m.snap.Busy {
			return m, nil
		}
		m.notice = ""
		return m, m.dispatch(agentapi.TargetRunPipeline)

	case "ctrl+l":
		m.sess.ClearTranscript()
		m.notice = ""
		return m, nil

	case "ctrl+s":
		return m, m.export()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if target, ok := agentKeys[key]; ok {
		if m.snap.Busy {
			return m, nil
		}
		m.notice = ""
		return m, m.dispatch(target)
	}

	var cmd tea.Cmd
	before := m.inputs[m.focus].Value()
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if after := m.inputs[m.focus].Value(); after != before {
		m.syncField(m.focus, after)
	}
	return m, cmd
}

func (m Model) syncField(field int, v string) {
	switch field {
	case fieldSubjectA:
		m.sess.SetSubjectA(v)
	case fieldSubjectB:
		m.sess.SetSubjectB(v)
	case fieldInstruction:
		m.sess.SetPendingInput(v)
	}
}

// dispatch runs target off the update loop; the busy state arrives through
// the subscription.
func (m Model) dispatch(target agentapi.Target) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	m.logger.Debug("Dispatch requested", zap.String("target", string(target)))
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		if target == agentapi.TargetRunPipeline {
			return outcomeMsg(sess.SendMessage(ctx))
		}
		return outcomeMsg(sess.RunAgent(ctx, target))
	})
}

func (m Model) export() tea.Cmd {
	snap := m.sess.Snapshot()
	dir := m.exportDir
	return func() tea.Msg {
		path, err := transcript.Save(dir, transcript.Report{
			GeneratedAt: time.Now(),
			SubjectA:    snap.SubjectA,
			SubjectB:    snap.SubjectB,
			Messages:    snap.Transcript,
		})
		return exportedMsg{path: path, err: err}
	}
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript(m.snap.Transcript))
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript(msgs []types.Message) string {
	if len(msgs) == 0 {
		return m.styles.Muted.Render("No messages yet. Enter companies and an instruction, then press Enter.")
	}
	var sb strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", transcript.DisplayName(msg.Role), strings.TrimSpace(msg.Content))
	}
	md := sb.String()
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render("agentdesk"))
	sb.WriteString("\n\n")

	subjects := lipgloss.JoinHorizontal(lipgloss.Top,
		m.fieldView(fieldSubjectA, "Company 1"),
		"  ",
		m.fieldView(fieldSubjectB, "Company 2"),
	)
	sb.WriteString(subjects)
	sb.WriteString("\n")
	sb.WriteString(m.styles.RenderDivider(m.viewport.Width))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	sb.WriteString(m.fieldView(fieldInstruction, "Instruction"))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Footer.Render(
		"enter send • ctrl+r research • ctrl+p product • ctrl+k marketing • ctrl+g pipeline • ctrl+l clear • ctrl+s save • esc quit"))
	return sb.String()
}

func (m Model) fieldView(field int, label string) string {
	style := m.styles.Label
	if m.focus == field {
		style = m.styles.Focused
	}
	return lipgloss.JoinVertical(lipgloss.Left, style.Render(label), m.inputs[field].View())
}

func (m Model) statusLine() string {
	switch {
	case m.snap.Busy:
		s := m.spinner.View() + " Running..."
		if m.snap.InFlight > 1 {
			s += fmt.Sprintf(" (%d agents)", m.snap.InFlight)
		}
		return s
	case m.snap.LastError != nil:
		return m.styles.Error.Render("Error: " + m.snap.LastError.Error())
	case m.notice != "":
		return m.styles.Success.Render(m.notice)
	}
	return ""
}

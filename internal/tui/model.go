// Package tui is the terminal chat interface over a session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
)

const toolPreviewWidth = 120

type kind int

const (
	kindUser kind = iota
	kindAssistant
	kindTool
	kindFailure
)

type entry struct {
	kind kind
	text string
}

type updateMsg session.Update

type feedClosedMsg struct{}

// Model is the bubbletea model of the chat screen
type Model struct {
	ctx     context.Context
	ctrl    *session.Controller
	updates <-chan session.Update
	stop    func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   styles

	entries []entry
	partial string
	running bool
	status  string
	width   int
	ready   bool
}

// New creates the chat model for ctrl, rendering its committed history
func New(ctx context.Context, ctrl *session.Controller, model string) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "Ask the agent. Esc cancels a run, Ctrl+C quits."
	input.CharLimit = 8000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accent)

	updates, stop := ctrl.Subscribe()
	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		updates:  updates,
		stop:     stop,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		styles:   newStyles(),
		status:   model,
		width:    80,
	}
	for _, turn := range ctrl.Snapshot().All() {
		m.entries = append(m.entries, entriesFor(turn)...)
	}
	if run := ctrl.Active(); run != nil {
		m.running = true
	}
	m.refresh()
	return m
}

func entriesFor(turn conversation.Turn) []entry {
	switch turn.Role {
	case conversation.RoleUser:
		return []entry{{kindUser, turn.Text}}
	case conversation.RoleAssistant:
		var out []entry
		if turn.Text != "" {
			out = append(out, entry{kindAssistant, turn.Text})
		}
		for _, call := range turn.ToolCalls {
			out = append(out, entry{kindTool, fmt.Sprintf("→ %s %s", call.Name, call.ArgumentsJSON())})
		}
		return out
	case conversation.RoleTool:
		return []entry{toolResultEntry(*turn.Result)}
	}
	return nil
}

func toolResultEntry(res conversation.ToolCallResult) entry {
	if res.IsError() {
		return entry{kindFailure, fmt.Sprintf("← %s failed: %s %s", res.Name, res.Error.Code, res.Error.Message)}
	}
	return entry{kindTool, "← " + res.Name + ": " + truncate.StringWithTail(strings.ReplaceAll(res.Output, "\n", " "), toolPreviewWidth, "…")}
}

func waitForUpdate(ch <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return updateMsg(u)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForUpdate(m.updates))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.stop()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.ctrl.CancelActive() {
				m.status = "cancelling…"
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case updateMsg:
		m.apply(session.Update(msg))
		m.refresh()
		cmds = append(cmds, waitForUpdate(m.updates))

	case feedClosedMsg:
		m.running = false
		m.status = "session closed"
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if _, err := m.ctrl.Submit(m.ctx, text); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.input.Reset()
	m.entries = append(m.entries, entry{kindUser, text})
	m.partial = ""
	m.running = true
	m.status = "requesting"
	m.refresh()
	return m, nil
}

// apply folds one run event into the transcript
func (m *Model) apply(u session.Update) {
	switch ev := u.Event.(type) {
	case orchestrator.StateChanged:
		m.status = string(ev.To)
		if !ev.To.Terminal() {
			m.running = true
		}
	case orchestrator.TextDelta:
		m.partial += ev.Text
	case orchestrator.Retrying:
		m.partial = ""
		m.status = fmt.Sprintf("retrying after %s (attempt %d, waiting %s)", ev.Reason, ev.Attempt, ev.Delay)
	case orchestrator.ToolCallStarted:
		m.flushPartial()
		m.entries = append(m.entries, entry{kindTool, fmt.Sprintf("→ %s %s", ev.Call.Name, ev.Call.ArgumentsJSON())})
	case orchestrator.ToolCallFinished:
		m.entries = append(m.entries, toolResultEntry(ev.Result))
	case orchestrator.Finished:
		out := ev.Outcome
		switch out.State {
		case orchestrator.StateCompleted:
			m.flushPartial()
		case orchestrator.StateCancelled:
			m.partial = ""
			m.entries = append(m.entries, entry{kindFailure, "run cancelled"})
		default:
			m.partial = ""
			m.entries = append(m.entries, entry{kindFailure, fmt.Sprintf("run failed: %s %s", out.Code, out.Message())})
		}
		m.running = false
		m.status = fmt.Sprintf("%s · %d tokens", out.State, out.Usage.Total())
	}
}

func (m *Model) flushPartial() {
	if m.partial != "" {
		m.entries = append(m.entries, entry{kindAssistant, m.partial})
		m.partial = ""
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	width := max(m.width-2, 20)
	var sb strings.Builder
	render := func(e entry) {
		switch e.kind {
		case kindUser:
			sb.WriteString(m.styles.user.Render("you"))
		case kindAssistant:
			sb.WriteString(m.styles.assistant.Render("agent"))
		case kindTool:
			sb.WriteString(m.styles.tool.Render(wordwrap.String(e.text, width)))
			sb.WriteString("\n")
			return
		case kindFailure:
			sb.WriteString(m.styles.failure.Render(wordwrap.String(e.text, width)))
			sb.WriteString("\n")
			return
		}
		sb.WriteString("\n")
		sb.WriteString(wordwrap.String(e.text, width))
		sb.WriteString("\n\n")
	}
	for _, e := range m.entries {
		render(e)
	}
	if m.partial != "" {
		render(entry{kindAssistant, m.partial})
	}
	return sb.String()
}

func (m Model) View() string {
	header := m.styles.header.Render("agentdesk · " + m.ctrl.ID())
	status := m.styles.status.Render(m.status)
	if m.running {
		status = m.spinner.View() + " " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), status, m.input.View())
}

// Run opens the chat screen and blocks until the user quits
func Run(ctx context.Context, ctrl *session.Controller, model string) error {
	m := New(ctx, ctrl, model)
	defer m.stop()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

package agent

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
	"github.com/kagent-dev/agentdesk/pkg/adk/snippets"
)

var (
	failureColor = color.New(color.FgRed, color.Bold)
	retryColor   = color.New(color.FgYellow)
	toolColor    = color.New(color.Faint)
	roleColor    = map[string]*color.Color{
		"user":      color.New(color.FgGreen, color.Bold),
		"assistant": color.New(color.FgCyan, color.Bold),
		"tool":      color.New(color.Faint),
	}
)

// RunFailedError reports a run that did not complete. Its outcome has
// already been printed.
type RunFailedError struct {
	Outcome orchestrator.Outcome
}

func (e *RunFailedError) Error() string {
	if e.Outcome.Code == "" {
		return fmt.Sprintf("run %s", e.Outcome.State)
	}
	return fmt.Sprintf("run %s: %s", e.Outcome.State, e.Outcome.Code)
}

// printer renders run events as plain streamed text
type printer struct {
	out     io.Writer
	spinner *spinner.Spinner
	started bool
}

func newPrinter(out, status io.Writer) *printer {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(status))
	s.Suffix = " thinking"
	return &printer{out: out, spinner: s}
}

func (p *printer) start() {
	p.spinner.Start()
}

func (p *printer) stopSpinner() {
	if !p.started {
		p.started = true
		p.spinner.Stop()
	}
}

// handle prints one event and reports whether it was the last of the run
func (p *printer) handle(ev orchestrator.Event) bool {
	switch ev := ev.(type) {
	case orchestrator.TextDelta:
		p.stopSpinner()
		fmt.Fprint(p.out, ev.Text)
	case orchestrator.Retrying:
		p.stopSpinner()
		retryColor.Fprintf(p.out, "\n[%s, retrying in %s (attempt %d); discard the text above]\n", ev.Reason, ev.Delay.Round(time.Millisecond), ev.Attempt)
	case orchestrator.ToolCallStarted:
		p.stopSpinner()
		toolColor.Fprintf(p.out, "\n→ %s %s\n", ev.Call.Name, ev.Call.ArgumentsJSON())
	case orchestrator.ToolCallFinished:
		if ev.Result.IsError() {
			failureColor.Fprintf(p.out, "← %s failed: %s\n", ev.Result.Name, ev.Result.Error.Code)
		}
	case orchestrator.Finished:
		p.stopSpinner()
		fmt.Fprintln(p.out)
		out := ev.Outcome
		switch out.State {
		case orchestrator.StateCompleted:
		case orchestrator.StateCancelled:
			failureColor.Fprintln(p.out, "cancelled")
		default:
			failureColor.Fprintf(p.out, "%s: %s\n", out.Code, out.Message())
		}
		return true
	}
	return false
}

// renderSnippets prints parsed edit blocks as a table
func renderSnippets(out io.Writer, blocks []snippets.Block) {
	if len(blocks) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "File", "Action", "Anchor", "Lines"})
	for i, b := range blocks {
		tw.AppendRow(table.Row{i + 1, b.File, b.Action, truncate(b.Anchor, 40), strings.Count(b.Code, "\n") + 1})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 5, Align: text.AlignRight}})
	tw.Render()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

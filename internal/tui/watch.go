// Package tui provides the live terminal view of a claiming run.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/models"
)

// maxRows is the number of recent iterations the view keeps.
const maxRows = 8

// WatchModel renders a run's progress as events arrive.
type WatchModel struct {
	spinner  spinner.Model
	progress progress.Model
	cancel   context.CancelFunc

	info      claimer.RunInfo
	started   bool
	user      string
	claimed   int
	limit     int
	rows      []claimer.IterationEvent
	result    *claimer.RunResult
	canceling bool
	width     int
}

// NewWatchModel creates the view. cancel is called when the user asks to
// stop the run.
func NewWatchModel(cancel context.CancelFunc) *WatchModel {
	return &WatchModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(infoStyle),
		),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel:   cancel,
		width:    80,
	}
}

// Result returns the finished run, or nil while it is still going.
func (m *WatchModel) Result() *claimer.RunResult {
	return m.result
}

// Init implements tea.Model
func (m *WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.result != nil {
				return m, tea.Quit
			}
			// The run reports back through RunFinished, which quits.
			if !m.canceling {
				m.canceling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case spinner.TickMsg:
		if m.result != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runStartedMsg:
		m.info = claimer.RunInfo(msg)
		m.started = true
		m.limit = msg.Limit

	case userValidatedMsg:
		m.user = msg.Username

	case iterationMsg:
		ev := claimer.IterationEvent(msg)
		m.claimed = ev.Cumulative
		m.rows = append(m.rows, ev)
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}

	case runFinishedMsg:
		res := claimer.RunResult(msg)
		m.result = &res
		m.claimed = res.Claimed
		return m, tea.Quit
	}
	return m, nil
}

func (m *WatchModel) percent() float64 {
	if m.limit <= 0 {
		if m.result != nil {
			return 1
		}
		return 0
	}
	return float64(m.claimed) / float64(m.limit)
}

// View implements tea.Model
func (m *WatchModel) View() string {
	var b strings.Builder

	header := titleStyle.Render("easyclaim")
	if m.started {
		header += "  " + infoStyle.Render(string(m.info.TaskType))
		header += "  " + mutedStyle.Render("every "+m.info.Interval.String())
	}
	if m.user != "" {
		header += "  " + userStyle.Render("● "+m.user)
	} else {
		header += "  " + mutedStyle.Render("○ validating")
	}
	b.WriteString(header + "\n\n")

	b.WriteString(fmt.Sprintf(" %s  %d/%d claimed\n\n", m.progress.ViewAs(m.percent()), m.claimed, m.limit))

	var rows strings.Builder
	if len(m.rows) == 0 {
		rows.WriteString(mutedStyle.Render("waiting for the first poll"))
	}
	for i, ev := range m.rows {
		if i > 0 {
			rows.WriteString("\n")
		}
		rows.WriteString(renderIteration(ev))
	}
	b.WriteString(panelStyle.Width(max(m.width-4, 20)).Render(rows.String()) + "\n")

	b.WriteString(m.statusLine() + "\n")
	b.WriteString(statusBarStyle.Width(max(m.width, 20)).Render(helpStyle.Render(m.help())))
	return b.String()
}

func (m *WatchModel) statusLine() string {
	switch {
	case m.result != nil && m.result.Err != nil:
		return errorStyle.Render("✗ aborted: " + m.result.Err.Error())
	case m.result != nil:
		return claimedStyle.Render(fmt.Sprintf("✓ completed: %d claimed in %s",
			m.result.Claimed, m.result.Duration().Round(time.Millisecond)))
	case m.canceling:
		return warnStyle.Render(m.spinner.View() + " stopping")
	default:
		return m.spinner.View() + " polling"
	}
}

func (m *WatchModel) help() string {
	if m.result != nil {
		return "q: quit"
	}
	return "ctrl+c: stop"
}

func renderIteration(ev claimer.IterationEvent) string {
	prefix := mutedStyle.Render(fmt.Sprintf("#%-3d %s", ev.Iteration, ev.At.Format("15:04:05")))
	switch {
	case ev.Err != nil:
		return prefix + "  " + errorStyle.Render(ev.Err.Error())
	case ev.Rejection != nil:
		return prefix + "  " + warnStyle.Render("rejected: "+ev.Rejection.Error())
	case ev.BudgetReached:
		return prefix + "  " + mutedStyle.Render("limit reached")
	case ev.Requested == 0:
		return prefix + "  " + mutedStyle.Render(fmt.Sprintf("no tasks (listed %d)", ev.Listed))
	default:
		line := fmt.Sprintf("listed %d  claimed %s  total %d/%d",
			ev.Listed, claimedStyle.Render(fmt.Sprintf("%d/%d", ev.Claimed, ev.Requested)), ev.Cumulative, ev.Limit)
		return prefix + "  " + line + "  " + mutedStyle.Render(truncate(strings.Join(models.FormatIDs(ev.TaskIDs), ","), 40))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// RunFunc starts a run that reports to obs and stops when ctx is canceled.
type RunFunc func(ctx context.Context, obs claimer.Observer) (*claimer.RunResult, error)

// Watch runs fn under the live view and returns its result once both the
// run and the view have finished.
func Watch(ctx context.Context, fn RunFunc, opts ...tea.ProgramOption) (*claimer.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewWatchModel(cancel)
	p := tea.NewProgram(model, opts...)

	type outcome struct {
		res *claimer.RunResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fn(ctx, NewProgramObserver(p))
		done <- outcome{res, err}
	}()

	_, viewErr := p.Run()
	// The view normally exits after RunFinished; otherwise stop the run.
	cancel()
	out := <-done
	if viewErr != nil && out.err == nil {
		return out.res, errors.Wrap(viewErr, "run terminal view")
	}
	return out.res, out.err
}

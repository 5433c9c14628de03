package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"affinity-warden/internal/monitor"
)

// ReportMsg carries one loop report into the dashboard.
type ReportMsg monitor.Report

type loopDoneMsg struct {
	err error
}

type Model struct {
	summary Summary
	spinner spinner.Model

	last     monitor.Report
	seen     bool
	cycles   int
	changed  int
	failed   int
	cycleErr int
	lastErr  error
	done     bool
	doneErr  error
	quitting bool
	width    int
}

func NewModel(summary Summary) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		summary: summary,
		spinner: s,
		width:   80,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case ReportMsg:
		report := monitor.Report(msg)
		m.last = report
		m.seen = true
		if report.Cycle > 0 {
			m.cycles = report.Cycle
			m.changed += report.Result.Changed
			m.failed += report.Result.Failed
		}
		if report.Err != nil {
			m.cycleErr++
			m.lastErr = report.Err
		}
		return m, nil

	case loopDoneMsg:
		m.done = true
		m.doneErr = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(RenderSummary(m.summary))
	b.WriteString("\n")
	for _, w := range m.summary.Warnings {
		b.WriteString(highlightStyle.Render("  ! " + w))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderStatus() string {
	var b strings.Builder

	switch {
	case m.done && m.doneErr != nil:
		b.WriteString(failStyle.Render(fmt.Sprintf("  ✗ stopped: %v", m.doneErr)))
		return b.String()
	case m.done:
		b.WriteString(dimStyle.Render("  stopped"))
		return b.String()
	case !m.seen:
		b.WriteString(fmt.Sprintf("  %s %s", m.spinner.View(), dimStyle.Render("starting...")))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %s %s  %s %d  %s %d\n",
		m.spinner.View(), subtitleStyle.Render("monitoring"),
		dimStyle.Render("cycle"), m.cycles,
		dimStyle.Render("swept at startup"), m.last.Swept))

	if m.last.Cycle > 0 {
		r := m.last.Result
		b.WriteString(fmt.Sprintf("  %s %s   %s %s\n",
			dimStyle.Render("main found:"), formatBoolDisplay(r.MainFound),
			dimStyle.Render("worker found:"), formatBoolDisplay(r.WorkerFound)))
		b.WriteString(fmt.Sprintf("  %s %d changed, %d unchanged, %d skipped, %d failed  %s\n",
			dimStyle.Render("last cycle:"), r.Changed, r.Unchanged, r.Skipped, r.Failed,
			dimStyle.Render(m.last.Took.String())))
	}

	b.WriteString(fmt.Sprintf("  %s %d changed, %d failed, %d cycle errors\n",
		dimStyle.Render("total:"), m.changed, m.failed, m.cycleErr))

	streak := fmt.Sprintf("%d", m.last.Streak)
	if m.last.Streak > 0 {
		streak = highlightStyle.Render(streak)
	}
	b.WriteString(fmt.Sprintf("  %s %s", dimStyle.Render("checks without target processes:"), streak))

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(failStyle.Render(fmt.Sprintf("  last error: %v", m.lastErr)))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(secondaryColor)
	return keyStyle.Render("q") + dimStyle.Render(" quit")
}

// Dashboard runs the live view and feeds it loop reports.
type Dashboard struct {
	program *tea.Program
}

func NewDashboard(summary Summary, opts ...tea.ProgramOption) *Dashboard {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Dashboard{program: tea.NewProgram(NewModel(summary), opts...)}
}

// Observe forwards a report to the dashboard. It is meant to be used as
// the loop's observer.
func (d *Dashboard) Observe(report monitor.Report) {
	d.program.Send(ReportMsg(report))
}

// Run starts run in the background and shows the dashboard until either
// the user quits or run returns. Quitting the dashboard cancels run.
func (d *Dashboard) Run(ctx context.Context, run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		err := run(ctx)
		errCh <- err
		d.program.Send(loopDoneMsg{err: err})
	}()

	_, uiErr := d.program.Run()
	cancel()
	runErr := <-errCh

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return errors.Join(runErr, fmt.Errorf("dashboard: %w", uiErr))
	}
	return runErr
}

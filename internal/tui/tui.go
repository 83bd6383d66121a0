// Package tui provides a Bubble Tea front end that submits one download and
// renders the runner's notifications until the job ends.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"media-downloader/internal/domain"
	"media-downloader/internal/jobs"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))
)

// Runner is the part of jobs.Runner the terminal front end drives.
type Runner interface {
	Submit(domain.JobDescriptor) (domain.Job, error)
	CancelCurrent() bool
	Ready() <-chan struct{}
	Drain() []jobs.Notification
}

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateDownloading
	StateDone
)

type (
	// notificationsMsg carries a drained batch of runner notifications.
	notificationsMsg []jobs.Notification

	// submitMsg asks the model to submit the current URL.
	submitMsg struct{}
)

// Model is the Bubble Tea model for a single download.
type Model struct {
	runner Runner
	desc   domain.JobDescriptor

	// done is closed when the program exits; a nil channel never fires.
	done <-chan struct{}

	state      State
	textInput  textinput.Model
	spinner    spinner.Model
	progress   progress.Model
	latest     domain.ProgressRecord
	hasLatest  bool
	cancelling bool
	job        domain.Job
	errText    string
	submitErr  error
}

// NewModel builds the model. When desc.URL is set the download starts immediately.
func NewModel(runner Runner, desc domain.JobDescriptor) Model {
	ti := textinput.New()
	ti.Placeholder = "https://www.youtube.com/watch?v=..."
	ti.CharLimit = 2048
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	return Model{
		runner:    runner,
		desc:      desc,
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		job:       domain.Job{State: domain.JobStateIdle},
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	if m.desc.URL != "" {
		return tea.Batch(func() tea.Msg { return submitMsg{} }, m.spinner.Tick)
	}
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Job returns the last known job snapshot.
func (m Model) Job() domain.Job {
	return m.job
}

// Latest returns the most recent progress record, if any arrived.
func (m Model) Latest() domain.ProgressRecord {
	return m.latest
}

// SubmitErr returns the rejection from Submit, if the job never started.
func (m Model) SubmitErr() error {
	return m.submitErr
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			switch m.state {
			case StateInput, StateDone:
				return m, tea.Quit
			case StateDownloading:
				if m.cancelling && msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				if m.runner.CancelCurrent() {
					m.cancelling = true
				}
				return m, nil
			}
		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.desc.URL = strings.TrimSpace(m.textInput.Value())
				return m.submit()
			}
		case "q":
			if m.state == StateDone {
				return m, tea.Quit
			}
		}

	case submitMsg:
		return m.submit()

	case notificationsMsg:
		for _, n := range msg {
			switch n.Kind {
			case jobs.NotificationProgress:
				m.latest = n.Progress
				m.hasLatest = true
			case jobs.NotificationTerminal:
				if n.Job.ID != m.job.ID {
					continue
				}
				m.job = n.Job
				m.errText = n.Error
				m.state = StateDone
			}
		}
		if m.state == StateDone {
			return m, tea.Quit
		}
		cmds = append(cmds, waitForNotifications(m.runner, m.done))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	job, err := m.runner.Submit(m.desc)
	if err != nil {
		m.submitErr = err
		m.errText = err.Error()
		m.state = StateDone
		return m, tea.Quit
	}
	m.job = job
	m.state = StateDownloading
	return m, waitForNotifications(m.runner, m.done)
}

// waitForNotifications blocks on the runner's ready signal off the UI loop
// and hands the drained batch back to Update. It gives up without draining
// once done is closed.
func waitForNotifications(r Runner, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-done:
			return nil
		case <-r.Ready():
		}
		select {
		case <-done:
			return nil
		default:
			return notificationsMsg(r.Drain())
		}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Media Downloader"))
	b.WriteString("\n")

	switch m.state {
	case StateInput:
		b.WriteString(subtitleStyle.Render("Enter media URL:"))
		b.WriteString("\n\n")
		b.WriteString(m.textInput.View())
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.desc.Directory)))
		b.WriteString("\n")
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateDone:
		b.WriteString(m.viewDone())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(dimStyle.Render(m.desc.URL))
	b.WriteString("\n\n")

	if m.hasLatest && m.latest.Title != "" {
		b.WriteString(subtitleStyle.Render(m.latest.Title))
		b.WriteString("\n")
	}

	if m.hasLatest && m.latest.Percentage != nil {
		b.WriteString(m.progress.ViewAs(*m.latest.Percentage / 100))
		b.WriteString("\n")
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}

	phrase := "Starting download"
	if m.hasLatest {
		phrase = m.latest.Phrase
	}
	if m.cancelling {
		b.WriteString(warningStyle.Render("Cancelling... " + phrase))
	} else {
		b.WriteString(subtitleStyle.Render(phrase))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewDone() string {
	switch {
	case m.submitErr != nil:
		return errorStyle.Render("Not started: "+m.errText) + "\n"
	case m.job.State == domain.JobStateCompleted:
		return successStyle.Render("Download completed: "+m.desc.Directory) + "\n"
	case m.job.State == domain.JobStateCancelled:
		return warningStyle.Render("Download cancelled") + "\n"
	default:
		return errorStyle.Render("Download failed: "+m.errText) + "\n"
	}
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: download • esc: quit"
	case StateDownloading:
		if m.cancelling {
			return "ctrl+c: quit without waiting"
		}
		return "esc/ctrl+c: cancel download"
	default:
		return "q: quit"
	}
}

// Run drives the model until the job ends and returns the final model.
func Run(ctx context.Context, runner Runner, desc domain.JobDescriptor) (Model, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	model := NewModel(runner, desc)
	model.done = runCtx.Done()
	p := tea.NewProgram(model, tea.WithContext(runCtx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		return m, err
	}
	return Model{}, err
}

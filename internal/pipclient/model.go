package pipclient

import (
	"time"

	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/auditsuite/tasktimer/internal/core/session"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/pkg/utils/duration"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Surface is the host side of the connection as the model sees it.
type Surface interface {
	Frames() <-chan notify.Frame
	SendLoading(loading bool) error
	SendClosed() error
}

// tickMsg drives the once-per-second elapsed refresh.
type tickMsg time.Time

// frameMsg carries one frame from the host.
type frameMsg notify.Frame

// disconnectedMsg is sent when the host closes the connection.
type disconnectedMsg struct{}

// errMsg wraps a failed send.
type errMsg struct {
	err error
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	elapsedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

type Model struct {
	surface Surface
	now     func() time.Time

	session *domain.ActiveSession
	current time.Time
	closed  bool
	reason  string
	err     error
}

func NewModel(surface Surface, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	return Model{surface: surface, now: now, current: now()}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.send(func() error { return m.surface.SendLoading(true) }), waitForFrame(m.surface), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForFrame(s Surface) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-s.Frames()
		if !ok {
			return disconnectedMsg{}
		}
		return frameMsg(f)
	}
}

func (m Model) send(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.closed {
			return m, nil
		}
		m.current = m.now()
		return m, tick()

	case frameMsg:
		return m.handleFrame(notify.Frame(msg))

	case disconnectedMsg:
		m.closed = true
		m.reason = "host disconnected"
		return m, tea.Quit

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.closed = true
			m.reason = "closed"
			return m, tea.Sequence(m.send(m.surface.SendClosed), tea.Quit)
		}
	}
	return m, nil
}

func (m Model) handleFrame(f notify.Frame) (tea.Model, tea.Cmd) {
	next := waitForFrame(m.surface)
	switch f.Type {
	case notify.EventOpenPiP:
		fetched := m.now()
		if f.LastFetchedAt != nil {
			fetched = *f.LastFetchedAt
		}
		m.session = &domain.ActiveSession{
			TaskID:        f.TaskID,
			Accumulated:   time.Duration(f.AccumulatedSeconds) * time.Second,
			LastFetchedAt: fetched,
			RunStatus:     domain.StatusStarted,
			Task:          f.Task,
		}
		m.current = m.now()
		return m, tea.Batch(next, m.send(func() error { return m.surface.SendLoading(false) }))

	case notify.EventClosePiP:
		// Close only when showing the task the host is closing.
		if m.session == nil || m.session.TaskID != f.TaskID {
			return m, next
		}
		m.closed = true
		m.reason = "task " + f.TaskID + " stopped"
		return m, tea.Sequence(m.send(m.surface.SendClosed), tea.Quit)
	}
	return m, next
}

// Elapsed is the live projection of the displayed session.
func (m Model) Elapsed() time.Duration {
	if m.session == nil {
		return 0
	}
	return session.Project(m.session, m.session.RunStatus, m.current)
}

func (m Model) Closed() bool { return m.closed }

func (m Model) TaskID() string {
	if m.session == nil {
		return ""
	}
	return m.session.TaskID
}

func (m Model) View() string {
	if m.closed {
		return mutedStyle.Render(m.reason) + "\n"
	}
	if m.session == nil {
		return boxStyle.Render(mutedStyle.Render("No task is currently running.")) + "\n"
	}

	title := m.session.TaskID
	if m.session.Task != nil && m.session.Task.Title != "" {
		title = m.session.Task.Title
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		elapsedStyle.Render(duration.FormatElapsed(m.Elapsed())),
		mutedStyle.Render("q to close"),
	)
	if m.err != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, errorStyle.Render(m.err.Error()))
	}
	return boxStyle.Render(body) + "\n"
}

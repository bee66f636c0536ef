package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	codeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg time.Time

type statusMsg string

type codeMsg struct {
	userCode        string
	verificationURI string
}

type doneMsg struct{ err error }

type model struct {
	title           string
	frame           int
	status          string
	userCode        string
	verificationURI string
	err             error
	cancelled       bool
	done            bool
	cancel          context.CancelFunc
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case codeMsg:
		m.userCode = msg.userCode
		m.verificationURI = msg.verificationURI
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			m.cancel()
			return m, nil
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}
	view := titleStyle.Render(m.title) + "\n\n"
	if m.userCode != "" {
		view += "  Enter this code at " + m.verificationURI + "\n\n"
		view += "  " + codeStyle.Render(m.userCode) + "\n\n"
	}
	view += fmt.Sprintf("  %s %s\n", spinnerFrames[m.frame], statusStyle.Render(m.status))
	if m.cancelled {
		view += "\n" + faintStyle.Render("  cancelling...") + "\n"
	} else {
		view += "\n" + faintStyle.Render("  esc or ctrl+c to cancel") + "\n"
	}
	return view
}

// Session is the UI handle the login flow pushes updates through.
type Session struct {
	program *tea.Program
}

func (s *Session) Status(text string) { s.program.Send(statusMsg(text)) }

func (s *Session) ShowCode(userCode, verificationURI string) {
	s.program.Send(codeMsg{userCode: userCode, verificationURI: verificationURI})
}

// Run displays the spinner UI while fn runs. Esc or ctrl+c cancels fn's
// context; fn's error is returned unchanged.
func Run(ctx context.Context, title string, fn func(ctx context.Context, session *Session) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := model{title: title, status: "working...", cancel: cancel}
	program := tea.NewProgram(m)
	session := &Session{program: program}

	go func() {
		program.Send(doneMsg{err: fn(ctx, session)})
	}()

	final, err := program.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok {
		return fm.err
	}
	return nil
}

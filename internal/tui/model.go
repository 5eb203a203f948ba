// Package tui is the terminal front end: a single form that uploads a file
// and shows the backend's answer to a question about it.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Title is shown at the top of the form.
const Title = "InsurePal Document Query System"

// Asker runs the upload-then-query flow and returns a displayable result.
type Asker interface {
	UploadAndQuery(ctx context.Context, filePath, question string) string
}

type focus int

const (
	focusFile focus = iota
	focusQuestion
	focusSubmit
	focusCount
)

type answerMsg struct{ text string }

// Model is the Bubble Tea model for the query form.
type Model struct {
	asker    Asker
	file     textinput.Model
	question textinput.Model
	answer   viewport.Model
	spinner  spinner.Model
	focus    focus
	busy     bool
	ready    bool
	result   string
}

// New returns a form wired to asker with the file input focused.
func New(asker Asker) Model {
	file := textinput.New()
	file.Prompt = "File: "
	file.Placeholder = "path to .pdf, .docx, .eml or .mbox"
	file.CharLimit = 0
	file.Focus()

	question := textinput.New()
	question.Prompt = "Question: "
	question.Placeholder = "What is the deductible?"
	question.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(60, 8)
	vp.SetContent(placeholderStyle.Render("The answer will appear here."))
	return Model{asker: asker, file: file, question: question, answer: vp, spinner: sp}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window resizes and finished queries.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		w := msg.Width - answerBoxStyle.GetHorizontalFrameSize()
		if w < 20 {
			w = 20
		}
		h := msg.Height - 10
		if h < 3 {
			h = 3
		}
		m.answer.Width, m.answer.Height = w, h
		m.file.Width = w - len(m.file.Prompt)
		m.question.Width = w - len(m.question.Prompt)
		return m, nil
	case answerMsg:
		m.busy = false
		m.result = msg.text
		m.answer.SetContent(msg.text)
		m.answer.GotoTop()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab:
			return m, m.setFocus((m.focus + 1) % focusCount)
		case tea.KeyShiftTab:
			return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.answer.SetContent("")
			return m, tea.Batch(m.spinner.Tick, m.ask(strings.TrimSpace(m.file.Value()), m.question.Value()))
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.answer, cmd = m.answer.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusFile:
		m.file, cmd = m.file.Update(msg)
	case focusQuestion:
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.file.Blur()
	m.question.Blur()
	switch f {
	case focusFile:
		return m.file.Focus()
	case focusQuestion:
		return m.question.Focus()
	}
	return nil
}

func (m Model) ask(filePath, question string) tea.Cmd {
	asker := m.asker
	return func() tea.Msg {
		return answerMsg{text: asker.UploadAndQuery(context.Background(), filePath, question)}
	}
}

// View renders the form.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(Title))
	b.WriteString("\n\n")
	b.WriteString(m.file.View())
	b.WriteString("\n")
	b.WriteString(m.question.View())
	b.WriteString("\n\n")
	if m.focus == focusSubmit {
		b.WriteString(activeButtonStyle.Render("Submit"))
	} else {
		b.WriteString(buttonStyle.Render("Submit"))
	}
	if m.busy {
		b.WriteString("  " + m.spinner.View() + " asking...")
	}
	b.WriteString("\n")
	b.WriteString(answerBoxStyle.Render(m.answer.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/shift+tab: move  enter: submit  pgup/pgdn: scroll  ctrl+c: quit"))
	return b.String()
}

// Result returns the last string shown in the answer pane.
func (m Model) Result() string { return m.result }

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	buttonStyle       = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.NormalBorder())
	activeButtonStyle = buttonStyle.BorderForeground(lipgloss.Color("10")).Bold(true)
	answerBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Run starts the program on the terminal and blocks until the user quits.
func Run(asker Asker) error {
	_, err := tea.NewProgram(New(asker), tea.WithAltScreen()).Run()
	return err
}

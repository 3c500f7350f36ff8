package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"learnly/internal/service"
)

// AssistantPort is the TUI-facing subset of the assistant service.
type AssistantPort interface {
	Ask(ctx context.Context, query string) (*service.Answer, error)
	SessionID() string
}

type answerMsg struct {
	answer *service.Answer
	err    error
}

// Model is the Bubble Tea model for the interactive assistant.
type Model struct {
	assistant AssistantPort
	input     textinput.Model
	viewport  viewport.Model
	answer    *service.Answer
	status    string
	cursor    int // -1 shows the answer, >= 0 browses sources
	waiting   bool
	ready     bool
}

// New creates a new TUI model instance.
func New(assistant AssistantPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		assistant: assistant,
		input:     ti,
		viewport:  vp,
		cursor:    -1,
		status:    fmt.Sprintf("Session %s. Type to ask.", assistant.SessionID()),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + query box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderBody())
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.answer = msg.answer
			m.cursor = -1
			m.status = statusLine(msg.answer)
		}
		m.viewport.SetContent(m.renderBody())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Thinking..."
				m.input.SetValue("")
				return m, ask(m.assistant, q)
			}
		case "down":
			if m.answer != nil && len(m.answer.Context.Chunks) > 0 {
				m.cursor++
				if m.cursor >= len(m.answer.Context.Chunks) {
					m.cursor = -1
				}
				m.viewport.SetContent(m.renderBody())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Context.Chunks) > 0 {
				m.cursor--
				if m.cursor < -1 {
					m.cursor = len(m.answer.Context.Chunks) - 1
				}
				m.viewport.SetContent(m.renderBody())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Learnly")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderBody() string {
	if m.answer == nil {
		return "No answer yet."
	}
	if m.cursor < 0 {
		return m.answer.Text
	}
	c := m.answer.Context.Chunks[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s chunk %d  similarity=%.3f",
		m.cursor+1, len(m.answer.Context.Chunks), c.File, c.ChunkID, c.Similarity)
	return sourceTitleStyle.Render(title) + "\n\n" + c.Text
}

func statusLine(a *service.Answer) string {
	fc := a.Context
	sources := 0
	if fc.Web != nil {
		sources++
	}
	if fc.Wiki != nil {
		sources++
	}
	if fc.RAGUsed {
		return fmt.Sprintf("%d live sources, %d course chunks (best %.2f). Up/Down browses sources.",
			sources, len(fc.Chunks), fc.BestSimilarity)
	}
	return fmt.Sprintf("%d live sources, course material below confidence (best %.2f).", sources, fc.BestSimilarity)
}

func ask(assistant AssistantPort, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		answer, err := assistant.Ask(ctx, query)
		return answerMsg{answer: answer, err: err}
	}
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package prompt is an interactive single-line editor for filter queries. It shows the
// live parse error and completions, and refuses to submit an invalid query.
package prompt

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"north/internal/filter"
)

var ErrCanceled = errors.New("filter prompt canceled")

const maxSuggestions = 6

type Model struct {
	input textinput.Model
	vocab filter.Vocabulary

	err         *filter.ParseError
	suggestions []filter.Suggestion
	selected    int

	submitted bool
	canceled  bool

	errStyle   lipgloss.Style
	mutedStyle lipgloss.Style
	selStyle   lipgloss.Style
}

func New(initial string, vocab filter.Vocabulary) Model {
	in := textinput.New()
	in.Prompt = "filter> "
	in.Placeholder = "status = active AND tags = home"
	in.CharLimit = 500
	in.Width = 72
	in.SetValue(initial)
	in.CursorEnd()
	in.Focus()

	m := Model{
		input:      in,
		vocab:      vocab,
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		mutedStyle: lipgloss.NewStyle().Faint(true),
		selStyle:   lipgloss.NewStyle().Bold(true),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Query returns the current text.
func (m Model) Query() string { return m.input.Value() }

func (m Model) Submitted() bool { return m.submitted }
func (m Model) Canceled() bool  { return m.canceled }

// Err returns the parse error of the current text, if any.
func (m Model) Err() *filter.ParseError { return m.err }

func (m Model) Suggestions() []filter.Suggestion { return m.suggestions }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.err != nil {
				return m, nil
			}
			m.submitted = true
			return m, tea.Quit
		case tea.KeyTab:
			m.accept()
			return m, nil
		case tea.KeyUp:
			if len(m.suggestions) > 0 {
				m.selected = (m.selected + len(m.suggestions) - 1) % len(m.suggestions)
			}
			return m, nil
		case tea.KeyDown:
			if len(m.suggestions) > 0 {
				m.selected = (m.selected + 1) % len(m.suggestions)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	before, pos := m.input.Value(), m.input.Position()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before || m.input.Position() != pos {
		m.refresh()
	}
	return m, cmd
}

// accept replaces the text between the selected suggestion's start and the cursor.
func (m *Model) accept() {
	if len(m.suggestions) == 0 {
		return
	}
	s := m.suggestions[m.selected]
	runes := []rune(m.input.Value())
	cur := m.input.Position()
	if s.Start < 0 || s.Start > cur || cur > len(runes) {
		return
	}
	value := s.Value + " "
	next := string(runes[:s.Start]) + value + string(runes[cur:])
	m.input.SetValue(next)
	m.input.SetCursor(s.Start + len([]rune(value)))
	m.refresh()
}

func (m *Model) refresh() {
	m.err = nil
	if _, err := filter.Parse(m.input.Value()); err != nil {
		var pe *filter.ParseError
		if errors.As(err, &pe) {
			m.err = pe
		}
	}
	m.suggestions = filter.Suggest(m.input.Value(), m.input.Position(), m.vocab)
	if len(m.suggestions) > maxSuggestions {
		m.suggestions = m.suggestions[:maxSuggestions]
	}
	m.selected = 0
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	if m.err != nil {
		// Underline the offending span beneath the input.
		indent := len([]rune(m.input.Prompt)) + m.err.Pos
		width := m.err.End - m.err.Pos
		if width < 1 {
			width = 1
		}
		b.WriteString(strings.Repeat(" ", indent))
		b.WriteString(m.errStyle.Render(strings.Repeat("^", width)))
		b.WriteByte('\n')
		b.WriteString(m.errStyle.Render(m.err.Message))
		b.WriteByte('\n')
	}
	for i, s := range m.suggestions {
		line := "  " + s.Label + m.mutedStyle.Render("  "+string(s.Kind))
		if i == m.selected {
			line = m.selStyle.Render("> "+s.Label) + m.mutedStyle.Render("  "+string(s.Kind))
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(m.mutedStyle.Render("tab complete · enter run · esc cancel"))
	return b.String()
}

// Run edits initial interactively and returns the submitted query.
func Run(ctx context.Context, initial string, vocab filter.Vocabulary, in io.Reader, out io.Writer) (string, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	mm, err := tea.NewProgram(New(initial, vocab), opts...).Run()
	if err != nil {
		return "", err
	}
	m := mm.(Model)
	if m.canceled || !m.submitted {
		return "", ErrCanceled
	}
	return strings.TrimSpace(m.Query()), nil
}

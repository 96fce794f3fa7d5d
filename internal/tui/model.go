// Package tui is the terminal chat client: a loading screen while the model
// is acquired, then a transcript with an input box.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatd/internal/speech"
	"chatd/pkg/types"
)

// ErrorReply replaces the thinking placeholder when a turn fails.
const ErrorReply = "Sorry, there was an error processing your request."

// Sender runs one conversation turn.
type Sender interface {
	Send(ctx context.Context, text string) (string, error)
	OnReady()
}

type entryKind int

const (
	entryUser entryKind = iota
	entryBot
	entryThinking
	entryNotice
)

type entry struct {
	kind entryKind
	text string
}

// Messages consumed by Update.
type (
	progressMsg     types.LoadingProgress
	progressDoneMsg struct{}
	replyMsg        struct{ text string }
	replyErrMsg     struct{ err error }
	noticeMsg       speech.Notice
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	thinkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc3545"))
	readyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#28a745"))
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Model is the bubbletea model of the chat client.
type Model struct {
	sender    Sender
	updates   <-chan types.LoadingProgress
	notices   <-chan speech.Notice
	modelName string

	load     types.LoadingProgress
	ready    bool
	thinking bool
	cancel   context.CancelFunc
	entries  []entry

	bar      progress.Model
	input    textarea.Model
	viewport viewport.Model
	width    int
}

// New builds the client model. updates is a progress subscription; notices
// may be nil when speech is disabled.
func New(sender Sender, updates <-chan types.LoadingProgress, notices <-chan speech.Notice, modelName string) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return Model{
		sender:    sender,
		updates:   updates,
		notices:   notices,
		modelName: modelName,
		load:      types.LoadingProgress{Status: types.LoadInitializing, Message: "Loading..."},
		bar:       progress.New(progress.WithDefaultGradient()),
		input:     ta,
		viewport:  viewport.New(80, 20),
		width:     80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitProgress(m.updates), waitNotice(m.notices))
}

func waitProgress(ch <-chan types.LoadingProgress) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return progressDoneMsg{}
		}
		return progressMsg(p)
	}
}

func waitNotice(ch <-chan speech.Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func sendCmd(ctx context.Context, s Sender, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := s.Send(ctx, text)
		if err != nil {
			return replyErrMsg{err: err}
		}
		return replyMsg{text: reply}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.thinking && m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.SetWidth(msg.Width)
		m.bar.Width = min(max(msg.Width-10, 10), 80)
		m.refresh()

	case progressMsg:
		m.load = types.LoadingProgress(msg)
		if m.load.Status == types.LoadReady && !m.ready {
			m.ready = true
			m.sender.OnReady()
		}
		cmds = append(cmds, waitProgress(m.updates))

	case progressDoneMsg:
		m.updates = nil

	case replyMsg:
		m.finishTurn(entry{kind: entryBot, text: msg.text})

	case replyErrMsg:
		text := ErrorReply
		if errors.Is(msg.err, context.Canceled) {
			text = "Generation canceled."
		}
		m.finishTurn(entry{kind: entryNotice, text: text})

	case noticeMsg:
		m.entries = append(m.entries, entry{kind: entryNotice, text: msg.Text})
		m.refresh()
		cmds = append(cmds, waitNotice(m.notices))
	}

	var cmd tea.Cmd
	if m.ready {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit starts a turn. Input is ignored until the model is ready and while a
// reply is being generated.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if !m.ready || m.thinking || text == "" {
		return m, nil
	}
	m.input.Reset()
	m.thinking = true
	m.entries = append(m.entries,
		entry{kind: entryUser, text: text},
		entry{kind: entryThinking, text: m.modelName + " is thinking…"},
	)
	m.refresh()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	return m, sendCmd(ctx, m.sender, text)
}

// finishTurn replaces the thinking placeholder with e.
func (m *Model) finishTurn(e entry) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == entryThinking {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.entries = append(m.entries, e)
	m.thinking = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.refresh()
}

func (m *Model) refresh() {
	var b strings.Builder
	w := max(m.width-2, 10)
	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Width(w).Render("You: " + e.text))
		case entryBot:
			b.WriteString(botStyle.Width(w).Render(e.text))
		case entryThinking:
			b.WriteString(thinkStyle.Render(e.text))
		case entryNotice:
			b.WriteString(noticeStyle.Width(w).Render(e.text))
		}
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return m.loadingView()
	}
	status := readyStyle.Render("✅ " + m.modelName + " ready - Start chatting!")
	if m.thinking {
		status = statusStyle.Render("Generating... (esc to cancel)")
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), status, m.input.View())
}

func (m Model) loadingView() string {
	msg := m.load.Message
	if msg == "" {
		msg = "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Loading " + m.modelName))
	b.WriteString("\n")
	if m.load.Progress != nil {
		pct := *m.load.Progress
		b.WriteString(m.bar.ViewAs(pct / 100))
		b.WriteString(fmt.Sprintf(" %.2f%%", pct))
		b.WriteString("\n")
	}
	switch m.load.Status {
	case types.LoadError:
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("❌ Error loading model.") + " Press ctrl+c to quit.")
	default:
		b.WriteString(msg)
	}
	return b.String()
}

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opsvoice/internal/session"
)

// Conn is the TUI-facing subset of a session connection.
type Conn interface {
	Send(ev session.Event) error
	Events() <-chan session.Event
}

type eventMsg session.Event

type connClosedMsg struct{}

// Model is the Bubble Tea model for the operator chat client. Typing
// streams interim transcripts to the session; Enter finalizes the turn
// and the reply renders delta by delta as it arrives.
type Model struct {
	conn     Conn
	input    textinput.Model
	viewport viewport.Model
	log      []string
	reply    strings.Builder
	state    string
	status   string
	voice    bool
	turnOpen bool
	ready    bool
}

// New creates a new chat model speaking the session protocol over conn.
func New(conn Conn) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the manual, /voice toggles voice mode"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{conn: conn, input: ti, viewport: vp, state: "idle", status: "Connected."}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.conn))
}

func waitForEvent(conn Conn) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-conn.Events()
		if !ok {
			return connClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles key presses, window resizes and session events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ch)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			return m.finalizeTurn()
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if v := m.input.Value(); v != before && strings.TrimSpace(v) != "" {
			m.sendInterim(v)
		}
		return m, cmd

	case eventMsg:
		m.applyEvent(session.Event(msg))
		m.refresh()
		return m, waitForEvent(m.conn)

	case connClosedMsg:
		m.status = "Connection closed."
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) finalizeTurn() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return *m, nil
	}
	if text == "/voice" {
		m.voice = !m.voice
		m.input.Reset()
		if m.voice {
			m.status = "Voice mode on: relaxed retrieval parameters."
		} else {
			m.status = "Voice mode off."
		}
		return *m, nil
	}

	m.log = append(m.log, youStyle.Render("you: ")+text)
	m.reply.Reset()
	m.turnOpen = false
	m.input.Reset()
	m.refresh()

	if err := m.conn.Send(session.Event{
		Type:       session.EventTurnFinalized,
		Transcript: text,
		IsVoice:    m.voice,
	}); err != nil {
		m.status = "Send failed: " + err.Error()
	}
	return *m, nil
}

func (m *Model) sendInterim(text string) {
	if !m.turnOpen {
		m.turnOpen = true
		if err := m.conn.Send(session.Event{Type: session.EventTurnStart}); err != nil {
			m.status = "Send failed: " + err.Error()
			return
		}
	}
	if err := m.conn.Send(session.Event{Type: session.EventInterimTranscript, Transcript: text, IsVoice: m.voice}); err != nil {
		m.status = "Send failed: " + err.Error()
	}
}

func (m *Model) applyEvent(ev session.Event) {
	switch ev.Type {
	case session.EventResponseTextDelta:
		m.reply.WriteString(ev.Delta)
	case session.EventResponseDone:
		if m.reply.Len() > 0 {
			m.log = append(m.log, botStyle.Render("assistant: ")+m.reply.String())
			m.reply.Reset()
		}
	case session.EventState:
		m.state = ev.State
	case session.EventToolCallResult:
		m.log = append(m.log, dimStyle.Render("tool result: "+ev.Output))
	case session.EventError:
		m.status = "Session error: " + ev.Message
	}
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, line := range m.log {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(line)
	}
	if m.reply.Len() > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(botStyle.Render("assistant: ") + m.reply.String())
	}
	if b.Len() == 0 {
		b.WriteString("No messages yet.")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Connecting..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("OpsVoice Operator Chat")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	mode := "text"
	if m.voice {
		mode = "voice"
	}
	status := dimStyle.Render("state: " + m.state + "  mode: " + mode + "  " + m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

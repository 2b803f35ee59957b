package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/warpchat/internal/negotiator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TypingIdle is how long after the last keystroke typing:false is sent.
const TypingIdle = time.Second

// MaxHistory bounds the chat lines kept for the viewport.
const MaxHistory = 500

// Actions are the user intents the chat screen issues.
type Actions interface {
	Start(interests []string, handle string)
	Skip()
	Stop()
	SendChat(text string)
	SetTyping(typing bool)
	SetMuted(muted bool)
	SetVideoOff(off bool)
}

type (
	statusMsg    string
	interestsMsg string
	chatMsg      struct {
		from negotiator.Speaker
		text string
	}
	peerTypingMsg bool
	handleMsg     string
	onlineMsg     int
	errorMsg      struct{ err error }
	typingIdleMsg struct{ seq int }
)

// ChatModel is the bubbletea model for the chat screen.
type ChatModel struct {
	actions   Actions
	interests []string
	handle    string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	status     string
	common     string
	peerHandle string
	online     int
	peerTyping bool
	err        error
	lines      []string

	active   bool
	muted    bool
	videoOff bool

	typing    bool
	typingSeq int

	summary SessionSummary
	started time.Time

	quitting bool
}

// NewChatModel creates the chat screen. The session is assumed started.
func NewChatModel(actions Actions, interests []string, handle string) *ChatModel {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 500
	input.Width = 60
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &ChatModel{
		actions:   actions,
		interests: interests,
		handle:    handle,
		input:     input,
		viewport:  viewport.New(80, 12),
		spinner:   s,
		status:    negotiator.StatusLooking,
		active:    true,
		started:   time.Now(),
	}
}

// Summary returns the counters for the session so far.
func (m *ChatModel) Summary() SessionSummary {
	s := m.summary
	s.Duration = time.Since(m.started)
	return s
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "ctrl+n":
			m.actions.Skip()
			return m, nil

		case "ctrl+x":
			if m.active {
				m.actions.Stop()
			} else {
				m.actions.Start(m.interests, m.handle)
			}
			m.active = !m.active
			return m, nil

		case "ctrl+o":
			m.muted = !m.muted
			m.actions.SetMuted(m.muted)
			return m, nil

		case "ctrl+t":
			m.videoOff = !m.videoOff
			m.actions.SetVideoOff(m.videoOff)
			return m, nil

		case "enter":
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) != "" {
				m.actions.SendChat(text)
			}
			m.typing = false
			m.typingSeq++
			return m, nil
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if m.input.Value() != before {
			cmds = append(cmds, m.keystroke())
		}

	case typingIdleMsg:
		if msg.seq == m.typingSeq && m.typing {
			m.typing = false
			m.actions.SetTyping(false)
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-9)
		m.input.Width = max(10, msg.Width-4)
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case statusMsg:
		m.status = string(msg)
		m.err = nil
		switch m.status {
		case negotiator.StatusConnected:
			m.summary.Strangers++
			m.lines = nil
			m.common = ""
			m.peerHandle = ""
		case negotiator.StatusLooking:
		default:
			m.addLine(MutedStyle.Render(m.status))
		}
		m.peerTyping = false
		m.refresh()

	case interestsMsg:
		m.common = string(msg)

	case handleMsg:
		m.peerHandle = string(msg)

	case onlineMsg:
		m.online = int(msg)

	case peerTypingMsg:
		m.peerTyping = bool(msg)

	case chatMsg:
		if msg.from == negotiator.You {
			m.summary.Sent++
			m.addLine(YouStyle.Render("You: ") + msg.text)
		} else {
			m.summary.Received++
			m.peerTyping = false
			m.addLine(StrangerStyle.Render("Stranger: ") + msg.text)
		}
		m.refresh()

	case errorMsg:
		m.err = msg.err
		m.active = false
	}

	return m, tea.Batch(cmds...)
}

// keystroke reports typing and restarts the idle timer.
func (m *ChatModel) keystroke() tea.Cmd {
	if !m.typing {
		m.typing = true
		m.actions.SetTyping(true)
	}
	m.typingSeq++
	seq := m.typingSeq
	return tea.Tick(TypingIdle, func(time.Time) tea.Msg {
		return typingIdleMsg{seq: seq}
	})
}

func (m *ChatModel) addLine(line string) {
	m.lines = append(m.lines, line)
	if over := len(m.lines) - MaxHistory; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := HeaderStyle.Render("warpchat")
	if m.online > 0 {
		header += " " + MutedStyle.Render(fmt.Sprintf("%s %d online", IconOnline, m.online))
	}
	b.WriteString(header + "\n\n")

	switch {
	case m.err != nil:
		b.WriteString(FormatError(m.err) + "\n")
	case m.status == negotiator.StatusLooking:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.status))
	default:
		b.WriteString(StatusStyle.Render(m.status) + "\n")
	}

	var info []string
	if m.peerHandle != "" {
		info = append(info, fmt.Sprintf("%s Stranger: %s", IconPeer, m.peerHandle))
	}
	if m.common != "" {
		info = append(info, InterestStyle.Render(m.common))
	}
	b.WriteString(strings.Join(info, "  ") + "\n")

	b.WriteString(ChatBoxStyle.Render(m.viewport.View()) + "\n")

	if m.peerTyping {
		b.WriteString(MutedStyle.Render("Stranger is typing...") + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(m.input.View() + "\n")

	var flags []string
	if m.muted {
		flags = append(flags, IconMuted+" muted")
	}
	if m.videoOff {
		flags = append(flags, IconCamOff+" camera off")
	}
	help := "ctrl+n next • ctrl+x stop/start • ctrl+o mute • ctrl+t camera • ctrl+c quit"
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		FooterStyle.Render(help),
		" "+WarningStyle.Render(strings.Join(flags, " ")),
	))

	return b.String()
}

// Screen forwards negotiator output to a running chat program. Updates are
// queued and delivered by a separate goroutine so the negotiator never waits
// on the bubbletea loop.
type Screen struct {
	mu      sync.Mutex
	queue   []tea.Msg
	deliver func(tea.Msg)
	wake    chan struct{}
	done    chan struct{}
}

// Attach sets the program that receives display updates.
func (s *Screen) Attach(p *tea.Program) {
	s.attach(p.Send)
}

func (s *Screen) attach(deliver func(tea.Msg)) {
	s.mu.Lock()
	s.deliver = deliver
	s.wake = make(chan struct{}, 1)
	s.done = make(chan struct{})
	wake, done := s.wake, s.done
	s.mu.Unlock()

	go s.drain(wake, done)
}

// Close stops delivering updates. Queued updates are discarded.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.queue = nil
}

func (s *Screen) send(msg tea.Msg) {
	s.mu.Lock()
	if s.deliver == nil || s.done == nil {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, msg)
	wake := s.wake
	s.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
}

func (s *Screen) drain(wake, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-wake:
		}
		for {
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			deliver := s.deliver
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, msg := range batch {
				select {
				case <-done:
					return
				default:
				}
				deliver(msg)
			}
		}
	}
}

func (s *Screen) Status(text string)                        { s.send(statusMsg(text)) }
func (s *Screen) CommonInterests(text string)               { s.send(interestsMsg(text)) }
func (s *Screen) Chat(from negotiator.Speaker, text string) { s.send(chatMsg{from: from, text: text}) }
func (s *Screen) Typing(typing bool)                        { s.send(peerTypingMsg(typing)) }
func (s *Screen) PeerHandle(handle string)                  { s.send(handleMsg(handle)) }
func (s *Screen) Online(count int)                          { s.send(onlineMsg(count)) }
func (s *Screen) Error(err error)                           { s.send(errorMsg{err: err}) }

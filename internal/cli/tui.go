package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vigilcell/vigil/internal/bus"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen terminal front-end",
	Run:   runTUI,
}

func runTUI(cmd *cobra.Command, args []string) {
	queue := openQueue()
	defer queue.Close()

	m := newTUIModel(queue)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("TUI error: %v\n", err)
	}
}

var (
	tuiAccent  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	tuiUser    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	tuiBot     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	tuiDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tuiDivider = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// queueMsg delivers messages drained from the cli output channel.
type queueMsg []string

type tuiModel struct {
	queue     *bus.Queue
	sessionID string

	input    textinput.Model
	viewport viewport.Model

	lines []string
	ready bool
	width int
}

func newTUIModel(queue *bus.Queue) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.Prompt = "> "
	ti.PromptStyle = tuiAccent

	return tuiModel{
		queue:     queue,
		sessionID: "tui:" + uuid.NewString(),
		input:     ti,
		lines:     []string{tuiDim.Render("Connected. Monitor alerts and replies appear here.")},
	}
}

func (m tuiModel) Init() tea.Cmd {
	return m.pollOutput()
}

// pollOutput drains the cli output channel off the UI goroutine.
func (m tuiModel) pollOutput() tea.Cmd {
	queue := m.queue
	return func() tea.Msg {
		var batch []string
		for {
			msg, err := queue.Pop(context.Background(), bus.CLIOut, 0)
			if errors.Is(err, bus.ErrEmpty) || err != nil {
				break
			}
			batch = append(batch, msg)
		}
		if len(batch) == 0 {
			time.Sleep(250 * time.Millisecond)
		}
		return queueMsg(batch)
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		vpHeight := msg.Height - 4
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case queueMsg:
		for _, line := range msg {
			m.lines = append(m.lines, tuiBot.Render("vigil ")+line)
		}
		m.refresh()
		return m, m.pollOutput()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if text == "exit" || text == "quit" {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.lines = append(m.lines, tuiUser.Render("you   ")+text)
			m.refresh()

			env := bus.Envelope{Source: "tui", Content: text, SessionID: m.sessionID}
			if err := m.queue.PushJSON(bus.Inbox, env); err != nil {
				m.lines = append(m.lines, tuiDim.Render(fmt.Sprintf("send failed: %v", err)))
				m.refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m tuiModel) View() string {
	if !m.ready {
		return "loading..."
	}
	divider := tuiDivider.Render(strings.Repeat("─", max(m.width, 1)))
	header := tuiAccent.Render(" vigil ") + tuiDim.Render("— esc to quit")
	return header + "\n" + divider + "\n" + m.viewport.View() + "\n" + divider + "\n" + m.input.View()
}

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiled/internal/client"
)

// LEDClient is the part of client.Client the dashboard uses.
type LEDClient interface {
	GetLED(ctx context.Context) (bool, error)
	SetLED(ctx context.Context, on bool) error
	Watch(ctx context.Context) (<-chan bool, <-chan error, error)
}

const (
	requestTimeout = 5 * time.Second
	rewatchDelay   = 2 * time.Second
)

// Messages for async operations
type (
	ledStateMsg struct {
		on  bool
		err error
	}
	setResultMsg struct {
		on  bool
		err error
	}
	watchStartedMsg struct {
		states <-chan bool
		errs   <-chan error
		err    error
	}
	watchStateMsg struct{ on bool }
	watchEndedMsg struct{ err error }
	rewatchMsg    struct{}
)

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Toggle  key.Binding
	On      key.Binding
	Off     key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.On, k.Off, k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.On, k.Off},
		{k.Refresh, k.Quit},
	}
}

func newDashboardKeyMap() dashboardKeyMap {
	return dashboardKeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter", "t"),
			key.WithHelp("space", "toggle"),
		),
		On: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "on"),
		),
		Off: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "off"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DashboardModel shows and controls one device's LED.
type DashboardModel struct {
	Client LEDClient
	Device string // base URL, for display

	// LED state as last reported by the device
	On    bool
	Known bool

	Live    bool // watch stream connected
	Pending bool // set request in flight
	LastErr error
	Updated time.Time

	Width   int
	Spinner spinner.Model
	Help    help.Model
	keys    dashboardKeyMap

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDashboard creates a dashboard for the device at baseURL.
func NewDashboard(c LEDClient, baseURL string) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	ctx, cancel := context.WithCancel(context.Background())
	return DashboardModel{
		Client:  c,
		Device:  baseURL,
		Width:   GetTerminalWidth(),
		Spinner: s,
		Help:    help.New(),
		keys:    newDashboardKeyMap(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Init starts the spinner, the first fetch and the watch stream.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.fetchCmd(), m.watchCmd())
}

// Update handles key presses and async results.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchCmd()
		case key.Matches(msg, m.keys.Toggle):
			if !m.Known || m.Pending {
				return m, nil
			}
			return m.set(!m.On)
		case key.Matches(msg, m.keys.On):
			return m.set(true)
		case key.Matches(msg, m.keys.Off):
			return m.set(false)
		}
		return m, nil

	case ledStateMsg:
		if msg.err != nil {
			m.LastErr = msg.err
			return m, nil
		}
		m.observe(msg.on)
		return m, nil

	case setResultMsg:
		m.Pending = false
		if msg.err != nil {
			m.LastErr = msg.err
			return m, nil
		}
		m.observe(msg.on)
		return m, nil

	case watchStartedMsg:
		if msg.err != nil {
			m.Live = false
			m.LastErr = msg.err
			return m, rewatchCmd()
		}
		m.Live = true
		return m, waitForState(msg.states, msg.errs)

	case watchStateMsg:
		m.observe(msg.on)
		return m, nil

	case watchEndedMsg:
		m.Live = false
		if m.ctx.Err() != nil {
			return m, nil
		}
		if msg.err != nil {
			m.LastErr = msg.err
		}
		return m, rewatchCmd()

	case rewatchMsg:
		if m.ctx.Err() != nil {
			return m, nil
		}
		return m, m.watchCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *DashboardModel) observe(on bool) {
	m.On = on
	m.Known = true
	m.LastErr = nil
	m.Updated = time.Now()
}

func (m DashboardModel) set(on bool) (tea.Model, tea.Cmd) {
	m.Pending = true
	c, ctx := m.Client, m.ctx
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return setResultMsg{on: on, err: c.SetLED(ctx, on)}
	}
}

func (m DashboardModel) fetchCmd() tea.Cmd {
	c, ctx := m.Client, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		on, err := c.GetLED(ctx)
		return ledStateMsg{on: on, err: err}
	}
}

func (m DashboardModel) watchCmd() tea.Cmd {
	c, ctx := m.Client, m.ctx
	return func() tea.Msg {
		states, errs, err := c.Watch(ctx)
		return watchStartedMsg{states: states, errs: errs, err: err}
	}
}

// waitForState delivers the next value from the stream as a message.
func waitForState(states <-chan bool, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		on, ok := <-states
		if ok {
			return watchStateMsg{on: on}
		}
		select {
		case err := <-errs:
			return watchEndedMsg{err: err}
		default:
			return watchEndedMsg{}
		}
	}
}

func rewatchCmd() tea.Cmd {
	return tea.Tick(rewatchDelay, func(time.Time) tea.Msg { return rewatchMsg{} })
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	width := clampWidth(m.Width)
	var b strings.Builder

	b.WriteString(TitleStyle.Render("WIFILED"))
	b.WriteString("  ")
	b.WriteString(MutedStyle.Render(m.Device))
	b.WriteString("\n\n")

	switch {
	case !m.Known:
		b.WriteString(m.Spinner.View() + " Reading LED state...")
	case m.Pending:
		b.WriteString(RenderLamp(m.On) + "  " + m.Spinner.View())
	default:
		b.WriteString(RenderLamp(m.On))
	}
	b.WriteString("\n\n")

	stream := WarningStyle.Render("○ stream offline")
	if m.Live {
		stream = SuccessTitleStyle.Render(LiveMarker + " live")
	}
	b.WriteString(stream)
	if !m.Updated.IsZero() {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("   updated %s", m.Updated.Format("15:04:05"))))
	}
	b.WriteString("\n")

	if m.LastErr != nil {
		b.WriteString("\n")
		b.WriteString(ErrorMessageStyle.Render(FailureMarker + " " + client.ShortMessage(m.LastErr)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.Help.View(m.keys))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width-2).
		Padding(0, 1).
		Render(b.String())
}

package windowscmder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/papercomputeco/tiermem/pkg/cliui"
	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/recency"
)

const refreshInterval = 5 * time.Second

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("82")).Bold(true).Underline(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	typeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// importanceStyles is indexed by importance; 0 is unused.
var importanceStyles = func() []lipgloss.Style {
	colors := []string{"", "240", "242", "244", "246", "250", "186", "220", "214", "208", "196"}
	styles := make([]lipgloss.Style, len(colors))
	for i, c := range colors {
		if c != "" {
			styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(i >= recency.DefaultWeeklyThreshold)
		}
	}
	return styles
}()

type fetchFunc func(ctx context.Context, window string) ([]memory.Record, error)

type windowsKeyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k windowsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Down, k.Up, k.Refresh, k.Quit}
}

func (k windowsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Down, k.Up}, {k.Refresh, k.Quit}}
}

func defaultKeyMap() windowsKeyMap {
	return windowsKeyMap{
		Next:    key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next window")),
		Prev:    key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous window")),
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type windowsModel struct {
	ctx   context.Context
	fetch fetchFunc
	owner string
	actor string

	active  int
	offset  int
	records map[recency.Window][]memory.Record
	errs    map[recency.Window]error
	updated time.Time

	width  int
	height int
	keys   windowsKeyMap
	help   help.Model
}

type loadedMsg struct {
	window  recency.Window
	records []memory.Record
	err     error
	at      time.Time
}

type tickMsg time.Time

func newModel(ctx context.Context, owner, actor string, fetch fetchFunc) windowsModel {
	return windowsModel{
		ctx:     ctx,
		fetch:   fetch,
		owner:   owner,
		actor:   actor,
		records: map[recency.Window][]memory.Record{},
		errs:    map[recency.Window]error{},
		width:   100,
		height:  24,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
}

func (m windowsModel) Init() tea.Cmd {
	return tea.Batch(m.loadAll(), tick())
}

func (m windowsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.errs[msg.window] = msg.err
		} else {
			delete(m.errs, msg.window)
			m.records[msg.window] = msg.records
		}
		m.updated = msg.at
		m.offset = min(m.offset, m.maxOffset())
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadAll(), tick())

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m windowsModel) handleKey(msg fmt.Stringer) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		m.active = (m.active + 1) % len(recency.Windows)
		m.offset = 0
	case key.Matches(msg, m.keys.Prev):
		m.active = (m.active + len(recency.Windows) - 1) % len(recency.Windows)
		m.offset = 0
	case key.Matches(msg, m.keys.Down):
		m.offset = min(m.offset+1, m.maxOffset())
	case key.Matches(msg, m.keys.Up):
		m.offset = max(m.offset-1, 0)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadAll()
	}
	return m, nil
}

func (m windowsModel) window() recency.Window {
	return recency.Windows[m.active]
}

// listHeight is the number of record lines that fit between header and help.
func (m windowsModel) listHeight() int {
	return max(m.height-6, 1)
}

func (m windowsModel) maxOffset() int {
	return max(len(m.records[m.window()])-m.listHeight(), 0)
}

func (m windowsModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m windowsModel) render() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("tiermem · %s ↔ %s", m.owner, m.actor)))
	if !m.updated.IsZero() {
		b.WriteString("  " + mutedStyle.Render("updated "+m.updated.Format(time.TimeOnly)))
	}
	b.WriteString("\n\n")

	tabs := make([]string, 0, len(recency.Windows))
	for i, w := range recency.Windows {
		label := fmt.Sprintf("%s (%d)", w, len(m.records[w]))
		if i == m.active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")

	w := m.window()
	records := m.records[w]
	switch {
	case m.errs[w] != nil:
		b.WriteString(errStyle.Render(cliui.Truncate("error: "+m.errs[w].Error(), m.width)))
		b.WriteString("\n")
	case len(records) == 0:
		b.WriteString(mutedStyle.Render("  nothing in this window"))
		b.WriteString("\n")
	default:
		end := min(m.offset+m.listHeight(), len(records))
		for _, rec := range records[m.offset:end] {
			b.WriteString(cliui.Truncate(m.renderRecord(rec), m.width))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m windowsModel) renderRecord(rec memory.Record) string {
	score := memory.ClampImportance(rec.Importance)
	content := strings.ReplaceAll(strings.TrimSpace(rec.Content), "\n", " ")
	return fmt.Sprintf("%s %s %s %s",
		timeStyle.Render(rec.Timestamp.Local().Format(memory.TimestampLayout)),
		importanceStyles[score].Render(fmt.Sprintf("%2d", score)),
		typeStyle.Render("["+rec.Type+"]"),
		content,
	)
}

func (m windowsModel) loadAll() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(recency.Windows))
	for _, w := range recency.Windows {
		cmds = append(cmds, m.load(w))
	}
	return tea.Batch(cmds...)
}

func (m windowsModel) load(w recency.Window) tea.Cmd {
	return func() tea.Msg {
		records, err := m.fetch(m.ctx, string(w))
		return loadedMsg{window: w, records: records, err: err, at: time.Now()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// pager shows rendered timelines in an alt-screen viewport with search
// and, in live mode, follow-on-write.
type pager struct {
	title string
}

func newPager(title string) *pager {
	return &pager{title: title}
}

// Run pages static content.
func (p *pager) Run(content string) error {
	prog := tea.NewProgram(
		&pagerModel{title: p.title, content: content},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// RunLive pages content that render re-produces whenever path changes.
func (p *pager) RunLive(path string, render func() (string, error)) error {
	content, err := render()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	prog := tea.NewProgram(
		&pagerModel{
			title:   p.title,
			content: content,
			live:    true,
			render:  render,
			watcher: watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	watcher.Close()
	return err
}

// reloadMsg signals that the watched record grew.
type reloadMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string // wrapped to the terminal width; what search runs on
	ready    bool

	live    bool
	follow  bool // stick to the bottom on reload
	render  func() (string, error)
	watcher *fsnotify.Watcher

	searching   bool
	searchInput textinput.Model
	searchQuery string
	matches     []int // wrapped-content line numbers
	matchIndex  int
	noMatch     bool
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.awaitChange()
	}
	return nil
}

// awaitChange blocks on the watcher until the record is written again.
func (m *pagerModel) awaitChange() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Let the writing process finish its line.
					time.Sleep(100 * time.Millisecond)
					return reloadMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	if m.searching {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.runSearch()
				if len(m.matches) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.clearSearch()
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case reloadMsg:
		if m.render != nil {
			if content, err := m.render(); err == nil {
				offset := m.viewport.YOffset
				m.content = content
				m.wrapped = wrapTimeline(m.content, m.viewport.Width)
				m.viewport.SetContent(m.wrapped)
				if m.follow {
					m.viewport.GotoBottom()
				} else if offset <= m.viewport.TotalLineCount() {
					m.viewport.YOffset = offset
				}
				if m.searchQuery != "" {
					m.runSearch()
				}
			}
		}
		cmds = append(cmds, m.awaitChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.searchQuery != "" {
				m.clearSearch()
			} else {
				return m, tea.Quit
			}
		case "g":
			m.follow = false
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f":
			if m.live {
				m.follow = !m.follow
				if m.follow {
					m.viewport.GotoBottom()
				}
			}
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.Focus()
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			if m.searchQuery != "" {
				m.searchInput.SetValue(m.searchQuery)
			}
			return m, textinput.Blink
		case "n":
			if len(m.matches) > 0 {
				m.matchIndex = (m.matchIndex + 1) % len(m.matches)
				m.jumpToMatch(m.matchIndex)
			}
		case "N":
			if len(m.matches) > 0 {
				m.matchIndex--
				if m.matchIndex < 0 {
					m.matchIndex = len(m.matches) - 1
				}
				m.jumpToMatch(m.matchIndex)
			}
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.wrapped = wrapTimeline(m.content, msg.Width)
		m.viewport.SetContent(m.wrapped)
		if m.searchQuery != "" {
			m.runSearch()
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *pagerModel) clearSearch() {
	m.searchQuery = ""
	m.matches = nil
	m.matchIndex = 0
	m.noMatch = false
}

// runSearch collects wrapped-content lines containing the query,
// case-insensitive.
func (m *pagerModel) runSearch() {
	m.matches = nil
	m.matchIndex = 0
	m.noMatch = false
	if m.searchQuery == "" {
		return
	}

	query := strings.ToLower(m.searchQuery)
	for i, line := range strings.Split(m.wrapped, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.matches = append(m.matches, i)
		}
	}
	if len(m.matches) == 0 {
		m.noMatch = true
	}
}

// jumpToMatch centers the given match on screen.
func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.matches) {
		return
	}
	offset := m.matches[index] - m.viewport.Height/2
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if offset > maxOffset {
		offset = maxOffset
	}
	if offset < 0 {
		offset = 0
	}
	m.viewport.YOffset = offset
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	line := strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(line))

	percent := 100
	if hidden := m.viewport.TotalLineCount() - m.viewport.Height; hidden > 0 {
		percent = m.viewport.YOffset * 100 / hidden
		if percent > 100 {
			percent = 100
		}
	}
	info := fmt.Sprintf(" %d%% ", percent)

	var footer string
	if m.searching {
		footer = warnStyle.Render("/") + m.searchInput.View()
	} else {
		var help string
		switch {
		case m.noMatch:
			help = fmt.Sprintf(" %s │ /: search ", errorStyle.Render("Pattern not found"))
		case len(m.matches) > 0:
			help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ",
				warnStyle.Render(fmt.Sprintf("[%d/%d]", m.matchIndex+1, len(m.matches))))
		case m.live && m.follow:
			help = fmt.Sprintf(" %s │ q: quit │ f: unfollow │ /: search ",
				successStyle.Render("● FOLLOW"))
		case m.live:
			help = fmt.Sprintf(" %s │ q: quit │ f: follow │ /: search │ g/G: top/bottom ",
				successStyle.Render("● LIVE"))
		default:
			help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
		}
		pad := strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
		footer = pagerInfoStyle.Render(help) + pagerInfoStyle.Render(pad) + pagerInfoStyle.Render(info)
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// wrapTimeline wraps long lines to the terminal width. Timeline rows
// keep their column alignment: continuation lines are indented to the
// content column after the last │ separator.
func wrapTimeline(content string, width int) string {
	if width <= 0 {
		return content
	}

	var result []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}

		if lastPipe := strings.LastIndex(line, "│"); lastPipe > 0 && lastPipe < len(line)-1 {
			prefixWidth := lipgloss.Width(line[:lastPipe+len("│")]) + 1
			contentWidth := width - prefixWidth
			if contentWidth < 20 {
				contentWidth = 20
			}

			contentStart := lastPipe + len("│")
			for contentStart < len(line) && line[contentStart] == ' ' {
				contentStart++
			}

			wrapped := strings.Split(wordwrap.String(line[contentStart:], contentWidth), "\n")
			result = append(result, line[:contentStart]+wrapped[0])
			indent := strings.Repeat(" ", prefixWidth)
			for _, w := range wrapped[1:] {
				result = append(result, indent+w)
			}
			continue
		}

		result = append(result, strings.Split(wordwrap.String(line, width), "\n")...)
	}

	return strings.Join(result, "\n")
}

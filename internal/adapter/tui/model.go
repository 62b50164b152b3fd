// Package tui implements the interactive search browser: a query
// input, an engine toggle, and a scrollable result pane over the same
// pipeline the CLI uses.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"websearch/internal/domain"
	"websearch/internal/usecase"
)

// Adaptive colors work on both light and dark terminals; NO_COLOR is
// respected automatically by lipgloss.
var (
	colorInfo  = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorError = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}

	titleStyle  = lipgloss.NewStyle().Bold(true)
	engineStyle = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

// Deps are the dependencies injected into the TUI model.
type Deps struct {
	Service *usecase.Service
	Logger  *slog.Logger
}

// Model is the root Bubble Tea model. The query input owns the
// keyboard by default; esc moves focus to the result pane for
// scrolling.
type Model struct {
	deps Deps

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	engine    domain.Engine
	searching bool
	status    string
	ready     bool
	width     int
	height    int
	quitting  bool

	// gen is incremented on every new search; done messages carrying
	// an older gen belong to a superseded request and are discarded.
	gen      uint64
	cancelFn context.CancelFunc
}

// New creates the root model starting on the Brave engine.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ti := textinput.New()
	ti.Placeholder = placeholderFor(domain.EngineBrave)
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorInfo)

	return Model{
		deps:   deps,
		input:  ti,
		spin:   sp,
		engine: domain.EngineBrave,
	}
}

// Init starts the cursor blink and spinner tick loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case searchDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.searching = false
		m.cancelFn = nil
		if msg.err != nil {
			// The user already saw "Search cancelled." for their own
			// ctrl+c; anything else is a real failure.
			if !errors.Is(msg.err, context.Canceled) {
				m.status = errorStyle.Render(fmt.Sprintf("%s search failed: %v", m.engine, msg.err))
			}
			return m, nil
		}
		m.status = ""
		m.viewport.SetContent(msg.output)
		m.viewport.GotoTop()
		return m, nil

	case quitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.searching {
			m.cancelSearch()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEnter:
		return m.startSearch()

	case tea.KeyTab:
		m.engine = nextEngine(m.engine)
		m.input.Placeholder = placeholderFor(m.engine)
		return m, nil

	case tea.KeyEsc:
		if m.input.Focused() {
			m.input.Blur()
			return m, nil
		}
		m.input.Focus()
		return m, textinput.Blink
	}

	// With the input blurred the result pane owns the keyboard.
	if !m.input.Focused() {
		switch msg.String() {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "i", "/":
			m.input.Focus()
			return m, textinput.Blink
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startSearch() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" || m.searching {
		return m, nil
	}

	if m.cancelFn != nil {
		m.cancelFn()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel
	m.gen++
	m.searching = true
	m.status = ""

	m.deps.Logger.Debug("tui search", "engine", m.engine, "query", query)

	return m, tea.Batch(m.spin.Tick, searchCmd(ctx, m.deps.Service, m.engine, query, m.gen))
}

// cancelSearch aborts the in-flight request. The gen bump makes its
// eventual done message stale.
func (m *Model) cancelSearch() {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
	m.gen++
	m.searching = false
	m.status = "Search cancelled."
}

// View renders the full UI: header, result pane, input, status line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "  Initializing..."
	}

	header := titleStyle.Render("websearch") + "  " + engineStyle.Render("["+m.engine.String()+"]")

	status := m.status
	if m.searching {
		status = m.spin.View() + " searching " + m.engine.String() + "..."
	}
	if status == "" {
		status = hintStyle.Render("enter search · tab engine · esc focus results · q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		status,
	)
}

// layout recalculates sizes. The viewport is created lazily on the
// first WindowSizeMsg.
func (m *Model) layout() {
	const chromeHeight = 3 // header + input + status
	contentH := m.height - chromeHeight
	if contentH < 3 {
		contentH = 3
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, contentH)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = contentH
	}
	m.input.Width = m.width - 4
}

// nextEngine cycles brave, perplexity, both, fetch.
func nextEngine(e domain.Engine) domain.Engine {
	switch e {
	case domain.EngineBrave:
		return domain.EnginePerplexity
	case domain.EnginePerplexity:
		return domain.EngineBoth
	case domain.EngineBoth:
		return domain.EngineFetch
	default:
		return domain.EngineBrave
	}
}

func placeholderFor(e domain.Engine) string {
	if e == domain.EngineFetch {
		return "https://example.com/page"
	}
	return "Search the web..."
}

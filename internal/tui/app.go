package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/greencampus/internal/dashboard"
	"github.com/sadopc/greencampus/internal/export"
	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/remote"
	"github.com/sadopc/greencampus/internal/session"
)

type Option func(*App)

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithExportDir sets where exports are written. Defaults to the home
// directory.
func WithExportDir(dir string) Option {
	return func(a *App) { a.exportDir = dir }
}

// App is the root Bubble Tea model.
type App struct {
	ctx       context.Context
	dash      *dashboard.Store
	inbox     *inbox.Store
	identity  session.Identity
	log       *slog.Logger
	exportDir string
	width     int
	height    int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	overview   overviewModel
	categories []categoryModel
	messages   messagesModel
	contact    contactModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(ctx context.Context, d *dashboard.Store, in *inbox.Store, opts ...Option) App {
	h := help.New()
	h.ShowAll = false

	a := App{
		ctx:        ctx,
		dash:       d,
		inbox:      in,
		identity:   d.Identity(),
		log:        slog.New(slog.DiscardHandler),
		activeView: viewOverview,
		overview:   newOverviewModel(d, in),
		messages:   newMessagesModel(ctx, in),
		contact:    newContactModel(ctx, in),
		help:       h,
	}
	for _, c := range metrics.Categories() {
		a.categories = append(a.categories, newCategoryModel(ctx, d, c))
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.exportDir == "" {
		a.exportDir, _ = os.UserHomeDir()
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		loadDashboard(a.ctx, a.dash),
		fetchInbox(a.ctx, a.inbox),
	)
}

func loadDashboard(ctx context.Context, d *dashboard.Store) tea.Cmd {
	return func() tea.Msg {
		_ = d.Load(ctx)
		return dashboardLoadedMsg{}
	}
}

func fetchInbox(ctx context.Context, in *inbox.Store) tea.Cmd {
	return func() tea.Msg {
		return inboxFetchedMsg{err: in.Fetch(ctx)}
	}
}

// viewNames are the tab titles for the session's role.
func (a App) viewNames() []string {
	last := "Contact"
	if a.identity.IsAdmin() {
		last = "Messages"
		if a.inbox.Fetched() {
			if n := a.inbox.UnreadCount(); n > 0 {
				last = fmt.Sprintf("Messages (%d)", n)
			}
		}
	}
	return []string{"Overview", "Energy", "Water", "Waste", last}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.overview.setSize(a.width, contentHeight)
		for i := range a.categories {
			a.categories[i].setSize(a.width, contentHeight)
		}
		a.messages.setSize(a.width, contentHeight)
		a.contact.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			a.dash.Retire()
			a.inbox.Retire()
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewOverview), nil
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewEnergy), nil
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewWater), nil
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewWaste), nil
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewInbox), nil
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewCount), nil
		}

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case dashboardLoadedMsg:
		a.refreshCategories()
		if a.dash.FromRemote() {
			a.setStatus("Dashboard loaded", false)
		}
		return a, nil

	case dashboardChangedMsg:
		a.refreshCategories()
		switch {
		case errors.Is(msg.err, remote.ErrUnavailable):
			a.log.Warn("dashboard edit not saved", "err", msg.err)
			a.setStatus("Saved locally; server unavailable", true)
		case msg.err != nil:
			a.setStatus(fmt.Sprintf("Error: %v", msg.err), true)
		default:
			a.setStatus(msg.text, false)
		}
		return a, nil

	case inboxFetchedMsg:
		a.refreshInbox()
		if msg.err != nil {
			a.setStatus("Could not load messages", true)
		}
		return a, nil

	case inboxChangedMsg:
		a.refreshInbox()
		switch {
		case msg.err != nil:
			a.setStatus(fmt.Sprintf("Error: %v", msg.err), true)
		case msg.text != "":
			a.setStatus(msg.text, false)
		}
		return a, nil

	case exportDoneMsg:
		a.setStatus("Exported to "+msg.path, false)
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a *App) setStatus(text string, isError bool) {
	a.status = text
	a.statusErr = isError
}

func (a App) switchTo(v viewState) App {
	a.activeView = v
	if _, ok := v.category(); ok {
		a.categories[v-viewEnergy].refresh()
	}
	if v == viewInbox {
		a.refreshInbox()
	}
	return a
}

func (a *App) refreshCategories() {
	for i := range a.categories {
		a.categories[i].refresh()
	}
}

func (a *App) refreshInbox() {
	if a.identity.IsAdmin() {
		a.messages.refresh()
	} else {
		a.contact.refresh()
	}
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewEnergy, viewWater, viewWaste:
		i := a.activeView - viewEnergy
		a.categories[i], cmd = a.categories[i].update(msg)
	case viewInbox:
		if a.identity.IsAdmin() {
			a.messages, cmd = a.messages.update(msg)
		} else {
			a.contact, cmd = a.contact.update(msg)
		}
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewEnergy, viewWater, viewWaste:
		return a.categories[a.activeView-viewEnergy].formActive
	case viewInbox:
		if a.identity.IsAdmin() {
			return a.messages.formActive
		}
		return a.contact.formActive
	}
	return false
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewOverview:
		content = a.overview.view()
	case viewEnergy, viewWater, viewWaste:
		content = a.categories[a.activeView-viewEnergy].view()
	case viewInbox:
		if a.identity.IsAdmin() {
			content = a.messages.view()
		} else {
			content = a.contact.view()
		}
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range a.viewNames() {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("greencampus")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		if a.statusErr {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	score := metrics.ScoreFor(a.dash.Snapshot())
	scoreInfo := scoreStyleFor(score).Render(fmt.Sprintf(" ● %d", score))

	left := footerStyle.Render(helpView)
	right := scoreInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV", "JSON"}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	snap := a.dash.Snapshot()
	dir := a.exportDir
	return func() tea.Msg {
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(dir, fmt.Sprintf("greencampus-export-%s.csv", dateStr))
			if err := export.ToCSV(snap, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(dir, fmt.Sprintf("greencampus-export-%s.json", dateStr))
			if err := export.ToJSON(snap, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}

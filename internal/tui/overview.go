package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/greencampus/internal/dashboard"
	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
)

type overviewModel struct {
	dash   *dashboard.Store
	inbox  *inbox.Store
	width  int
	height int
}

func newOverviewModel(d *dashboard.Store, in *inbox.Store) overviewModel {
	return overviewModel{dash: d, inbox: in}
}

func (o *overviewModel) setSize(w, h int) {
	o.width = w
	o.height = h
}

func (o overviewModel) view() string {
	if o.width < 20 {
		return "Terminal too small"
	}

	contentWidth := o.width - 4
	snap := o.dash.Snapshot()

	return lipgloss.JoinVertical(lipgloss.Left,
		o.renderScorePanel(contentWidth, snap),
		o.renderCategoryPanel(contentWidth, snap),
		o.renderStatusPanel(contentWidth),
	)
}

func (o overviewModel) renderScorePanel(w int, snap metrics.Snapshot) string {
	score := metrics.ScoreFor(snap)
	style := scoreStyleFor(score)

	content := lipgloss.JoinVertical(lipgloss.Center,
		style.Width(w-6).Render(fmt.Sprintf("%d / 100", score)),
		style.UnsetBold().Render(metrics.Rating(score)),
		mutedStyle.Render("Green score"),
	)
	return activePanelStyle.Width(w).Render(content)
}

func (o overviewModel) renderCategoryPanel(w int, snap metrics.Snapshot) string {
	rows := []string{
		titleStyle.Render("This period vs last"),
		mutedStyle.Render(fmt.Sprintf("  %-8s %14s %14s %10s", "", "Current", "Previous", "Change")),
	}
	for _, c := range metrics.Categories() {
		agg := metrics.Aggregate(snap.Series(c))
		dot := lipgloss.NewStyle().Foreground(categoryColors[string(c)]).Render("●")
		rows = append(rows, fmt.Sprintf("%s %-8s %14s %14s %10s",
			dot,
			c.Title(),
			formatAmount(agg.CurrentTotal)+" "+c.Unit(),
			formatAmount(agg.PreviousTotal)+" "+c.Unit(),
			changeStyled(agg.Change),
		))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (o overviewModel) renderStatusPanel(w int) string {
	id := o.dash.Identity()
	var rows []string
	rows = append(rows, titleStyle.Render("Session"))
	rows = append(rows, fmt.Sprintf("  %s  %s", highlightStyle.Render(string(id.Role)), id.Email))

	source := mutedStyle.Render("  showing default data")
	switch {
	case !o.dash.Loaded():
		source = warningStyle.Render("  loading…")
	case o.dash.FromRemote():
		source = successStyle.Render("  synced with server")
	}
	if o.dash.Dirty() && id.IsAdmin() {
		source = warningStyle.Render("  unsaved changes")
	}
	rows = append(rows, source)

	if id.IsAdmin() && o.inbox != nil && o.inbox.Fetched() {
		if n := o.inbox.UnreadCount(); n > 0 {
			rows = append(rows, accentStyle.Render(fmt.Sprintf("  %d unread message(s)", n)))
		}
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

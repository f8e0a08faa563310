package tui

import (
	"strconv"
	"strings"
	"time"

	"github.com/sadopc/greencampus/internal/metrics"
)

// viewState represents the currently active view.
type viewState int

const (
	viewOverview viewState = iota
	viewEnergy
	viewWater
	viewWaste
	viewInbox
)

const viewCount = 5

// category maps a category view to its metrics category.
func (v viewState) category() (metrics.Category, bool) {
	switch v {
	case viewEnergy:
		return metrics.Energy, true
	case viewWater:
		return metrics.Water, true
	case viewWaste:
		return metrics.Waste, true
	}
	return "", false
}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type exportDoneMsg struct {
	path string
}

// dashboardLoadedMsg arrives once the initial remote load has settled.
type dashboardLoadedMsg struct{}

// dashboardChangedMsg reports the outcome of an edit. The edit is kept
// locally even when err is set.
type dashboardChangedMsg struct {
	text string
	err  error
}

type inboxFetchedMsg struct {
	err error
}

type inboxChangedMsg struct {
	text string
	err  error
}

// --- Helpers ---

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatChange(ch metrics.Change) string {
	if !ch.Defined {
		return "n/a"
	}
	s := strconv.FormatFloat(ch.Percent, 'f', 2, 64) + "%"
	if ch.Percent > 0 {
		s = "+" + s
	}
	return s
}

// changeStyled renders a change green when consumption fell and red when it
// rose.
func changeStyled(ch metrics.Change) string {
	s := formatChange(ch)
	switch {
	case !ch.Defined:
		return mutedStyle.Render(s)
	case ch.Percent > 0:
		return errorStyle.Render(s)
	case ch.Percent < 0:
		return successStyle.Render(s)
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/greencampus/internal/dashboard"
	"github.com/sadopc/greencampus/internal/metrics"
)

const (
	formAdd  = "add"
	formEdit = "edit"
)

// categoryModel shows one category's weekly records as a current vs previous
// chart and table. Admins edit the records in place.
type categoryModel struct {
	ctx      context.Context
	dash     *dashboard.Store
	category metrics.Category
	width    int
	height   int

	series metrics.Series
	cursor int
	chart  barchart.Model

	formActive bool
	form       *huh.Form
	formType   string

	// Form field pointers (survive value copies)
	formPeriod   *string
	formCurrent  *string
	formPrevious *string

	editingIndex int
}

func newCategoryModel(ctx context.Context, d *dashboard.Store, c metrics.Category) categoryModel {
	period, cur, prev := "", "", ""
	m := categoryModel{
		ctx:          ctx,
		dash:         d,
		category:     c,
		chart:        barchart.New(60, 12),
		formPeriod:   &period,
		formCurrent:  &cur,
		formPrevious: &prev,
	}
	m.refresh()
	return m
}

func (c *categoryModel) setSize(w, h int) {
	c.width = w
	c.height = h
	c.buildChart()
}

// refresh re-reads the series from the store and redraws the chart.
func (c *categoryModel) refresh() {
	c.series = c.dash.Series(c.category)
	if c.cursor >= len(c.series) {
		c.cursor = max(0, len(c.series)-1)
	}
	c.buildChart()
}

func (c categoryModel) canEdit() bool {
	return c.dash.Identity().IsAdmin()
}

func (c categoryModel) update(msg tea.Msg) (categoryModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if c.cursor > 0 {
				c.cursor--
			}
		case key.Matches(msg, keys.Down):
			if c.cursor < len(c.series)-1 {
				c.cursor++
			}
		case key.Matches(msg, keys.New):
			if c.canEdit() {
				return c.showRecordForm(formAdd)
			}
			return c, readOnly()
		case key.Matches(msg, keys.Edit):
			if !c.canEdit() {
				return c, readOnly()
			}
			if len(c.series) > 0 {
				return c.showRecordForm(formEdit)
			}
		case key.Matches(msg, keys.Delete):
			if !c.canEdit() {
				return c, readOnly()
			}
			if len(c.series) > 0 {
				return c, c.deleteRecord(c.cursor, c.series[c.cursor].Period)
			}
		}
	}
	return c, nil
}

func readOnly() tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: "Read-only: only admins can edit records", isError: true}
	}
}

func (c categoryModel) showRecordForm(kind string) (categoryModel, tea.Cmd) {
	c.formType = kind
	if kind == formEdit {
		r := c.series[c.cursor]
		c.editingIndex = c.cursor
		*c.formPeriod = r.Period
		*c.formCurrent = formatAmount(r.Current)
		*c.formPrevious = formatAmount(r.Previous)
	} else {
		*c.formPeriod = fmt.Sprintf("Week %d", len(c.series)+1)
		*c.formCurrent = ""
		*c.formPrevious = ""
	}

	unit := c.category.Unit()
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Period").Value(c.formPeriod).Validate(requireText),
			huh.NewInput().Title("Current (" + unit + ")").Value(c.formCurrent).Validate(validAmount),
			huh.NewInput().Title("Previous (" + unit + ")").Value(c.formPrevious).Validate(validAmount),
		),
	).WithShowHelp(true).WithShowErrors(true)

	c.formActive = true
	return c, c.form.Init()
}

func requireText(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func validAmount(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if v < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func (c categoryModel) updateForm(msg tea.Msg) (categoryModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			c.formActive = false
			c.form = nil
			return c, nil
		}
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	switch c.form.State {
	case huh.StateAborted:
		c.formActive = false
		c.form = nil
		return c, nil
	case huh.StateCompleted:
		c.formActive = false
		c.form = nil
		r, err := metrics.ParseRecord(*c.formPeriod, *c.formCurrent, *c.formPrevious)
		if err != nil {
			return c, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Invalid record: %v", err), isError: true}
			}
		}
		if c.formType == formEdit {
			return c, c.saveRecord(c.editingIndex, r)
		}
		c.cursor = len(c.series)
		return c, c.saveRecord(-1, r)
	}

	return c, cmd
}

// saveRecord appends r when i is negative, otherwise replaces record i.
func (c categoryModel) saveRecord(i int, r metrics.WeeklyRecord) tea.Cmd {
	d, cat, ctx := c.dash, c.category, c.ctx
	return func() tea.Msg {
		var err error
		verb := "Updated"
		if i < 0 {
			verb = "Added"
			err = d.AddRecord(ctx, cat, r)
		} else {
			err = d.UpdateRecord(ctx, cat, i, r)
		}
		return dashboardChangedMsg{text: fmt.Sprintf("%s %s %q", verb, strings.ToLower(cat.Title()), r.Period), err: err}
	}
}

func (c categoryModel) deleteRecord(i int, period string) tea.Cmd {
	d, cat, ctx := c.dash, c.category, c.ctx
	return func() tea.Msg {
		err := d.DeleteRecord(ctx, cat, i)
		return dashboardChangedMsg{text: fmt.Sprintf("Deleted %s %q", strings.ToLower(cat.Title()), period), err: err}
	}
}

func (c *categoryModel) buildChart() {
	chartWidth := c.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 10
	if c.height > 36 {
		chartHeight = 14
	}

	c.chart = barchart.New(chartWidth, chartHeight)

	currentStyle := lipgloss.NewStyle().Foreground(categoryColors[string(c.category)])
	previousStyle := lipgloss.NewStyle().Foreground(colorSubtle)

	var bars []barchart.BarData
	for _, r := range c.series {
		bars = append(bars,
			barchart.BarData{
				Label:  r.Period,
				Values: []barchart.BarValue{{Name: "Current", Value: r.Current, Style: currentStyle}},
			},
			barchart.BarData{
				Label:  "prev",
				Values: []barchart.BarValue{{Name: "Previous", Value: r.Previous, Style: previousStyle}},
			},
		)
	}
	if len(bars) == 0 {
		return
	}

	c.chart.PushAll(bars)
	c.chart.Draw()
}

func (c categoryModel) view() string {
	w := c.width - 4

	if c.formActive && c.form != nil {
		title := titleStyle.Render("New " + c.category.Title() + " Record")
		if c.formType == formEdit {
			title = titleStyle.Render("Edit " + c.category.Title() + " Record")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", c.form.View())
		return panelStyle.Width(w).Render(content)
	}

	agg := metrics.Aggregate(c.series)
	unit := c.category.Unit()
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render(c.category.Title()),
		"  ",
		highlightStyle.Render(formatAmount(agg.CurrentTotal)+" "+unit),
		mutedStyle.Render(" vs "+formatAmount(agg.PreviousTotal)+" "+unit+"  "),
		changeStyled(agg.Change),
	)

	chartView := mutedStyle.Render("  No records")
	if len(c.series) > 0 {
		chartView = c.chart.View()
	}

	nav := "  ↑/↓: select"
	if c.canEdit() {
		nav += "  n: add  e: edit  d: delete"
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", chartView, "", c.renderLegend(), "", c.renderTable(w), "", mutedStyle.Render(nav),
		),
	)
}

func (c categoryModel) renderLegend() string {
	cur := lipgloss.NewStyle().Foreground(categoryColors[string(c.category)]).Render("■")
	prev := lipgloss.NewStyle().Foreground(colorSubtle).Render("■")
	return fmt.Sprintf("  %s current  %s previous", cur, prev)
}

func (c categoryModel) renderTable(w int) string {
	if len(c.series) == 0 {
		return mutedStyle.Render("  No data for this category")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-16s %12s %12s %10s", "Period", "Current", "Previous", "Change")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 54))))

	for i, r := range c.series {
		cursor := "  "
		style := normalItemStyle
		if i == c.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		line := style.Render(fmt.Sprintf("%s%-16s %12s %12s ",
			cursor, truncate(r.Period, 16), formatAmount(r.Current), formatAmount(r.Previous)))
		rows = append(rows, line+fmt.Sprintf("%10s", changeStyled(metrics.RowChange(r))))
	}

	return strings.Join(rows, "\n")
}

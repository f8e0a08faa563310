package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/greencampus/internal/inbox"
)

// contactModel lets a non-admin write to the administrators and follow the
// threads they started.
type contactModel struct {
	ctx    context.Context
	inbox  *inbox.Store
	width  int
	height int

	threads []inbox.Message
	cursor  int
	viewing bool

	formActive  bool
	form        *huh.Form
	formName    *string
	formEmail   *string
	formSubject *string
	formBody    *string
}

func newContactModel(ctx context.Context, in *inbox.Store) contactModel {
	name, email, subject, body := "", "", "", ""
	return contactModel{
		ctx:         ctx,
		inbox:       in,
		formName:    &name,
		formEmail:   &email,
		formSubject: &subject,
		formBody:    &body,
	}
}

func (c *contactModel) setSize(w, h int) {
	c.width = w
	c.height = h
}

func (c *contactModel) refresh() {
	c.threads = c.inbox.ListFor(c.inbox.Identity())
	if c.cursor >= len(c.threads) {
		c.cursor = max(0, len(c.threads)-1)
	}
	if len(c.threads) == 0 {
		c.viewing = false
	}
}

func (c contactModel) update(msg tea.Msg) (contactModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Back):
		c.viewing = false
	case key.Matches(keyMsg, keys.Up):
		if !c.viewing && c.cursor > 0 {
			c.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if !c.viewing && c.cursor < len(c.threads)-1 {
			c.cursor++
		}
	case key.Matches(keyMsg, keys.Enter):
		if len(c.threads) > 0 {
			c.viewing = true
		}
	case key.Matches(keyMsg, keys.New):
		return c.showMessageForm()
	case key.Matches(keyMsg, keys.Refresh):
		return c, fetchInbox(c.ctx, c.inbox)
	}
	return c, nil
}

func (c contactModel) showMessageForm() (contactModel, tea.Cmd) {
	*c.formName = ""
	*c.formEmail = c.inbox.Identity().Email
	*c.formSubject = ""
	*c.formBody = ""

	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(c.formName).Validate(requireText),
			huh.NewInput().Title("Email").Value(c.formEmail).Validate(requireText),
			huh.NewInput().Title("Subject").Value(c.formSubject).Validate(requireText),
			huh.NewText().Title("Message").Lines(5).Value(c.formBody).Validate(requireText),
		),
	).WithShowHelp(true).WithShowErrors(true)

	c.formActive = true
	return c, c.form.Init()
}

func (c contactModel) updateForm(msg tea.Msg) (contactModel, tea.Cmd) {
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
		return c, c.send(inbox.NewMessage{
			UserName:  *c.formName,
			UserEmail: *c.formEmail,
			Subject:   *c.formSubject,
			Body:      *c.formBody,
		})
	}
	return c, cmd
}

func (c contactModel) send(msg inbox.NewMessage) tea.Cmd {
	in, ctx := c.inbox, c.ctx
	return func() tea.Msg {
		created, err := in.Send(ctx, msg)
		if err != nil {
			return inboxChangedMsg{err: err}
		}
		return inboxChangedMsg{text: fmt.Sprintf("Message %q sent", created.Subject)}
	}
}

func (c contactModel) view() string {
	w := c.width - 4

	if c.formActive && c.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Contact the administrators"), "", c.form.View())
		return panelStyle.Width(w).Render(content)
	}
	if c.viewing && c.cursor < len(c.threads) {
		return renderThread(w, c.threads[c.cursor], "  esc: back")
	}

	title := titleStyle.Render("Your messages")
	if len(c.threads) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No messages yet. Press n to write one."),
		))
	}

	var rows []string
	rows = append(rows, title, "")
	for i, t := range c.threads {
		cursor := "  "
		style := normalItemStyle
		if i == c.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		replies := ""
		if n := len(t.Replies); n > 0 {
			replies = successStyle.Render(fmt.Sprintf("  %d repl%s", n, plural(n, "y", "ies")))
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-32s %s", cursor, truncate(t.Subject, 32), formatTime(t.CreatedAt)))+replies)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new message  enter: open  R: refresh"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

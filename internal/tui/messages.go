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

// messagesModel is the admin inbox: every thread, with read, reply and
// delete actions.
type messagesModel struct {
	ctx    context.Context
	inbox  *inbox.Store
	width  int
	height int

	messages []inbox.Message
	cursor   int
	viewing  bool // true = viewing the selected thread

	formActive bool
	form       *huh.Form
	formReply  *string
	replyingID string
}

func newMessagesModel(ctx context.Context, in *inbox.Store) messagesModel {
	reply := ""
	return messagesModel{ctx: ctx, inbox: in, formReply: &reply}
}

func (m *messagesModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

// refresh re-reads the visible threads from the store.
func (m *messagesModel) refresh() {
	m.messages = m.inbox.ListFor(m.inbox.Identity())
	if m.cursor >= len(m.messages) {
		m.cursor = max(0, len(m.messages)-1)
	}
	if len(m.messages) == 0 {
		m.viewing = false
	}
}

func (m messagesModel) selected() (inbox.Message, bool) {
	if m.cursor < len(m.messages) {
		return m.messages[m.cursor], true
	}
	return inbox.Message{}, false
}

func (m messagesModel) update(msg tea.Msg) (messagesModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	sel, hasSel := m.selected()
	switch {
	case key.Matches(keyMsg, keys.Back):
		m.viewing = false
	case key.Matches(keyMsg, keys.Up):
		if !m.viewing && m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if !m.viewing && m.cursor < len(m.messages)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, keys.Enter):
		if hasSel {
			m.viewing = true
			if sel.Status == inbox.StatusUnread {
				return m, m.markRead(sel.ID)
			}
		}
	case key.Matches(keyMsg, keys.Reply):
		if hasSel {
			return m.showReplyForm(sel)
		}
	case key.Matches(keyMsg, keys.Delete):
		if hasSel {
			m.viewing = false
			return m, m.deleteMessage(sel.ID, sel.Subject)
		}
	case key.Matches(keyMsg, keys.Refresh):
		return m, fetchInbox(m.ctx, m.inbox)
	}
	return m, nil
}

func (m messagesModel) showReplyForm(sel inbox.Message) (messagesModel, tea.Cmd) {
	*m.formReply = ""
	m.replyingID = sel.ID

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Reply to " + sel.UserName).
				Description("Re: " + sel.Subject).
				Lines(5).
				Value(m.formReply).
				Validate(requireText),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m messagesModel) updateForm(msg tea.Msg) (messagesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.formActive = false
		m.form = nil
		return m, nil
	case huh.StateCompleted:
		m.formActive = false
		m.form = nil
		return m, m.reply(m.replyingID, *m.formReply)
	}
	return m, cmd
}

func (m messagesModel) markRead(id string) tea.Cmd {
	in, ctx := m.inbox, m.ctx
	return func() tea.Msg {
		return inboxChangedMsg{err: in.MarkRead(ctx, id)}
	}
}

func (m messagesModel) reply(id, text string) tea.Cmd {
	in, ctx := m.inbox, m.ctx
	return func() tea.Msg {
		return inboxChangedMsg{text: "Reply sent", err: in.Reply(ctx, id, text)}
	}
}

func (m messagesModel) deleteMessage(id, subject string) tea.Cmd {
	in, ctx := m.inbox, m.ctx
	return func() tea.Msg {
		return inboxChangedMsg{text: fmt.Sprintf("Deleted %q", subject), err: in.Delete(ctx, id)}
	}
}

func (m messagesModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Reply"), "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}
	if m.viewing {
		if sel, ok := m.selected(); ok {
			return renderThread(w, sel, "  r: reply  d: delete  esc: back")
		}
	}
	return m.renderList(w)
}

func (m messagesModel) renderList(w int) string {
	title := titleStyle.Render("Messages")
	if !m.inbox.Fetched() {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("Messages not loaded. Press R to retry."),
		))
	}
	if len(m.messages) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No messages."),
		))
	}

	var rows []string
	rows = append(rows, title, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-20s %-28s %-8s %s", "", "From", "Subject", "Status", "Received")))

	for i, msg := range m.messages {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %-20s %-28s %-8s %s",
			cursor,
			statusDot(msg.Status),
			truncate(msg.UserName, 20),
			truncate(msg.Subject, 28),
			msg.Status,
			formatTime(msg.CreatedAt),
		)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: open  r: reply  d: delete  R: refresh"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func statusDot(s inbox.Status) string {
	switch s {
	case inbox.StatusUnread:
		return accentStyle.Render("●")
	case inbox.StatusReplied:
		return successStyle.Render("✓")
	}
	return mutedStyle.Render("○")
}

// renderThread shows a message followed by its replies in order.
func renderThread(w int, msg inbox.Message, hint string) string {
	var rows []string
	rows = append(rows, titleStyle.Render(msg.Subject))
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("%s <%s>  %s  %s",
		msg.UserName, msg.UserEmail, formatTime(msg.CreatedAt), msg.Status)))
	rows = append(rows, "")
	rows = append(rows, messageBodyStyle.Width(max(w-8, 10)).Render(msg.Body))

	for _, r := range msg.Replies {
		rows = append(rows, "")
		header := highlightStyle.Render(r.Sender) + mutedStyle.Render("  "+formatTime(r.Timestamp))
		rows = append(rows, header)
		rows = append(rows, adminReplyStyle.Width(max(w-8, 10)).Render(r.Text))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(hint))
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/greencampus/internal/inbox"
)

const messageColumns = `id, user_name, user_email, subject, body, status, created_at`

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SendMessage stores a new unread message and returns it with its id.
func (s *Store) SendMessage(ctx context.Context, msg inbox.NewMessage) (inbox.Message, error) {
	if err := msg.Validate(); err != nil {
		return inbox.Message{}, err
	}
	m := inbox.Message{
		ID:        uuid.NewString(),
		UserName:  msg.UserName,
		UserEmail: msg.UserEmail,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    inbox.StatusUnread,
		CreatedAt: time.Now().UTC(),
		Replies:   []inbox.Reply{},
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserName, m.UserEmail, m.Subject, m.Body, string(m.Status), m.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return inbox.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (inbox.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return inbox.Message{}, fmt.Errorf("get message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return inbox.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	replies, err := s.replies(ctx, []string{id})
	if err != nil {
		return inbox.Message{}, err
	}
	m.Replies = orEmpty(replies[id])
	return m, nil
}

// FetchMessages lists every message, newest first.
func (s *Store) FetchMessages(ctx context.Context) ([]inbox.Message, error) {
	return s.listMessages(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC, rowid DESC`)
}

// FetchMessagesFrom lists the messages sent from email, newest first.
func (s *Store) FetchMessagesFrom(ctx context.Context, email string) ([]inbox.Message, error) {
	return s.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE user_email = ? ORDER BY created_at DESC, rowid DESC`, email)
}

func (s *Store) listMessages(ctx context.Context, query string, args ...any) ([]inbox.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []inbox.Message{}
	var ids []string
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	replies, err := s.replies(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Replies = orEmpty(replies[msgs[i].ID])
	}
	return msgs, nil
}

// ReplyToMessage appends an admin reply and marks the message replied.
func (s *Store) ReplyToMessage(ctx context.Context, id, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE messages SET status = ? WHERE id = ?`, string(inbox.StatusReplied), id)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reply to message %s: %w", id, ErrNotFound)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO message_replies (message_id, sender, text, created_at) VALUES (?, ?, ?, ?)`,
		id, inbox.AdminSender, text, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return tx.Commit()
}

// MarkMessageRead moves an unread message to read; read and replied
// messages are left as they are.
func (s *Store) MarkMessageRead(ctx context.Context, id string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ? AND status = ?`,
		string(inbox.StatusRead), id, string(inbox.StatusUnread),
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete message %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return err
}

func (s *Store) replies(ctx context.Context, ids []string) (map[string][]inbox.Reply, error) {
	out := make(map[string][]inbox.Reply, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, sender, text, created_at FROM message_replies ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for rows.Next() {
		var msgID, createdAt string
		var r inbox.Reply
		if err := rows.Scan(&msgID, &r.Sender, &r.Text, &createdAt); err != nil {
			return nil, err
		}
		if !want[msgID] {
			continue
		}
		r.Timestamp, _ = time.Parse(timeLayout, createdAt)
		out[msgID] = append(out[msgID], r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (inbox.Message, error) {
	var m inbox.Message
	var status, createdAt string
	if err := sc.Scan(&m.ID, &m.UserName, &m.UserEmail, &m.Subject, &m.Body, &status, &createdAt); err != nil {
		return inbox.Message{}, err
	}
	m.Status = inbox.Status(status)
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return m, nil
}

func orEmpty(r []inbox.Reply) []inbox.Reply {
	if r == nil {
		return []inbox.Reply{}
	}
	return r
}

// Package inbox owns the contact message threads and applies admin actions
// to them only after the persistence service has confirmed each one.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/greencampus/internal/remote"
	"github.com/sadopc/greencampus/internal/session"
)

// Remote is the persistence service as seen by the inbox. The service is
// authoritative for ordering and id assignment.
type Remote interface {
	FetchMessages(ctx context.Context) ([]Message, error)
	SendMessage(ctx context.Context, msg NewMessage) (Message, error)
	ReplyToMessage(ctx context.Context, id, text string) error
	MarkMessageRead(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
}

var (
	ErrEmptyReply     = errors.New("reply text is empty")
	ErrNotFound       = errors.New("message not found")
	ErrNotAdmin       = errors.New("admin role required")
	ErrInvalidMessage = errors.New("invalid message")
)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the source of reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds the message collection in the order of the last fetch.
// Every mutation calls the remote first and touches the collection only
// once the remote has succeeded.
type Store struct {
	remote   Remote
	identity session.Identity
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	messages []Message
	fetched  bool
	retired  bool
}

func New(r Remote, id session.Identity, opts ...Option) *Store {
	s := &Store{
		remote:   r,
		identity: id,
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch replaces the collection with the remote list.
func (s *Store) Fetch(ctx context.Context) error {
	msgs, err := s.remote.FetchMessages(ctx)
	if err != nil {
		s.log.Warn("fetch messages failed", "err", err)
		return remote.Wrap("fetch messages", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		s.log.Debug("inbox retired; dropping fetch result")
		return nil
	}
	s.messages = make([]Message, len(msgs))
	for i, m := range msgs {
		s.messages[i] = m.Clone()
	}
	s.fetched = true
	return nil
}

// Send submits a new message on behalf of any identity. The created message
// goes first since the service lists newest first.
func (s *Store) Send(ctx context.Context, msg NewMessage) (Message, error) {
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	created, err := s.remote.SendMessage(ctx, msg)
	if err != nil {
		s.log.Warn("send message failed", "err", err)
		return Message{}, remote.Wrap("send message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.retired {
		s.messages = append([]Message{created.Clone()}, s.messages...)
	}
	return created.Clone(), nil
}

// Reply appends an admin reply and marks the thread replied, whatever its
// previous status.
func (s *Store) Reply(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyReply
	}
	if err := s.checkAdmin(id); err != nil {
		return err
	}
	if err := s.remote.ReplyToMessage(ctx, id, text); err != nil {
		s.log.Warn("reply failed", "id", id, "err", err)
		return remote.Wrap("reply to message", err)
	}

	reply := Reply{Sender: AdminSender, Text: text, Timestamp: s.now()}
	s.commit(id, func(m *Message) {
		m.Replies = append(m.Replies, reply)
		m.Status = StatusReplied
	})
	return nil
}

// MarkRead moves an unread message to read. Messages already read or
// replied are left alone without contacting the remote.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	if err := s.checkAdmin(id); err != nil {
		return err
	}
	m, _ := s.Get(id)
	if m.Status != StatusUnread {
		return nil
	}
	if err := s.remote.MarkMessageRead(ctx, id); err != nil {
		s.log.Warn("mark read failed", "id", id, "err", err)
		return remote.Wrap("mark message read", err)
	}

	s.commit(id, func(m *Message) {
		if m.Status == StatusUnread {
			m.Status = StatusRead
		}
	})
	return nil
}

// Delete removes a message entirely.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkAdmin(id); err != nil {
		return err
	}
	if err := s.remote.DeleteMessage(ctx, id); err != nil {
		s.log.Warn("delete failed", "id", id, "err", err)
		return remote.Wrap("delete message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return nil
	}
	if i := s.indexOf(id); i >= 0 {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
	return nil
}

func (s *Store) checkAdmin(id string) error {
	if !s.identity.IsAdmin() {
		return ErrNotAdmin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// commit applies fn to the message with id if it is still present.
func (s *Store) commit(id string, fn func(*Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return
	}
	if i := s.indexOf(id); i >= 0 {
		fn(&s.messages[i])
	}
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// ListFor returns the messages visible to id: all of them for an admin,
// otherwise those whose sender address matches.
func (s *Store) ListFor(id session.Identity) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if id.IsAdmin() || (id.Email != "" && m.UserEmail == id.Email) {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (s *Store) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.messages[i].Clone(), true
	}
	return Message{}, false
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.Status == StatusUnread {
			n++
		}
	}
	return n
}

// Fetched reports whether a fetch has ever succeeded.
func (s *Store) Fetched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

func (s *Store) Identity() session.Identity { return s.identity }

// Retire marks the store as no longer displayed; late remote results are
// dropped instead of applied.
func (s *Store) Retire() {
	s.mu.Lock()
	s.retired = true
	s.mu.Unlock()
}

package inbox

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sadopc/greencampus/internal/validation"
)

type Status string

const (
	StatusUnread  Status = "unread"
	StatusRead    Status = "read"
	StatusReplied Status = "replied"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusUnread, StatusRead, StatusReplied:
		return st, nil
	}
	return "", fmt.Errorf("unknown message status %q", s)
}

// AdminSender is the sender recorded on every admin reply.
const AdminSender = "Admin"

type Reply struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is one contact thread: the original submission plus its replies.
type Message struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"message"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Replies   []Reply   `json:"replies"`
}

func (m Message) Clone() Message {
	out := m
	if m.Replies != nil {
		out.Replies = make([]Reply, len(m.Replies))
		copy(out.Replies, m.Replies)
	}
	return out
}

// NewMessage is what a sender submits.
type NewMessage struct {
	UserName  string `json:"user_name" validate:"required"`
	UserEmail string `json:"user_email" validate:"required,email"`
	Subject   string `json:"subject" validate:"required"`
	Body      string `json:"message" validate:"required"`
}

var validate = validation.New()

// Validate trims every field and checks the submission is complete.
func (n *NewMessage) Validate() error {
	n.UserName = strings.TrimSpace(n.UserName)
	n.UserEmail = strings.TrimSpace(n.UserEmail)
	n.Subject = strings.TrimSpace(n.Subject)
	n.Body = strings.TrimSpace(n.Body)
	if err := validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			if f.Tag() == "email" {
				return fmt.Errorf("%w: %q is not a valid e-mail address", ErrInvalidMessage, n.UserEmail)
			}
			return fmt.Errorf("%w: %s is required", ErrInvalidMessage, f.Field())
		}
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

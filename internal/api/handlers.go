package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/notify"
	"github.com/sadopc/greencampus/internal/store"
	"github.com/sadopc/greencampus/internal/validation"
)

const maxBodyBytes = 1 << 20

// notifyTimeout bounds the reply e-mail so a stalled relay cannot hold the
// request open.
var notifyTimeout = 15 * time.Second

var validate = validation.New()

type statusMessage struct {
	Message string `json:"message"`
}

type dashboardResponse struct {
	Dashboard *metrics.Snapshot `json:"dashboard"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
	UpdatedBy string            `json:"updated_by,omitempty"`
}

type sendResponse struct {
	Message   string        `json:"message"`
	MessageID string        `json:"message_id"`
	Data      inbox.Message `json:"data"`
}

type messagesResponse struct {
	Messages []inbox.Message `json:"messages"`
}

type messageResponse struct {
	Message inbox.Message `json:"message"`
}

type replyRequest struct {
	ReplyText string `json:"reply_text" validate:"required"`
}

type replyResponse struct {
	Message   string `json:"message"`
	EmailSent bool   `json:"email_sent"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusMessage{Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ts": time.Now().UTC()})
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := s.backend.FetchSnapshot(r.Context())
	if err != nil {
		s.log.Error("fetch dashboard", "err", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving dashboard")
		return
	}
	resp := dashboardResponse{}
	if ok {
		resp.Dashboard = &snap
		if info, err := s.backend.DashboardInfo(r.Context()); err == nil {
			resp.UpdatedAt = &info.UpdatedAt
			resp.UpdatedBy = info.UpdatedBy
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) putDashboard(w http.ResponseWriter, r *http.Request) {
	var snap metrics.Snapshot
	if err := decode(w, r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dashboard payload")
		return
	}
	id, _ := identityFrom(r.Context())
	if err := s.backend.SaveSnapshotAs(r.Context(), snap, id.Email); err != nil {
		var verr *metrics.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("save dashboard", "err", err)
		writeError(w, http.StatusInternalServerError, "Error updating dashboard")
		return
	}
	s.log.Info("dashboard updated", "by", id.Email)
	writeJSON(w, http.StatusOK, statusMessage{Message: "Dashboard updated successfully"})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req inbox.NewMessage
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message payload")
		return
	}
	m, err := s.backend.SendMessage(r.Context(), req)
	if err != nil {
		if errors.Is(err, inbox.ErrInvalidMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("send message", "err", err)
		writeError(w, http.StatusInternalServerError, "Error sending message")
		return
	}
	s.log.Info("message received", "id", m.ID, "from", m.UserEmail)
	writeJSON(w, http.StatusCreated, sendResponse{
		Message:   "Message sent successfully",
		MessageID: m.ID,
		Data:      m,
	})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var (
		msgs []inbox.Message
		err  error
	)
	if id.IsAdmin() {
		msgs, err = s.backend.FetchMessages(r.Context())
	} else {
		msgs, err = s.backend.FetchMessagesFrom(r.Context(), id.Email)
	}
	if err != nil {
		s.log.Error("list messages", "err", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving messages")
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMessage(w, r)
	if !ok {
		return
	}
	id, _ := identityFrom(r.Context())
	if !id.IsAdmin() && m.UserEmail != id.Email {
		// Do not reveal other senders' message ids.
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: m})
}

func (s *Server) replyToMessage(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reply payload")
		return
	}
	req.ReplyText = strings.TrimSpace(req.ReplyText)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Reply text required")
		return
	}
	m, ok := s.loadMessage(w, r)
	if !ok {
		return
	}
	if err := s.backend.ReplyToMessage(r.Context(), m.ID, req.ReplyText); err != nil {
		s.writeBackendError(w, err, "Error saving reply")
		return
	}

	nctx, cancel := context.WithTimeout(r.Context(), notifyTimeout)
	defer cancel()
	sent := true
	if err := s.notifier.NotifyReply(nctx, m, req.ReplyText); err != nil {
		sent = false
		if errors.Is(err, notify.ErrNotConfigured) {
			s.log.Debug("reply notification skipped", "id", m.ID)
		} else {
			s.log.Warn("reply notification failed", "id", m.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, replyResponse{Message: "Reply sent successfully", EmailSent: sent})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.MarkMessageRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeBackendError(w, err, "Error updating message")
		return
	}
	writeJSON(w, http.StatusOK, statusMessage{Message: "Message marked as read"})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteMessage(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeBackendError(w, err, "Error deleting message")
		return
	}
	writeJSON(w, http.StatusOK, statusMessage{Message: "Message deleted successfully"})
}

func (s *Server) loadMessage(w http.ResponseWriter, r *http.Request) (inbox.Message, bool) {
	m, err := s.backend.GetMessage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeBackendError(w, err, "Error retrieving message")
		return inbox.Message{}, false
	}
	return m, true
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	s.log.Error(msg, "err", err)
	writeError(w, http.StatusInternalServerError, msg)
}

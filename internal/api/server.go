// Package api serves the dashboard snapshot and contact messages over
// HTTP/JSON.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/notify"
	"github.com/sadopc/greencampus/internal/session"
	"github.com/sadopc/greencampus/internal/store"
)

// Backend is the persistence the server exposes.
type Backend interface {
	FetchSnapshot(ctx context.Context) (metrics.Snapshot, bool, error)
	SaveSnapshotAs(ctx context.Context, snap metrics.Snapshot, by string) error
	DashboardInfo(ctx context.Context) (store.DashboardInfo, error)

	FetchMessages(ctx context.Context) ([]inbox.Message, error)
	FetchMessagesFrom(ctx context.Context, email string) ([]inbox.Message, error)
	GetMessage(ctx context.Context, id string) (inbox.Message, error)
	SendMessage(ctx context.Context, msg inbox.NewMessage) (inbox.Message, error)
	ReplyToMessage(ctx context.Context, id, text string) error
	MarkMessageRead(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
}

type Server struct {
	backend  Backend
	tokens   *session.Tokens
	notifier notify.Notifier
	log      *slog.Logger
}

func NewServer(b Backend, tokens *session.Tokens, n notify.Notifier, log *slog.Logger) *Server {
	if n == nil {
		n = notify.Nop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{backend: b, tokens: tokens, notifier: n, log: log}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api.HandleFunc("/dashboard", s.getDashboard).Methods(http.MethodGet)
	api.Handle("/dashboard", s.admin(s.putDashboard)).Methods(http.MethodPut)

	api.HandleFunc("/messages/send", s.sendMessage).Methods(http.MethodPost)
	api.Handle("/messages", s.authed(s.listMessages)).Methods(http.MethodGet)
	api.Handle("/messages/{id}", s.authed(s.getMessage)).Methods(http.MethodGet)
	api.Handle("/messages/{id}", s.admin(s.deleteMessage)).Methods(http.MethodDelete)
	api.Handle("/messages/{id}/reply", s.admin(s.replyToMessage)).Methods(http.MethodPost)
	api.Handle("/messages/{id}/read", s.admin(s.markRead)).Methods(http.MethodPut)

	return r
}

// Handler wraps the router with panic recovery, CORS and an access log
// written to accessLog.
func (s *Server) Handler(accessLog io.Writer, allowedOrigins []string) http.Handler {
	var h http.Handler = s.Router()
	h = handlers.LoggingHandler(accessLog, h)
	if len(allowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(h)
}

type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.log.Error("panic recovered", "err", fmt.Sprint(v...))
}

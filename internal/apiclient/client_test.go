package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/greencampus/internal/api"
	"github.com/sadopc/greencampus/internal/dashboard"
	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/notify"
	"github.com/sadopc/greencampus/internal/remote"
	"github.com/sadopc/greencampus/internal/session"
	"github.com/sadopc/greencampus/internal/store"
)

var (
	_ dashboard.Remote = (*Client)(nil)
	_ inbox.Remote     = (*Client)(nil)
)

var (
	admin = session.Identity{Email: "admin@greencampus.com", Role: session.RoleAdmin}
	alice = session.Identity{Email: "alice@uni.edu", Role: session.RoleUser}
)

type env struct {
	url    string
	store  *store.Store
	tokens *session.Tokens
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	tokens := session.NewTokens("client-test")
	srv := httptest.NewServer(api.NewServer(st, tokens, notify.Nop{}, nil).Handler(io.Discard, nil))
	t.Cleanup(srv.Close)
	return &env{url: srv.URL, store: st, tokens: tokens}
}

func (e *env) client(t *testing.T, id session.Identity) *Client {
	t.Helper()
	tok, err := e.tokens.Issue(id, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return New(e.url, tok, 5*time.Second)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	if err := New(e.url, "", 0).Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFetchSnapshotEmpty(t *testing.T) {
	e := newEnv(t)
	_, ok, err := New(e.url, "", 0).FetchSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no snapshot")
	}
}

func TestSaveAndFetchSnapshot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.client(t, admin)

	snap := metrics.DefaultSnapshot()
	snap.Water[0].Current = 999
	if err := c.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, ok, err := New(e.url, "", 0).FetchSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("fetch: ok=%v err=%v", ok, err)
	}
	if got.Water[0].Current != 999 {
		t.Fatalf("expected saved value, got %+v", got.Water[0])
	}
}

func TestSaveSnapshotForbiddenWrapsUnavailable(t *testing.T) {
	e := newEnv(t)
	err := e.client(t, alice).SaveSnapshot(context.Background(), metrics.DefaultSnapshot())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTransportFailureWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := New(url, "", time.Second).FetchSnapshot(context.Background())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBadJSONWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).FetchMessages(context.Background())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestServerMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"message":"short and stout"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "", time.Second).DeleteMessage(context.Background(), "x")
	if err == nil || !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if want := "http 418: short and stout"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q in %q", want, err.Error())
	}
}

func TestMessageLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.client(t, alice)
	adm := e.client(t, admin)

	created, err := user.SendMessage(ctx, inbox.NewMessage{
		UserName: "Alice", UserEmail: alice.Email, Subject: "Taps", Body: "Dripping",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Status != inbox.StatusUnread {
		t.Fatalf("unexpected created message %+v", created)
	}

	if err := adm.MarkMessageRead(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if err := adm.ReplyToMessage(ctx, created.ID, "Fixed"); err != nil {
		t.Fatal(err)
	}

	own, err := user.FetchMessages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own[0].Status != inbox.StatusReplied || len(own[0].Replies) != 1 {
		t.Fatalf("unexpected thread %+v", own)
	}

	if err := adm.DeleteMessage(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	all, _ := adm.FetchMessages(ctx)
	if len(all) != 0 {
		t.Fatalf("expected empty inbox, got %d", len(all))
	}
	if err := adm.DeleteMessage(ctx, created.ID); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("deleting twice should fail, got %v", err)
	}
}

// The dashboard store over HTTP: an admin edit lands on the server and a
// fresh session sees it.
func TestDashboardStoreOverHTTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := dashboard.New(e.client(t, admin), admin)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRecord(ctx, metrics.Energy, metrics.WeeklyRecord{Period: "Week 5", Current: 1, Previous: 2}); err != nil {
		t.Fatal(err)
	}

	fresh := dashboard.New(New(e.url, "", 0), alice)
	fresh.Load(ctx)
	if got := fresh.Series(metrics.Energy); len(got) != 5 {
		t.Fatalf("fresh session should see the saved edit, got %d records", len(got))
	}
	if !fresh.FromRemote() {
		t.Fatal("expected remote data")
	}
}

func TestInboxStoreOverHTTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.SendMessage(ctx, inbox.NewMessage{UserName: "A", UserEmail: alice.Email, Subject: "s", Body: "b"})

	box := inbox.New(e.client(t, admin), admin)
	if err := box.Fetch(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := box.ListFor(admin)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if err := box.Reply(ctx, msgs[0].ID, "thanks"); err != nil {
		t.Fatal(err)
	}
	stored, _ := e.store.GetMessage(ctx, msgs[0].ID)
	if stored.Status != inbox.StatusReplied {
		t.Fatalf("server should record the reply, got %s", stored.Status)
	}
}

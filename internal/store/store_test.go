package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sendMessage is a test helper that stores a valid message from email.
func sendMessage(t *testing.T, s *Store, email, subject string) inbox.Message {
	t.Helper()
	m, err := s.SendMessage(context.Background(), inbox.NewMessage{
		UserName: "Tester", UserEmail: email, Subject: subject, Body: "body of " + subject,
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	return m
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/greencampus.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot(context.Background(), metrics.DefaultSnapshot()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: data survives and migration is not re-run.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	_, ok, err := s2.FetchSnapshot(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected saved snapshot after reopen: ok=%v err=%v", ok, err)
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)

	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Dashboard snapshot
// ============================================================

func TestFetchSnapshotEmpty(t *testing.T) {
	s := newTestStore(t)
	snap, ok, err := s.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fresh store should report no snapshot")
	}
	if !snap.Empty() {
		t.Fatal("expected empty snapshot")
	}
}

func TestSaveAndFetchSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := metrics.DefaultSnapshot()
	want.Water = metrics.Series{}

	if err := s.SaveSnapshotAs(ctx, want, "admin@greencampus.com"); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.FetchSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("fetch: ok=%v err=%v", ok, err)
	}
	if len(got.Energy) != 4 || len(got.Waste) != 4 || len(got.Water) != 0 {
		t.Fatalf("unexpected lengths: %d %d %d", len(got.Energy), len(got.Water), len(got.Waste))
	}
	for i := range want.Energy {
		if got.Energy[i] != want.Energy[i] {
			t.Fatalf("energy[%d]: expected %+v, got %+v", i, want.Energy[i], got.Energy[i])
		}
	}
	if got.Water == nil {
		t.Fatal("empty series should decode as empty, not nil")
	}

	info, err := s.DashboardInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.UpdatedBy != "admin@greencampus.com" {
		t.Fatalf("expected updated_by admin, got %q", info.UpdatedBy)
	}
	if time.Since(info.UpdatedAt) > time.Minute {
		t.Fatalf("updated_at looks wrong: %v", info.UpdatedAt)
	}
}

func TestSaveSnapshotKeepsOrderAndDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	snap := metrics.Snapshot{
		Energy: metrics.Series{
			{Period: "Week 2", Current: 1, Previous: 1},
			{Period: "Week 1", Current: 2, Previous: 2},
			{Period: "Week 2", Current: 3, Previous: 3},
		},
	}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.FetchSnapshot(ctx)
	for i, want := range []float64{1, 2, 3} {
		if got.Energy[i].Current != want {
			t.Fatalf("position %d: expected %v, got %v", i, want, got.Energy[i].Current)
		}
	}
}

func TestSaveSnapshotReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveSnapshot(ctx, metrics.DefaultSnapshot())
	s.SaveSnapshot(ctx, metrics.Snapshot{Waste: metrics.Series{{Period: "W", Current: 1, Previous: 1}}})

	got, _, _ := s.FetchSnapshot(ctx)
	if len(got.Energy) != 0 || len(got.Waste) != 1 {
		t.Fatalf("second save should replace everything: %+v", got)
	}
}

func TestSaveSnapshotRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveSnapshot(ctx, metrics.DefaultSnapshot())

	bad := metrics.DefaultSnapshot()
	bad.Water[1].Period = ""
	err := s.SaveSnapshot(ctx, bad)
	var verr *metrics.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	got, _, _ := s.FetchSnapshot(ctx)
	if got.Water[1].Period != "Week 2" {
		t.Fatal("rejected save must leave stored data untouched")
	}
}

func TestDashboardInfoNotSaved(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.DashboardInfo(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================
// Messages
// ============================================================

func TestSendAndGetMessage(t *testing.T) {
	s := newTestStore(t)
	m := sendMessage(t, s, "alice@uni.edu", "Lights")

	if m.ID == "" {
		t.Fatal("expected an id")
	}
	if m.Status != inbox.StatusUnread {
		t.Fatalf("expected unread, got %s", m.Status)
	}

	got, err := s.GetMessage(context.Background(), m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != "Lights" || got.UserEmail != "alice@uni.edu" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.Replies == nil || len(got.Replies) != 0 {
		t.Fatal("expected empty replies")
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, m.CreatedAt)
	}
}

func TestSendMessageInvalid(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SendMessage(context.Background(), inbox.NewMessage{UserName: "A", UserEmail: "nope", Subject: "s", Body: "b"})
	if !errors.Is(err, inbox.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetMessage(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchMessagesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	a := sendMessage(t, s, "alice@uni.edu", "first")
	b := sendMessage(t, s, "bob@uni.edu", "second")
	c := sendMessage(t, s, "alice@uni.edu", "third")

	msgs, err := s.FetchMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{c.ID, b.ID, a.ID} {
		if msgs[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, msgs[i].ID)
		}
	}
}

func TestFetchMessagesFrom(t *testing.T) {
	s := newTestStore(t)
	sendMessage(t, s, "alice@uni.edu", "one")
	sendMessage(t, s, "bob@uni.edu", "two")
	sendMessage(t, s, "alice@uni.edu", "three")

	msgs, err := s.FetchMessagesFrom(context.Background(), "alice@uni.edu")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.UserEmail != "alice@uni.edu" {
			t.Fatalf("unexpected sender %s", m.UserEmail)
		}
	}

	none, err := s.FetchMessagesFrom(context.Background(), "carol@uni.edu")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Fatal("expected empty, non-nil list")
	}
}

func TestReplyToMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := sendMessage(t, s, "alice@uni.edu", "Taps")

	if err := s.ReplyToMessage(ctx, m.ID, "Fixed"); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplyToMessage(ctx, m.ID, "Check again"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetMessage(ctx, m.ID)
	if got.Status != inbox.StatusReplied {
		t.Fatalf("expected replied, got %s", got.Status)
	}
	if len(got.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(got.Replies))
	}
	if got.Replies[0].Text != "Fixed" || got.Replies[1].Text != "Check again" {
		t.Fatalf("replies out of order: %+v", got.Replies)
	}
	if got.Replies[0].Sender != inbox.AdminSender {
		t.Fatalf("expected sender Admin, got %s", got.Replies[0].Sender)
	}

	msgs, _ := s.FetchMessages(ctx)
	if len(msgs[0].Replies) != 2 {
		t.Fatal("list should carry replies too")
	}
}

func TestReplyToMissingMessage(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplyToMessage(context.Background(), "missing", "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkMessageRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := sendMessage(t, s, "alice@uni.edu", "Bins")

	if err := s.MarkMessageRead(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetMessage(ctx, m.ID)
	if got.Status != inbox.StatusRead {
		t.Fatalf("expected read, got %s", got.Status)
	}

	s.ReplyToMessage(ctx, m.ID, "ok")
	if err := s.MarkMessageRead(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetMessage(ctx, m.ID)
	if got.Status != inbox.StatusReplied {
		t.Fatal("mark read must not regress replied")
	}

	if err := s.MarkMessageRead(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMessageCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := sendMessage(t, s, "alice@uni.edu", "Heat")
	s.ReplyToMessage(ctx, m.ID, "noted")

	if err := s.DeleteMessage(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMessage(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM message_replies WHERE message_id = ?`, m.ID).Scan(&n)
	if n != 0 {
		t.Fatalf("replies should cascade, %d left", n)
	}

	if err := s.DeleteMessage(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSetSettingNewKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetSetting(ctx, "custom_key", "custom_value")
	val, err := s.GetSetting(ctx, "custom_key")
	if err != nil {
		t.Fatal(err)
	}
	if val != "custom_value" {
		t.Fatalf("expected custom_value, got %s", val)
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetSetting(ctx, "key", "v1")
	s.SetSetting(ctx, "key", "v2")
	val, _ := s.GetSetting(ctx, "key")
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestGetSettingMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSetting(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package session

import (
	"errors"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("ADMIN")
	if err != nil || r != RoleAdmin {
		t.Fatalf("unexpected: %v %v", r, err)
	}
	r, err = ParseRole(" user ")
	if err != nil || r != RoleUser {
		t.Fatalf("unexpected: %v %v", r, err)
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestIdentityIsAdmin(t *testing.T) {
	if !(Identity{Role: RoleAdmin}).IsAdmin() {
		t.Fatal("admin should be admin")
	}
	if (Identity{Role: RoleUser}).IsAdmin() {
		t.Fatal("user should not be admin")
	}
	if (Identity{}).IsAdmin() {
		t.Fatal("zero identity should not be admin")
	}
}

func TestIssueAndVerify(t *testing.T) {
	tok := NewTokens("s3cret")
	id := Identity{Email: "admin@greencampus.com", Role: RoleAdmin}
	signed, err := tok.Issue(id, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	got, err := tok.Verify(signed)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("expected %+v, got %+v", id, got)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	signed, err := NewTokens("a").Issue(Identity{Email: "u@x.io", Role: RoleUser}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokens("b").Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	tok := NewTokens("s3cret")
	tok.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, err := tok.Issue(Identity{Email: "u@x.io", Role: RoleUser}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tok.now = time.Now
	if _, err := tok.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	if _, err := NewTokens("s").Issue(Identity{Email: "x", Role: "root"}, time.Hour); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := NewTokens("s").Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

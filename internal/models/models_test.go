package models

import (
	"testing"
	"time"
)

func TestBeforeCreateKeepsExistingIDs(t *testing.T) {
	user := &User{ID: "user-1"}
	if err := user.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("expected id to be preserved, got %q", user.ID)
	}

	session := &Session{}
	if err := session.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected session ID to be generated")
	}

	audit := &AuditLog{}
	if err := audit.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if audit.ID == "" {
		t.Fatal("expected audit ID to be generated")
	}
}

func TestTokenAndIdentityIDs(t *testing.T) {
	identity := &ExternalIdentity{Provider: "google", Subject: "123"}
	if err := identity.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if identity.ID == "" {
		t.Fatal("expected identity ID to be generated")
	}

	token := &ActionToken{ID: "token-1"}
	if err := token.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if token.ID != "token-1" {
		t.Fatalf("expected id to be preserved, got %q", token.ID)
	}
}

func TestUserIsVerified(t *testing.T) {
	var nilUser *User
	if nilUser.IsVerified() {
		t.Fatal("nil user must not be verified")
	}

	user := &User{}
	if user.IsVerified() {
		t.Fatal("expected pending user")
	}

	now := time.Now()
	user.EmailVerifiedAt = &now
	if !user.IsVerified() {
		t.Fatal("expected verified user")
	}
}

func TestSessionActive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	session := &Session{ExpiresAt: now.Add(time.Minute)}
	if !session.Active(now) {
		t.Fatal("expected session to be active")
	}
	if session.Active(now.Add(time.Minute)) {
		t.Fatal("expected session to expire at ExpiresAt")
	}

	revoked := now
	session.RevokedAt = &revoked
	if session.Active(now) {
		t.Fatal("expected revoked session to be inactive")
	}
}

func TestActionTokenUsable(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	token := &ActionToken{ExpiresAt: now.Add(time.Hour)}
	if !token.Usable(now) {
		t.Fatal("expected fresh token to be usable")
	}
	if token.Usable(now.Add(time.Hour)) {
		t.Fatal("expected token to be unusable at expiry")
	}

	consumed := now
	token.ConsumedAt = &consumed
	if token.Usable(now) {
		t.Fatal("expected consumed token to be unusable")
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	apperrors "tms-server/internal/platform/errors"
)

func newTestAdminService(t *testing.T, clock *testClock) *AdminService {
	t.Helper()
	return NewAdminService(newTestVerifier("s3cret-admin"), newTestCodec(t, clock), AdminConfig{}, nil, nil)
}

func TestAdminLoginTTL(t *testing.T) {
	clock := newTestClock()
	svc := newTestAdminService(t, clock)
	codec := newTestCodec(t, clock)

	for _, tt := range []struct {
		remember bool
		ttl      time.Duration
	}{
		{false, 2 * time.Hour},
		{true, 30 * 24 * time.Hour},
	} {
		sess, err := svc.Login(context.Background(), "s3cret-admin", tt.remember)
		if err != nil {
			t.Fatalf("Login(remember=%v): %v", tt.remember, err)
		}
		if sess.TTL != tt.ttl {
			t.Fatalf("TTL = %s, want %s", sess.TTL, tt.ttl)
		}
		payload, err := codec.Parse(sess.Token)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if payload.Subject != AdminSubject {
			t.Fatalf("subject = %q", payload.Subject)
		}
		if got := payload.ExpiresAt.Sub(payload.IssuedAt); got != tt.ttl {
			t.Fatalf("token lifetime = %s, want %s", got, tt.ttl)
		}
	}
}

func TestAdminLoginErrors(t *testing.T) {
	svc := newTestAdminService(t, newTestClock())

	_, err := svc.Login(context.Background(), "", false)
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("empty password: got %v", err)
	}

	_, err = svc.Login(context.Background(), "wrong", true)
	if !apperrors.IsKind(err, apperrors.KindAuthentication) {
		t.Fatalf("wrong password: got %v", err)
	}
	if msg := apperrors.PublicMessage(err, ""); msg != "Invalid password" {
		t.Fatalf("message = %q", msg)
	}
}

func TestClientContext(t *testing.T) {
	ctx := WithClient(context.Background(), "192.0.2.4")
	if got := ClientFrom(ctx); got != "192.0.2.4" {
		t.Fatalf("ClientFrom = %q", got)
	}
	if got := ClientFrom(context.Background()); got != "" {
		t.Fatalf("ClientFrom(empty) = %q", got)
	}
}

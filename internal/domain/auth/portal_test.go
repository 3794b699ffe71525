package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tms-server/internal/domain/eventbus"
	"tms-server/internal/domain/rowstore"
	apperrors "tms-server/internal/platform/errors"
)

// countingStore wraps a row store, counting writes and optionally failing them.
type countingStore struct {
	rowstore.Store
	writes   atomic.Int32
	failRead bool
	failWith error
	delay    time.Duration
}

func (s *countingStore) GetRows(ctx context.Context, rangeSpec string) ([][]string, error) {
	if s.failRead {
		return nil, errors.New("sheets unavailable")
	}
	return s.Store.GetRows(ctx, rangeSpec)
}

func (s *countingStore) UpdateRow(ctx context.Context, rangeSpec string, values []string) error {
	s.writes.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.failWith != nil {
		return s.failWith
	}
	return s.Store.UpdateRow(ctx, rangeSpec, values)
}

func portalFixture() [][]string {
	return [][]string{
		{"ana@example.com", "plain-pass-1", "key-ana", "TMSP"},
		{"Bo@Example.com", "", "key-bo", "TMSP"},
		{"cy@example.com", "whatever", "key-cy", "OTHER"},
		{"dee@example.com", "$2b$04$short", "key-dee", "TMSP"},
	}
}

func newTestPortal(t *testing.T, bus *eventbus.Bus) (*PortalService, *countingStore) {
	t.Helper()
	rows := &countingStore{Store: rowstore.NewMemory(map[string][][]string{"portal": portalFixture()})}
	svc, err := NewPortalService(rows, newTestVerifier(""), PortalConfig{}, bus, nil)
	if err != nil {
		t.Fatalf("NewPortalService: %v", err)
	}
	return svc, rows
}

func storedPassword(t *testing.T, rows rowstore.Store, row int) string {
	t.Helper()
	got, err := rows.GetRows(context.Background(), "portal!A:D")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	return rowstore.Cell(got[row-1], colPassword)
}

func requireKind(t *testing.T, err error, kind apperrors.Kind, msg string) {
	t.Helper()
	if !apperrors.IsKind(err, kind) {
		t.Fatalf("error = %v, want kind %s", err, kind)
	}
	if got := apperrors.PublicMessage(err, ""); got != msg {
		t.Fatalf("message = %q, want %q", got, msg)
	}
}

func TestPortalCheckEmail(t *testing.T) {
	svc, _ := newTestPortal(t, nil)
	ctx := context.Background()

	_, err := svc.CheckEmail(ctx, "")
	requireKind(t, err, apperrors.KindValidation, "Email required")

	st, err := svc.CheckEmail(ctx, "nobody@example.com")
	if err != nil || st.Exists {
		t.Fatalf("unknown email: %+v, %v", st, err)
	}

	st, err = svc.CheckEmail(ctx, "ANA@example.com")
	if err != nil || !st.Exists || !st.HasPassword || st.Username != "TMSP" {
		t.Fatalf("ana: %+v, %v", st, err)
	}

	st, err = svc.CheckEmail(ctx, "bo@example.com")
	if err != nil || !st.Exists || st.HasPassword {
		t.Fatalf("bo: %+v, %v", st, err)
	}
}

func TestPortalBlankEmailNeverMatchesBlankRow(t *testing.T) {
	rows := rowstore.NewMemory(map[string][][]string{"portal": {
		{"email", "password", "key", "username"},
		{},
		{"ana@example.com", "plain-pass-1", "key-ana", "TMSP"},
	}})
	svc, err := NewPortalService(rows, newTestVerifier(""), PortalConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPortalService: %v", err)
	}
	ctx := context.Background()

	_, err = svc.CheckEmail(ctx, "   ")
	requireKind(t, err, apperrors.KindValidation, "Email required")

	_, err = svc.Login(ctx, " \t ", "plain-pass-1")
	requireKind(t, err, apperrors.KindValidation, "Email and password required")

	_, err = svc.SetPassword(ctx, "   ", "longenough1")
	requireKind(t, err, apperrors.KindValidation, "Email and password required")

	_, err = svc.SetPassword(ctx, "ghost@example.com", "longenough1")
	requireKind(t, err, apperrors.KindNotFound, "Email not found")

	st, err := svc.CheckEmail(ctx, "  ana@example.com ")
	if err != nil || !st.Exists || st.Username != "TMSP" {
		t.Fatalf("padded ana: %+v, %v", st, err)
	}

	if _, err := svc.Login(ctx, "ana@example.com", "plain-pass-1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := storedPassword(t, rows, 3); !strings.HasPrefix(got, "$2") {
		t.Fatalf("row 3 should hold a bcrypt hash after upgrade, got %q", got)
	}
	if got := storedPassword(t, rows, 2); got != "" {
		t.Fatalf("blank row was written: %q", got)
	}
}

func TestPortalLoginUpgradesPlaintext(t *testing.T) {
	svc, rows := newTestPortal(t, nil)
	ctx := context.Background()

	id, err := svc.Login(ctx, "ana@example.com", "plain-pass-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.Username != "TMSP" || id.Key != "key-ana" {
		t.Fatalf("identity = %+v", id)
	}

	stored := storedPassword(t, rows, 1)
	if !strings.HasPrefix(stored, "$2") {
		t.Fatalf("stored password not upgraded: %q", stored)
	}

	// The hashed row still logs in and needs no further writes.
	if _, err := svc.Login(ctx, "ana@example.com", "plain-pass-1"); err != nil {
		t.Fatalf("Login after upgrade: %v", err)
	}
	if got := rows.writes.Load(); got != 1 {
		t.Fatalf("writes = %d, want 1", got)
	}

	_, err = svc.Login(ctx, "ana@example.com", "wrong-pass")
	requireKind(t, err, apperrors.KindAuthentication, "Invalid credentials")
}

func TestPortalLoginUpgradeFailureStillSucceeds(t *testing.T) {
	svc, rows := newTestPortal(t, nil)
	rows.failWith = errors.New("quota exceeded")

	id, err := svc.Login(context.Background(), "ana@example.com", "plain-pass-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.Key != "key-ana" {
		t.Fatalf("identity = %+v", id)
	}
	if got := storedPassword(t, rows, 1); got != "plain-pass-1" {
		t.Fatalf("stored = %q, want unchanged plaintext", got)
	}
}

func TestPortalConcurrentUpgradeWritesOnce(t *testing.T) {
	svc, rows := newTestPortal(t, nil)
	rows.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Login(context.Background(), "ana@example.com", "plain-pass-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	if got := rows.writes.Load(); got != 1 {
		t.Fatalf("writes = %d, want 1", got)
	}
}

func TestPortalLoginRejections(t *testing.T) {
	svc, rows := newTestPortal(t, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ana@example.com", "")
	requireKind(t, err, apperrors.KindValidation, "Email and password required")

	_, err = svc.Login(ctx, "nobody@example.com", "x")
	requireKind(t, err, apperrors.KindAuthentication, "Invalid credentials")

	_, err = svc.Login(ctx, "bo@example.com", "anything")
	requireKind(t, err, apperrors.KindAuthentication, "Invalid credentials")

	_, err = svc.Login(ctx, "dee@example.com", "anything")
	requireKind(t, err, apperrors.KindAuthentication, "Invalid credentials")

	if got := rows.writes.Load(); got != 0 {
		t.Fatalf("writes = %d, want 0", got)
	}
}

func TestPortalGateRespondsIdenticallyForAnyPassword(t *testing.T) {
	svc, _ := newTestPortal(t, nil)
	ctx := context.Background()

	_, right := svc.Login(ctx, "cy@example.com", "whatever")
	_, wrong := svc.Login(ctx, "cy@example.com", "not-it")
	requireKind(t, right, apperrors.KindAuthorization, "Access denied")
	requireKind(t, wrong, apperrors.KindAuthorization, "Access denied")
	if right.Error() != wrong.Error() {
		t.Fatalf("gated responses differ: %q vs %q", right, wrong)
	}
}

func TestPortalSetPassword(t *testing.T) {
	svc, rows := newTestPortal(t, nil)
	ctx := context.Background()

	_, err := svc.SetPassword(ctx, "bo@example.com", "")
	requireKind(t, err, apperrors.KindValidation, "Email and password required")

	_, err = svc.SetPassword(ctx, "bo@example.com", "short")
	requireKind(t, err, apperrors.KindValidation, "Weak password")

	_, err = svc.SetPassword(ctx, "nobody@example.com", "long-enough")
	requireKind(t, err, apperrors.KindNotFound, "Email not found")

	_, err = svc.SetPassword(ctx, "cy@example.com", "long-enough")
	requireKind(t, err, apperrors.KindAuthorization, "Access denied")

	id, err := svc.SetPassword(ctx, "BO@example.com", "long-enough")
	if err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if id.Username != "TMSP" || id.Key != "key-bo" {
		t.Fatalf("identity = %+v", id)
	}
	if stored := storedPassword(t, rows, 2); !strings.HasPrefix(stored, "$2") {
		t.Fatalf("stored = %q, want hash", stored)
	}
	if _, err := svc.Login(ctx, "bo@example.com", "long-enough"); err != nil {
		t.Fatalf("Login after SetPassword: %v", err)
	}
}

func TestPortalStoreFailures(t *testing.T) {
	svc, rows := newTestPortal(t, nil)
	ctx := context.Background()

	rows.failWith = errors.New("write failed")
	_, err := svc.SetPassword(ctx, "bo@example.com", "long-enough")
	if !apperrors.IsKind(err, apperrors.KindUpstream) {
		t.Fatalf("write failure: %v", err)
	}

	rows.failRead = true
	_, err = svc.Login(ctx, "ana@example.com", "plain-pass-1")
	if !apperrors.IsKind(err, apperrors.KindUpstream) {
		t.Fatalf("read failure: %v", err)
	}
	if got := apperrors.HTTPStatus(err); got != 500 {
		t.Fatalf("status = %d, want 500", got)
	}
}

func TestPortalPublishesEvents(t *testing.T) {
	bus := eventbus.New(1, 16)
	defer bus.Stop()

	got := make(chan eventbus.AuthEvent, 4)
	if err := bus.Subscribe(eventbus.EventPasswordUpgraded, func(ev eventbus.AuthEvent) { got <- ev }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	svc, _ := newTestPortal(t, bus)
	ctx := WithClient(context.Background(), "192.0.2.9")
	if _, err := svc.Login(ctx, "ana@example.com", "plain-pass-1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Outcome != eventbus.OutcomeSuccess || ev.Client != "192.0.2.9" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no upgrade event")
	}
}

func TestNewPortalServiceRejectsNarrowRange(t *testing.T) {
	if _, err := NewPortalService(rowstore.NewMemory(nil), newTestVerifier(""), PortalConfig{Range: "portal!A:B"}, nil, nil); err == nil {
		t.Fatal("expected error for a two-column range")
	}
}

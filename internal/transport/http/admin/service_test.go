package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tms-server/internal/domain/auth"
	"tms-server/internal/domain/auth/attempts"
	platformtesting "tms-server/internal/platform/testing"
	httptransport "tms-server/internal/transport/http"
)

const adminPassword = "correct-admin-password"

type fixture struct {
	handler http.Handler
	codec   *auth.TokenCodec
}

func newFixture(t *testing.T, relay *Relay, panelDir string) *fixture {
	t.Helper()

	cfg := platformtesting.SetupTestConfig(t)
	router, err := httptransport.Build(httptransport.Options{Config: cfg})
	require.NoError(t, err)

	codec, err := auth.NewTokenCodec("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	verifier := auth.NewCredentialVerifier(auth.VerifierConfig{AdminSecret: adminPassword, BcryptCost: bcrypt.MinCost})
	cookie := auth.SessionCookie{Name: "tms_admin"}
	store := attempts.NewMemory(attempts.Config{})
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	limiter := auth.NewLoginLimiter(store, auth.LimiterConfig{Limit: 20, Window: 10 * time.Minute}, nil)

	if relay == nil {
		relay = NewRelay(RelayConfig{})
	}
	svc, err := NewService(Options{
		Sessions:  auth.NewAdminService(verifier, codec, auth.AdminConfig{}, nil, nil),
		Limiter:   limiter,
		Gate:      auth.NewGate(codec, cookie),
		Cookie:    cookie,
		Relay:     relay,
		Attempts:  store,
		LoginPage: "/admin.html",
		PanelPath: "/admin/panel",
		PanelDir:  panelDir,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), router.Engine))

	return &fixture{handler: router.Engine, codec: codec}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "198.51.100.20:5555"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := f.codec.Issue(auth.AdminSubject, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: "tms_admin", Value: token}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tms_admin" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestNewServiceValidatesOptions(t *testing.T) {
	_, err := NewService(Options{})
	require.Error(t, err)
}

func TestLoginSetsCookieWithTTL(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/admin/login", `{"password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
	short := sessionCookie(t, rec)
	require.Equal(t, int((2 * time.Hour).Seconds()), short.MaxAge)
	require.True(t, short.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, short.SameSite)

	rec = f.do(t, http.MethodPost, "/api/admin/login", `{"password":"`+adminPassword+`","remember":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	long := sessionCookie(t, rec)
	require.Equal(t, int((30 * 24 * time.Hour).Seconds()), long.MaxAge)

	rec = f.do(t, http.MethodGet, "/api/admin/session", "", long)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestLoginErrors(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/admin/login", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Password required"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/admin/login", `{"password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"Invalid password"}`, rec.Body.String())
	require.Empty(t, rec.Result().Cookies())
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, nil, "")

	for i := 0; i < 20; i++ {
		rec := f.do(t, http.MethodPost, "/api/admin/login", `{"password":"wrong"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := f.do(t, http.MethodPost, "/api/admin/login", `{"password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.JSONEq(t, `{"error":"Too many attempts. Try again later."}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestSessionProbeAndLogout(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodGet, "/api/admin/session", "")
	require.JSONEq(t, `{"ok":false}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/admin/session", "", &http.Cookie{Name: "tms_admin", Value: "garbage"})
	require.JSONEq(t, `{"ok":false}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/admin/logout", "", f.adminCookie(t))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
	cleared := sessionCookie(t, rec)
	require.Less(t, cleared.MaxAge, 0)
	require.Empty(t, cleared.Value)
}

func TestAdminEntryRedirects(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodGet, "/admin", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin.html", rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, "/admin", "", f.adminCookie(t))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin/panel", rec.Header().Get("Location"))
}

func TestPanelIsPageGated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("panel home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.html"), []byte("users page"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	f := newFixture(t, nil, dir)

	rec := f.do(t, http.MethodGet, "/admin/panel/users", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin.html", rec.Header().Get("Location"))

	cookie := f.adminCookie(t)

	rec = f.do(t, http.MethodGet, "/admin/panel/", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "panel home")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = f.do(t, http.MethodGet, "/admin/panel/users", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "users page")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = f.do(t, http.MethodGet, "/admin/panel/app.js", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Cache-Control"))

	rec = f.do(t, http.MethodGet, "/admin/panel/missing.js", "", cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type captured struct {
	body map[string]any
	raw  []byte
	sig  string
}

type webhook struct {
	mu       sync.Mutex
	received []captured
	status   int
	reply    string
	server   *httptest.Server
}

func newWebhook(t *testing.T, status int, reply string) *webhook {
	t.Helper()
	w := &webhook{status: status, reply: reply}
	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		w.mu.Lock()
		w.received = append(w.received, captured{body: body, raw: raw, sig: r.Header.Get("X-Signature")})
		status, reply := w.status, w.reply
		w.mu.Unlock()

		rw.WriteHeader(status)
		_, _ = io.WriteString(rw, reply)
	}))
	t.Cleanup(w.server.Close)
	return w
}

func (w *webhook) respond(status int, reply string) {
	w.mu.Lock()
	w.status, w.reply = status, reply
	w.mu.Unlock()
}

func (w *webhook) calls() []captured {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]captured(nil), w.received...)
}

func TestRelayRequiresAdmin(t *testing.T) {
	hook := newWebhook(t, http.StatusOK, "approved")
	f := newFixture(t, NewRelay(RelayConfig{WebhookURL: hook.server.URL, SigningSecret: "sig"}), "")

	rec := f.do(t, http.MethodPost, "/api/admin/remove", `{"user_id":"7","email":"a@b.c"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"ok":false,"error":"Unauthorized"}`, rec.Body.String())
	require.Empty(t, hook.calls())
}

func TestRelayForwardsSignedBody(t *testing.T) {
	hook := newWebhook(t, http.StatusOK, "approved\n")
	relay := NewRelay(RelayConfig{WebhookURL: hook.server.URL, SigningSecret: "sig"})
	f := newFixture(t, relay, "")
	cookie := f.adminCookie(t)

	rec := f.do(t, http.MethodPost, "/api/admin/block", `{"user_id":"7","email":"a@b.c","reason":"spam","extra":"dropped"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "approved", rec.Body.String())

	calls := hook.calls()
	require.Len(t, calls, 1)
	body := calls[0].body
	require.Equal(t, "block user", body["request"])
	require.Equal(t, "7", body["user_id"])
	require.Equal(t, "spam", body["reason"])
	require.NotContains(t, body, "extra")
	require.Contains(t, body, "requested_at_iso")
	require.Equal(t, relay.Sign(calls[0].raw), calls[0].sig)

	rec = f.do(t, http.MethodPost, "/api/admin/add-user", `{"email":"n@b.c","payment_method":"card","payment_platform":"stripe","track_count":3}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	added := hook.calls()[1].body
	require.Equal(t, "add user", added["request"])
	require.Equal(t, float64(3), added["track_count"])
	require.Contains(t, added, "created_at_iso")
}

func TestRelayMissingFields(t *testing.T) {
	hook := newWebhook(t, http.StatusOK, "approved")
	f := newFixture(t, NewRelay(RelayConfig{WebhookURL: hook.server.URL}), "")
	cookie := f.adminCookie(t)

	for path, body := range map[string]string{
		"/api/admin/remove":         `{"email":"a@b.c"}`,
		"/api/admin/reset-password": `{"user_id":"1"}`,
		"/api/admin/unblock":        `{"user_id":"","email":"a@b.c"}`,
		"/api/admin/block":          `{"user_id":"1","email":"a@b.c"}`,
		"/api/admin/add-user":       `{"email":"a@b.c","payment_method":"card"}`,
	} {
		rec := f.do(t, http.MethodPost, path, body, cookie)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		require.JSONEq(t, `{"error":"Missing fields"}`, rec.Body.String(), path)
	}
	require.Empty(t, hook.calls())
}

func TestRelayUpstreamOutcomes(t *testing.T) {
	hook := newWebhook(t, http.StatusOK, "rejected")
	f := newFixture(t, NewRelay(RelayConfig{WebhookURL: hook.server.URL}), "")
	cookie := f.adminCookie(t)

	rec := f.do(t, http.MethodPost, "/api/admin/unblock", `{"user_id":"1","email":"a@b.c"}`, cookie)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "upstream 200: rejected", rec.Body.String())

	hook.respond(http.StatusInternalServerError, "approved")
	rec = f.do(t, http.MethodPost, "/api/admin/unblock", `{"user_id":"1","email":"a@b.c"}`, cookie)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "upstream 500: approved", rec.Body.String())

	down := NewRelay(RelayConfig{WebhookURL: "http://127.0.0.1:1/unreachable", Timeout: time.Second})
	f = newFixture(t, down, "")
	rec = f.do(t, http.MethodPost, "/api/admin/remove", `{"user_id":"1","email":"a@b.c"}`, f.adminCookie(t))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"server error"}`, rec.Body.String())
}

func TestStatsRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.do(t, http.MethodPost, "/api/admin/login", `{"password":"nope"}`)

	rec = f.do(t, http.MethodGet, "/api/admin/stats", "", f.adminCookie(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Attempts map[string]any     `json:"attempts"`
		Metrics  map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, attempts.DriverMemory, body.Attempts["type"])
	require.Equal(t, float64(1), body.Attempts["total"])
	require.NotNil(t, body.Metrics)
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGateIsAuthenticatedAdmin(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, clock)
	cookie := SessionCookie{Name: "tms_admin"}
	gate := NewGate(codec, cookie)

	adminToken, _, err := codec.Issue(AdminSubject, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	otherToken, _, err := codec.Issue("someone", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	withCookie := func(name, value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/session", nil)
		if name != "" {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
		return req
	}

	tests := []struct {
		name string
		req  *http.Request
		want bool
	}{
		{"valid admin", withCookie("tms_admin", adminToken), true},
		{"no cookie", withCookie("", ""), false},
		{"wrong cookie name", withCookie("other", adminToken), false},
		{"garbage", withCookie("tms_admin", "not-a-token"), false},
		{"other subject", withCookie("tms_admin", otherToken), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.IsAuthenticatedAdmin(tt.req); got != tt.want {
				t.Fatalf("IsAuthenticatedAdmin = %v, want %v", got, tt.want)
			}
		})
	}

	clock.Advance(time.Hour + time.Second)
	if gate.IsAuthenticatedAdmin(withCookie("tms_admin", adminToken)) {
		t.Fatal("expired token accepted")
	}
}

package auth

import (
	"net/http"
	"time"
)

// SessionCookie reads and writes the single cookie that carries the admin
// session token.
type SessionCookie struct {
	Name   string
	Secure bool
}

func (s SessionCookie) base() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Read returns the token from the request, or "" when absent.
func (s SessionCookie) Read(r *http.Request) string {
	c, err := r.Cookie(s.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Write sets the session cookie with a lifetime of ttl.
func (s SessionCookie) Write(w http.ResponseWriter, token string, ttl time.Duration) {
	c := s.base()
	c.Value = token
	c.MaxAge = int(ttl / time.Second)
	c.Expires = time.Now().Add(ttl)
	http.SetCookie(w, c)
}

// Clear expires the cookie using the same attributes it was set with.
func (s SessionCookie) Clear(w http.ResponseWriter) {
	c := s.base()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

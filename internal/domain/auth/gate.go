package auth

import "net/http"

// Gate answers whether a request carries a valid admin session. Transport
// code attaches audience-specific failure behaviour on top of it.
type Gate struct {
	codec  *TokenCodec
	cookie SessionCookie
}

func NewGate(codec *TokenCodec, cookie SessionCookie) *Gate {
	return &Gate{codec: codec, cookie: cookie}
}

// IsAuthenticatedAdmin is the single predicate shared by every admin guard.
func (g *Gate) IsAuthenticatedAdmin(r *http.Request) bool {
	token := g.cookie.Read(r)
	if token == "" {
		return false
	}
	payload, err := g.codec.Parse(token)
	if err != nil {
		return false
	}
	return payload.Subject == AdminSubject
}

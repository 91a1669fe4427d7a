// auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// Identity is what the coordination layer knows about a connection's
// principal: whether it authenticated and its stable identifier.
type Identity interface {
	Authenticated() bool
	StableID() string
}

// Authenticator resolves the identity of an incoming connection
// before the websocket upgrade.
type Authenticator interface {
	Authenticate(r *http.Request) Identity
}

type identity struct {
	id string
	ok bool
}

func (i identity) Authenticated() bool { return i.ok }
func (i identity) StableID() string    { return i.id }

var anonymous = identity{}

// TokenAuthenticator checks `user` and `token` query parameters,
// where token = hex(HMAC-SHA256(user, secret)). With an empty secret
// any non-empty user is accepted (development mode).
type TokenAuthenticator struct {
	secret []byte
}

func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: []byte(secret)}
}

func (a *TokenAuthenticator) Authenticate(r *http.Request) Identity {
	user := r.URL.Query().Get("user")
	if user == "" {
		return anonymous
	}
	if len(a.secret) == 0 {
		return identity{id: user, ok: true}
	}

	token := r.URL.Query().Get("token")
	if !hmac.Equal([]byte(token), []byte(a.Token(user))) {
		return anonymous
	}
	return identity{id: user, ok: true}
}

// Token derives the connection token for a user. Exposed for the
// probe client and tests.
func (a *TokenAuthenticator) Token(user string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(user))
	return hex.EncodeToString(mac.Sum(nil))
}

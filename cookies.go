package clinauth

import (
	"net/http"
	"time"
)

// Cookie names used by the helper constructors. The caller is free to
// ignore these and carry tokens in headers instead.
const (
	AccessCookieName  = "cas_access"
	RefreshCookieName = "cas_refresh"
	CSRFCookieName    = "cas_csrf"
)

// AccessCookie wraps an access token for the browser. HttpOnly: script
// never reads it.
func (e *Engine) AccessCookie(value string) *http.Cookie {
	return e.tokenCookie(AccessCookieName, value, e.config.Token.AccessTTL)
}

// RefreshCookie wraps a refresh token. Scoped to the refresh path by the
// caller if its router allows it.
func (e *Engine) RefreshCookie(value string) *http.Cookie {
	return e.tokenCookie(RefreshCookieName, value, e.config.Token.RefreshTTL)
}

// CSRFCookie wraps the "token.signature" anti-forgery composite.
// Deliberately NOT HttpOnly: the front end reads it and echoes it back in
// a request header, which is the whole point of the double-submit check.
func (e *Engine) CSRFCookie(value string) *http.Cookie {
	c := e.tokenCookie(CSRFCookieName, value, e.config.Token.RefreshTTL)
	c.HttpOnly = false
	return c
}

// ClearSessionCookies returns expired copies of all three cookies for
// logout responses.
func (e *Engine) ClearSessionCookies() []*http.Cookie {
	names := []string{AccessCookieName, RefreshCookieName, CSRFCookieName}
	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		c := e.tokenCookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		out = append(out, c)
	}
	return out
}

func (e *Engine) tokenCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   e.config.Security.RequireSecureCookies,
		SameSite: e.config.Security.SameSitePolicy,
	}
}

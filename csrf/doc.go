// Package csrf implements double-submit anti-forgery tokens. A random
// token is handed to the client in a readable cookie and echoed back on
// state-changing requests; the server keeps only an HMAC signature of the
// token bound to the session id, so a stolen signature alone proves
// nothing and a forged token cannot produce a matching signature.
package csrf

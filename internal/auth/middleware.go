// internal/auth/middleware.go
package auth

import (
	"net/http"
	"strings"
)

// Verifier guards handlers behind an admin bearer token.
type Verifier struct {
	hash string
	salt string
}

// NewVerifier returns a verifier for the given hash and salt. It returns
// nil when hash is empty, which disables the check.
func NewVerifier(hash, salt string) *Verifier {
	if hash == "" {
		return nil
	}
	return &Verifier{hash: hash, salt: salt}
}

// Check reports whether the request carries the admin token.
func (v *Verifier) Check(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return ErrUnauthorized
	}
	valid, err := VerifyToken(token, v.salt, v.hash)
	if err != nil {
		return err
	}
	if !valid {
		return ErrUnauthorized
	}
	return nil
}

// Middleware rejects requests without a valid token. A nil verifier lets
// every request through.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.Check(r); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="shelfsort"`)
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

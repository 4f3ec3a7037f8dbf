package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is accepted as an alternative to Authorization: Bearer.
const APIKeyHeader = "X-API-Key"

// publicPaths stay reachable for probes and scrapers when auth is on.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// keyring compares presented tokens against configured keys in constant time.
type keyring [][]byte

func newKeyring(keys []string) keyring {
	var ring keyring
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ring = append(ring, []byte(k))
		}
	}
	return ring
}

func (k keyring) allows(token string) bool {
	match := 0
	for _, key := range k {
		match |= subtle.ConstantTimeCompare(key, []byte(token))
	}
	return match == 1
}

// BearerAuthMiddleware guards every route except publicPaths. With no non-empty
// key configured it passes all requests through.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	ring := newKeyring(apiKeys)
	return func(next http.Handler) http.Handler {
		if len(ring) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, msg := presentedToken(r)
			if msg == "" && !ring.allows(token) {
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="assessdex"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presentedToken returns the credential or a reason why none is usable.
// The auth scheme is matched case-insensitively.
func presentedToken(r *http.Request) (string, string) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", "authorization header must use Bearer scheme"
		}
		return strings.TrimSpace(token), ""
	}
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, ""
	}
	return "", "missing authorization header"
}

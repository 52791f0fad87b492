package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth requires token in the Authorization header. An empty token
// leaves the routes open.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return requireToken(token, false)
}

// SocketAuth is BearerAuth that also accepts the token as the "token" query
// parameter. Browsers cannot set headers on a WebSocket upgrade, so the AR
// page appends it to the socket URL.
func SocketAuth(token string) func(http.Handler) http.Handler {
	return requireToken(token, true)
}

func requireToken(token string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok && allowQuery {
				got, ok = r.URL.Query().Get("token"), true
			}
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/MrEthical07/jwtauth"
)

// Revoke revokes the request's bearer token once the handler has served a request
// on the configured revocation path. Revocation failures never change the response.
func Revoke(engine *jwtauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if engine == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := bearerToken(r.Header.Get("Authorization"))

			next.ServeHTTP(w, r)

			engine.RevokeRequest(r, token)
		})
	}
}

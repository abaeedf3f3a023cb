package middleware

import (
	"net/http"

	"github.com/MrEthical07/jwtauth"
)

// RequireScope is [Guard] restricted to tokens issued in scope. Tokens of other
// scopes get 403.
func RequireScope(engine *jwtauth.Engine, scope string) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		scoped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok || res.Scope != scope {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
		return guard(scoped)
	}
}

package middleware

import (
	"net/http"
)

// RequireAuthority returns middleware that allows access only to users whose
// JWT authority matches one of the provided levels (e.g. domain.AuthorityTenantAdmin).
func RequireAuthority(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, a := range allowed {
				if claims.Authority == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware checks the Bearer token in the Authorization header.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				http.Error(w, "invalid token", http.StatusForbidden)
				return
			}

			// token ok, pass through
			next.ServeHTTP(w, r)
		})
	}
}

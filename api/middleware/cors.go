package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsHeaders = []string{"Accept", "Authorization", "Content-Type", requestIDHeader, "X-Requested-With"}
)

// CORS applies the origin allow-list. Credentials are allowed so the auth
// cookie travels with cross-site requests, which rules out a "*" origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

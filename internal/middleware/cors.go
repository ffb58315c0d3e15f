package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows cross-origin calls from a single origin only.
func CORS(origin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

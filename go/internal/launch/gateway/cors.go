package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware wraps next with CORS handling for the given origins. No
// origins allows all.
func CORSMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
		MaxAge:         86400, // 24 hours
	})
	return c.Handler(next)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows browser players served from other origins to call the API and
// fetch segments. origins is a comma-separated list; "*" allows any origin.
// An empty list disables the middleware.
func CORS(origins string) func(http.Handler) http.Handler {
	allowed := splitOrigins(origins)
	if len(allowed) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Range", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After", "Content-Length", "Content-Range"},
		MaxAge:         600,
	})
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

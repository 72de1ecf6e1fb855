package middleware

import (
	"net/http"

	"github.com/austery/asr-runner/pkg/envconfig"
)

// CorsMiddleware handles CORS and OPTIONS preflight requests with optional allowedOrigins.
// If allowedOrigins is nil or empty, it falls back to envconfig.AllowedOrigins().
// A request whose Origin header is present but not allowed is rejected with 403, whatever
// its method. OPTIONS requests with an allowed Origin are answered here as preflights;
// OPTIONS requests without an Origin header pass to the router (allowing 405/404 responses
// as appropriate).
func CorsMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = envconfig.AllowedOrigins()
	}

	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	allowedSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowedSet[o] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := allowAll || originAllowed(origin, allowedSet)

		if origin != "" && !allowed {
			http.Error(w, "Origin not allowed", http.StatusForbidden)
			return
		}

		if origin != "" && allowed {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			if origin == "" || !allowed {
				next.ServeHTTP(w, r)
				return
			}

			if !allowAll {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowedSet map[string]struct{}) bool {
	_, ok := allowedSet[origin]
	return ok
}

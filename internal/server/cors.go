package server

import "net/http"

const allowedMethods = "GET, POST, OPTIONS"

// cors allows browser requests from a fixed set of origins, credentials
// included.
type cors struct {
	origins map[string]struct{}
}

func newCORS(origins []string) *cors {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[origin] = struct{}{}
	}

	return &cors{origins: allowed}
}

func (c *cors) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		_, allowed := c.origins[origin]

		if origin != "" {
			w.Header().Add("Vary", "Origin")
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)

				return
			}

			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)

			if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}

			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}

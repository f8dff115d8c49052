package server

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS returns a middleware writing CORS headers for the allowed origins
// ("*.domain" matches subdomains) and answering preflight requests
func CORS(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteCORSHeaders(w, r, origins)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WriteCORSHeaders(w http.ResponseWriter, r *http.Request, origins []string) {
	if len(origins) == 0 {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		origin := strings.ToLower(r.Header.Get("Origin"))
		u, err := url.Parse(origin)
		if err == nil {
			for _, host := range origins {
				if host == "" {
					continue
				}
				if host[0] == '*' && strings.HasSuffix(u.Host, host[1:]) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				if u.Host == host {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
		}
	}

	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Ds-Public-Key, X-Ds-Req-Signature")
}

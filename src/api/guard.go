package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/iliafrenkel/unbin/src/metrics"
)

// APIKeyHeader is the request header that carries the API key.
const APIKeyHeader = "x-api-key"

const msgUnauthorized = "Unauthorized - Check your API Key!"

// requireAPIKey rejects requests whose x-api-key header is missing or is not
// exactly the key the server was started with.
func (h *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" || h.options.APIKey == "" ||
			subtle.ConstantTimeCompare([]byte(key), []byte(h.options.APIKey)) != 1 {
			metrics.Unauthorized.Inc()
			h.log.Logf("WARN unauthorized %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			h.writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

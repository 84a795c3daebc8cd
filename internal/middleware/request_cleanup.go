package middleware

import (
	"io"
	"net/http"
)

// at most this much of an unread body is discarded, a larger rest closes the connection
const maxDrainBytes = 256 << 10

// DrainAndCloseRequest discards what the handler left unread in the request
// body and closes it, so the client connection can be reused.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrainBytes)
			_ = r.Body.Close()
		})
	}
}

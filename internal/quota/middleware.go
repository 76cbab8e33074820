package quota

import (
	"net"
	"net/http"
	"strconv"

	"github.com/VinodKandula/file-metadata-app/internal/apierror"
	"github.com/VinodKandula/file-metadata-app/internal/metrics"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

// RateLimitMiddleware returns middleware that enforces per-client rate
// limits. Clients are keyed by remote IP; rejections are written through errs.
func RateLimitMiddleware(limiter *RateLimiter, errs apierror.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if !limiter.Allow(client) {
				metrics.RecordRateLimitHit()
				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter(client)))
				errs.Send(w, r, http.StatusTooManyRequests, protocol.CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

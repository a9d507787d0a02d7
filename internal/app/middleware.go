package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// MiddlewareStack installs the default middleware chain: request identity,
// panic recovery, request timeout, compression, and a per-IP rate limit.
func MiddlewareStack(cfg *Config) []func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	if cfg != nil && cfg.AppRequestTimeout > 0 {
		timeout = cfg.AppRequestTimeout
	}
	limit := 120
	if cfg != nil && cfg.RateLimitPerMinute > 0 {
		limit = cfg.RateLimitPerMinute
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

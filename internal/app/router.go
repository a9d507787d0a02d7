package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/primanota/primanota/internal/closures"
	"github.com/primanota/primanota/internal/ledger"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	LedgerHandler   *ledger.Handler
	ClosuresHandler *closures.Handler
}

// NewRouter constructs the chi.Router for the posting API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Config) {
		r.Use(mw)
	}
	if params.Logger != nil {
		r.Use(requestLogger(params.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.ClosuresHandler != nil {
		params.ClosuresHandler.MountRoutes(r)
	}

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

// Package http exposes the ledger over a JSON API. The routes are the
// operations the original desktop tool offered through its form.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AdleyRodrigues/financing-simulator/internal/services"
)

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(svc *services.LedgerService) http.Handler {
	h := &Handlers{svc: svc}

	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"online": svc.Snapshot().Online})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ledger", h.GetLedger)
		r.Get("/ledger/next-date", h.GetNextDate)

		r.Post("/payments", h.RegisterPayment)
		r.Delete("/payments/last", h.UndoLastPayment)
		r.Post("/payments/{sequence}/status", h.ToggleStatus)
		r.Delete("/payments", h.ClearHistory)
	})

	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.LogAttrs(r.Context(), slog.LevelInfo, "Request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Shutdown drains the server with a bounded grace period.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

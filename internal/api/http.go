package api

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unofficial-homecase/homecasebot/internal/api/swagger"
	"github.com/unofficial-homecase/homecasebot/internal/auth"
	"github.com/unofficial-homecase/homecasebot/internal/config"
	"github.com/unofficial-homecase/homecasebot/internal/notification"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
	"github.com/unofficial-homecase/homecasebot/internal/ui"
)

// NewMux constructs the HTTP mux, wiring in messages, settings, metrics,
// and health endpoints. Auth is optional: with AUTH_ENABLED unset the API
// is open, matching a single-tenant deployment behind a private network.
func NewMux(ctx context.Context, cfg config.Config, st storage.Storage, authEnabled bool) (*http.ServeMux, error) {
	var authSvc *auth.Service
	if authEnabled {
		svc, err := auth.NewService(st)
		if err != nil {
			return nil, err
		}
		authSvc = svc
		log.Printf("api: token auth enabled")
	}

	notifSvc := notification.NewService(st)

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	registerMessageRoutes(mux, cfg, st, authSvc, notifSvc)
	registerNotificationRoutes(mux, authSvc, notifSvc)

	// API documentation.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	// Web UI
	mux.Handle("/ui/", http.StripPrefix("/ui/", ui.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	return mux, nil
}

// withAuth wraps a handler with token auth and a permission check when
// auth is enabled, and passes it through unchanged otherwise.
func withAuth(authSvc *auth.Service, obj, act string, handler http.Handler) http.Handler {
	if authSvc == nil {
		return handler
	}
	return authSvc.Middleware(authSvc.RequirePermission(obj, act, handler))
}

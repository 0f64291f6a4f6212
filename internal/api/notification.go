package api

import (
	"encoding/json"
	"net/http"

	"github.com/unofficial-homecase/homecasebot/internal/auth"
	"github.com/unofficial-homecase/homecasebot/internal/notification"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

func registerNotificationRoutes(mux *http.ServeMux, authSvc *auth.Service, notifSvc *notification.Service) {
	getHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg, err := notifSvc.GetConfig(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if cfg == nil {
			cfg = &storage.EmailConfig{}
		}
		// Never echo credentials back to the client.
		cfg.Password = ""
		cfg.APIKey = ""

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	})

	putHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req storage.EmailConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := notifSvc.SaveConfig(r.Context(), req); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/v1/settings/email", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			withAuth(authSvc, "email", "read", getHandler).ServeHTTP(w, r)
		case http.MethodPut:
			withAuth(authSvc, "email", "write", putHandler).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/api/v1/settings/email/test", withAuth(authSvc, "email", "write",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			var req struct {
				Config storage.EmailConfig `json:"config"`
				To     string              `json:"to"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}

			if err := notifSvc.TestConfig(r.Context(), req.Config, req.To); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			w.WriteHeader(http.StatusOK)
		})))
}

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unofficial-homecase/homecasebot/internal/auth"
	"github.com/unofficial-homecase/homecasebot/internal/config"
	"github.com/unofficial-homecase/homecasebot/internal/ingest"
	"github.com/unofficial-homecase/homecasebot/internal/notification"
	"github.com/unofficial-homecase/homecasebot/internal/scraper"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

// MessageDTO is the API shape of a stored consumption message. The raw
// portal text is withheld from list responses to keep payloads small.
type MessageDTO struct {
	ContentHash string          `json:"content_hash"`
	MessageDate string          `json:"message_date"`
	ParsedData  json.RawMessage `json:"parsed_data"`
	CreatedAt   time.Time       `json:"created_at"`
	RawMessage  string          `json:"raw_message,omitempty"`
}

func toDTO(msg storage.ConsumptionMessage, includeRaw bool) MessageDTO {
	dto := MessageDTO{
		ContentHash: msg.ContentHash,
		MessageDate: msg.MessageDate.Format("2006-01-02"),
		ParsedData:  json.RawMessage(msg.ParsedData),
		CreatedAt:   msg.CreatedAt,
	}
	if includeRaw {
		dto.RawMessage = msg.RawMessage
	}
	return dto
}

// RefreshResponse reports the outcome of a manually triggered run.
type RefreshResponse struct {
	Found   int    `json:"found"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func registerMessageRoutes(mux *http.ServeMux, cfg config.Config, st storage.Storage, authSvc *auth.Service, notifSvc *notification.Service) {
	mux.Handle("/api/v1/messages", withAuth(authSvc, "messages", "read",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			limit := 0
			if raw := r.URL.Query().Get("limit"); raw != "" {
				v, err := strconv.Atoi(raw)
				if err != nil || v < 0 {
					http.Error(w, "invalid limit", http.StatusBadRequest)
					return
				}
				limit = v
			}

			msgs, err := st.ListMessages(r.Context(), limit)
			if err != nil {
				log.Printf("api: list messages failed: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			list := make([]MessageDTO, 0, len(msgs))
			for _, msg := range msgs {
				list = append(list, toDTO(msg, false))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(list)
		})))

	mux.Handle("/api/v1/messages/latest", withAuth(authSvc, "messages", "read",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			msg, err := st.LatestMessage(r.Context())
			if err != nil {
				log.Printf("api: latest message failed: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if msg == nil {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(toDTO(*msg, false))
		})))

	mux.Handle("/api/v1/messages/", withAuth(authSvc, "messages", "read",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			hash := strings.TrimPrefix(r.URL.Path, "/api/v1/messages/")
			if hash == "" || strings.Contains(hash, "/") {
				http.NotFound(w, r)
				return
			}

			msg, err := st.GetMessage(r.Context(), hash)
			if err != nil {
				log.Printf("api: get message failed: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if msg == nil {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(toDTO(*msg, true))
		})))

	mux.Handle("/api/v1/refresh", withAuth(authSvc, "refresh", "write",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			if err := cfg.Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}

			sc, err := scraper.FromConfig(cfg)
			if err != nil {
				log.Printf("api: build scraper failed: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			runner := ingest.NewRunner(st, sc, notifSvc, nil, cfg.MessageLimit)
			result, err := runner.Run(r.Context())

			resp := RefreshResponse{Status: "ok"}
			if result != nil {
				resp.Found = result.Found
				resp.Saved = result.Saved
				resp.Skipped = result.Skipped
				resp.Failed = result.Failed
			}
			if err != nil {
				log.Printf("api: refresh run failed: %v", err)
				resp.Status = "error"
				resp.Error = err.Error()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(resp)
				return
			}
			if result.NoNewMessages() {
				resp.Status = "no_new_messages"
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		})))
}

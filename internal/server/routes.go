package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Browser clients are served from arbitrary origins; the relay carries
	// no credentials worth protecting.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades the request and attaches
// the connection to hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "err", err)
			return
		}

		client := signaling.NewClient(hub, conn)
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// HealthCheck answers liveness probes.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// ServeStats reports online, waiting and paired counts as JSON.
func ServeStats(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		stats, err := hub.Stats(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

// maxFeedbackBytes caps the request body accepted by ServeFeedback.
const maxFeedbackBytes = 8 * 1024

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// ServeFeedback accepts {"feedback": "..."} from the browser client and logs it.
func ServeFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid feedback", http.StatusBadRequest)
		return
	}
	text := chat.Sanitize(req.Feedback)
	if text == "" {
		http.Error(w, "empty feedback", http.StatusBadRequest)
		return
	}

	slog.Info("feedback received", "feedback", text, "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

// NewMux wires every relay route.
func NewMux(hub *signaling.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthCheck)
	mux.HandleFunc("/stats", ServeStats(hub))
	mux.HandleFunc("/feedback", ServeFeedback)
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/", ServeWs(hub))
	return mux
}
